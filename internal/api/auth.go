package api

import (
	"net/http"

	"github.com/appgrove/appgrove-server/internal/authz"
)

// requireAuth verifies the bearer token, makes sure a catalog row exists
// for the subject and rejects suspended accounts.
func (a *API) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := a.verifier.FromRequest(r)
		if err != nil {
			a.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{Message: "authentication required"})
			return
		}

		user, err := a.store.EnsureUser(id.UserID, id.Username, id.Role)
		if err != nil {
			a.writeError(ctx, w, err)
			return
		}
		if user.Suspended {
			a.writeJSON(ctx, w, http.StatusForbidden, errorResponse{Message: "account suspended"})
			return
		}

		next(w, r.WithContext(authz.WithIdentity(ctx, id)))
	}
}

// requireAdmin gates the moderation surface on the admin capability.
func (a *API) requireAdmin(next http.Handler) http.Handler {
	return a.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		id, _ := authz.IdentityFromContext(r.Context())
		if !id.IsAdmin() {
			a.writeJSON(r.Context(), w, http.StatusForbidden, errorResponse{Message: "admin access required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// identity returns the verified identity; requireAuth guarantees it.
func identity(r *http.Request) authz.Identity {
	id, _ := authz.IdentityFromContext(r.Context())
	return id
}
