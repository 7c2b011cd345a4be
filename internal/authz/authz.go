// Package authz is the boundary shim between externally issued bearer
// tokens and the pipeline's notion of an authenticated user. Credential
// issuance lives elsewhere; this package only verifies and extracts.
package authz

import (
	"context"
	"net/http"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/appgrove/appgrove-server/internal/xerrors"
)

// Identity is the verified subject of a request.
type Identity struct {
	UserID   uint
	Username string
	Role     string
}

// IsAdmin is the administrator capability predicate.
func (id Identity) IsAdmin() bool { return id.Role == "admin" }

// Owns is the content-owner capability predicate, evaluated per entity.
func (id Identity) Owns(ownerID uint) bool { return id.UserID == ownerID }

// Claims is the accepted token shape.
type Claims struct {
	UserID   uint   `json:"uid"`
	Username string `json:"uname"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier parses HS256 bearer tokens.
type Verifier struct {
	Secret []byte
}

// Verify extracts the identity from a raw token string.
func (v *Verifier) Verify(tokenStr string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.Secret, nil
	})
	if err != nil {
		return Identity{}, xerrors.Ef(xerrors.KindInput, "invalid token: %v", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return Identity{}, xerrors.Ef(xerrors.KindInput, "invalid token claims")
	}
	return Identity{UserID: claims.UserID, Username: claims.Username, Role: claims.Role}, nil
}

// Sign mints a token for the identity; used by tests and tooling, not by
// any public endpoint.
func (v *Verifier) Sign(id Identity) (string, error) {
	claims := Claims{UserID: id.UserID, Username: id.Username, Role: id.Role}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.Secret)
}

type ctxKey struct{}

// WithIdentity binds a verified identity to the request context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFromContext returns the bound identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// FromRequest verifies the Authorization header of a request.
func (v *Verifier) FromRequest(r *http.Request) (Identity, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return Identity{}, xerrors.Ef(xerrors.KindInput, "missing bearer token")
	}
	return v.Verify(raw)
}
