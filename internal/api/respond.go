package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/appgrove/appgrove-server/internal/xerrors"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

func (a *API) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn(ctx, "failed to encode JSON response", "error", err)
	}
}

// writeError maps error kinds onto status codes. Internal detail stays
// in the log; storage and unknown failures surface as a generic 500.
func (a *API) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := xerrors.KindOf(err)
	status := statusForKind(kind)
	msg := err.Error()

	if status >= 500 {
		a.logger.Error(ctx, err, "request failed")
		msg = "internal error"
	}

	a.writeJSON(ctx, w, status, errorResponse{Message: msg, Kind: kind.String()})
}

func statusForKind(k xerrors.Kind) int {
	switch k {
	case xerrors.KindInput:
		return http.StatusBadRequest
	case xerrors.KindValidation:
		return http.StatusUnprocessableEntity
	case xerrors.KindConflict:
		return http.StatusConflict
	case xerrors.KindNotFound:
		return http.StatusNotFound
	case xerrors.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// idParam parses the {id} route parameter.
func idParam(r *http.Request) (uint, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, xerrors.Ef(xerrors.KindInput, "invalid id %q", raw)
	}
	return uint(id), nil
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return xerrors.Ef(xerrors.KindInput, "malformed JSON body: %v", err)
	}
	return nil
}
