package httpmw

import (
	"fmt"
	"net/http"

	"github.com/appgrove/appgrove-server/internal/log"
)

// Recover converts handler panics into 500 responses. onPanic, if set,
// is called after logging (the metrics counter hooks in here).
func Recover(logger log.Logger, onPanic func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					// client went away mid-response; let the server handle it
					panic(rec)
				}

				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("panic: %v", rec)
				}

				// Recover sits outside WithLogger in the chain, so the
				// request context usually has no logger stored yet.
				L := log.FromContextOr(r.Context(), logger)
				if L != nil {
					L.Error(r.Context(), err, "panic recovered",
						"http.request.method", r.Method,
						"url.path", r.URL.Path,
					)
				}
				if onPanic != nil {
					onPanic()
				}

				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
