package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/appgrove/appgrove-server/internal/health"
	"github.com/appgrove/appgrove-server/internal/httpmw"
	"github.com/appgrove/appgrove-server/internal/log"
)

type Options struct {
	Logger log.Logger
	Port   int

	// APIRoutes registers the catalog API on the router.
	APIRoutes func(chi.Router)
	// Content serves the published trees and uploaded media; it is the
	// NotFound fallback after API routes.
	Content http.Handler

	// MaxBodyBytes caps request bodies; must clear the archive upload
	// limit plus multipart overhead.
	MaxBodyBytes int64

	UseRecoverMW bool
	OnPanic      func()
	MetricsMW    func(http.Handler) http.Handler
	RateLimitMW  func(http.Handler) http.Handler
	ClientIPOpts httpmw.ClientIPOptions

	Health    health.Probe
	Readiness health.Probe
}
