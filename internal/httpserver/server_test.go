package httpserver

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/appgrove/appgrove-server/internal/health"
	"github.com/appgrove/appgrove-server/internal/log"
)

func newHandler(t *testing.T, mutate func(*Options)) http.Handler {
	t.Helper()
	opts := &Options{
		Logger: log.Nop(),
		APIRoutes: func(r chi.Router) {
			r.Get("/api/ping", func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte("pong"))
			})
		},
	}
	if mutate != nil {
		mutate(opts)
	}
	return NewHandler(opts)
}

func TestAPIRouteServed(t *testing.T) {
	h := newHandler(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestSecurityHeadersOnEveryResponse(t *testing.T) {
	h := newHandler(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ping", nil))

	for _, header := range []string{
		"Strict-Transport-Security",
		"Content-Security-Policy",
		"X-Content-Type-Options",
		"X-Frame-Options",
	} {
		if rec.Header().Get(header) == "" {
			t.Errorf("missing %s header", header)
		}
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Errorf("missing X-Request-Id header")
	}
}

func TestContentFallback(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "apps", "demo"), 0o755); err != nil {
		t.Fatal(err)
	}
	page := []byte("<html>demo</html>")
	if err := os.WriteFile(filepath.Join(root, "apps", "demo", "index.html"), page, 0o644); err != nil {
		t.Fatal(err)
	}

	h := newHandler(t, func(o *Options) {
		o.Content = http.FileServer(http.Dir(root))
	})

	// FileServer canonicalizes the entry doc path to the directory URL;
	// clients follow the redirect.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/apps/demo/index.html", nil))
	if rec.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d, want 301", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if loc != "./" && loc != "/apps/demo/" {
		t.Fatalf("redirect location = %q", loc)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/apps/demo/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != string(page) {
		t.Fatalf("body = %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/apps/missing/index.html", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing file status = %d, want 404", rec.Code)
	}
}

func TestHealthRoutes(t *testing.T) {
	h := newHandler(t, func(o *Options) {
		o.Health = health.Fixed(true, "")
		o.Readiness = health.Fixed(false, "store not ready")
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/-/healthy", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthy status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/-/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready status = %d, want 503", rec.Code)
	}
	if rec.Body.String() != "store not ready\n" {
		t.Fatalf("ready body = %q", rec.Body.String())
	}
}

func TestMaxBodyRejectsOversize(t *testing.T) {
	h := NewHandler(&Options{
		Logger:       log.Nop(),
		MaxBodyBytes: 8,
		APIRoutes: func(r chi.Router) {
			r.Post("/api/echo", func(w http.ResponseWriter, r *http.Request) {
				if _, err := io.ReadAll(r.Body); err != nil {
					http.Error(w, "too large", http.StatusRequestEntityTooLarge)
					return
				}
				w.WriteHeader(http.StatusOK)
			})
		},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/echo", strings.NewReader("0123456789abcdef"))
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/echo", strings.NewReader("tiny"))
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("small body status = %d, want 200", rec.Code)
	}
}

func TestShouldTrace(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/api/community/list", true},
		{"/api/submit", true},
		{"/-/healthy", false},
		{"/-/ready", false},
		{"/favicon.ico", false},
		{"/apps/x/app.js", false},
		{"/apps/x/style.css", false},
		{"/videos/x.mp4", false},
		{"/apps/x/index.html", true},
	}
	for _, c := range cases {
		if got := shouldTrace(c.path); got != c.want {
			t.Errorf("shouldTrace(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestRateLimitMWWraps(t *testing.T) {
	denied := false
	h := newHandler(t, func(o *Options) {
		o.RateLimitMW = func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				denied = true
				w.WriteHeader(http.StatusTooManyRequests)
			})
		}
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	if !denied || rec.Code != http.StatusTooManyRequests {
		t.Fatalf("rate limiter not in chain: denied=%v code=%d", denied, rec.Code)
	}
}
