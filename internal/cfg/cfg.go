// Package cfg defines the server configuration and its flag/env binding.
// Precedence: cli flag > env var > default.
package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/appgrove/appgrove-server/internal/log"
)

type App struct {
	LogJSON         bool
	LogLevel        string
	StacktraceLevel string

	HTTPPort  int
	AdminPort int

	// persistence
	DBDriver string
	DBDSN    string

	// root of the published trees and uploaded media
	ContentRoot string

	// optional S3 mirror of published trees
	MirrorS3       bool
	MirrorS3Bucket string
	MirrorS3Prefix string

	// auth
	JWTSecret string

	// ingestion limits
	MaxBundleBytes  int64
	ReviewBytes     int64
	MaxBundleFiles  int
	RepoFetchSecs   int
	PageFetchSecs   int
	AssetFetchSecs  int
	SubmitRatePerIP float64
	SubmitBurst     int

	// observability
	EnablePprof     bool
	EnablePyroscope bool
	EnableTracing   bool
	PyroServer      string
	PyroTenantID    string
	OTLPEndpoint    string
	TraceSample     float64
}

// Register binds all config fields to the given FlagSet with defaults inline
func Register(fs *flag.FlagSet, c *App) {
	fs.BoolVar(&c.LogJSON, "log-json", true, "JSON logs (true) or logfmt (false)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.IntVar(&c.HTTPPort, "http-port", 8080, "listen TCP port (1..65535)")
	fs.IntVar(&c.AdminPort, "admin-port", 9000, "ops listen TCP port (1..65535)")
	fs.StringVar(&c.DBDriver, "db-driver", "sqlite", "sqlite|mysql")
	fs.StringVar(&c.DBDSN, "db-dsn", "appgrove.db", "database DSN (file path for sqlite)")
	fs.StringVar(&c.ContentRoot, "content-root", "data/content", "root directory for published trees and uploaded media")
	fs.BoolVar(&c.MirrorS3, "mirror-s3", false, "mirror approved content trees to S3")
	fs.StringVar(&c.MirrorS3Bucket, "mirror-s3-bucket", "", "s3 bucket for the content mirror")
	fs.StringVar(&c.MirrorS3Prefix, "mirror-s3-prefix", "appgrove/content", "s3 key prefix for the content mirror")
	fs.StringVar(&c.JWTSecret, "jwt-secret", "", "HMAC secret for session token verification")
	fs.Int64Var(&c.MaxBundleBytes, "max-bundle-bytes", 20<<20, "hard cap on extracted bundle size")
	fs.Int64Var(&c.ReviewBytes, "review-bytes", 10<<20, "bundle size above which imports are routed to review")
	fs.IntVar(&c.MaxBundleFiles, "max-bundle-files", 500, "max files per bundle")
	fs.IntVar(&c.RepoFetchSecs, "repo-fetch-secs", 60, "timeout for repository snapshot downloads")
	fs.IntVar(&c.PageFetchSecs, "page-fetch-secs", 30, "timeout for page downloads during url import")
	fs.IntVar(&c.AssetFetchSecs, "asset-fetch-secs", 15, "timeout per asset download during url import")
	fs.Float64Var(&c.SubmitRatePerIP, "submit-rate", 0.2, "sustained submissions per second per client IP")
	fs.IntVar(&c.SubmitBurst, "submit-burst", 5, "submission burst per client IP")
	fs.BoolVar(&c.EnablePprof, "enable-pprof", true, "Enable pprof profiling (on the ops port only)")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "Enable pushing Pyroscope data to server set in -pyro-server")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "tenant (x-scope-orgid) to use for pyro-server")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := prefix + strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_")
		envVal, envSet := os.LookupEnv(key)
		if !envSet {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag -%s: cli value %q overrides env %s=%q", f.Name, f.Value.String(), key, envVal)
			}
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVal); err != nil {
			fs.Set(f.Name, prev)
			if logf != nil {
				logf("flag -%s: ignoring invalid env %s=%q: %v", f.Name, key, envVal, err)
			}
		}
	})
}

// Validate checks that config values are within expected ranges and formats.
// Returns an error describing all invalid fields, or nil if all valid.
func Validate(c App) error {
	var errs []error

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.HTTPPort))
	}
	if c.AdminPort < 1 || c.AdminPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid ADMIN_PORT %d (must be 1..65535)", c.AdminPort))
	}
	if c.AdminPort == c.HTTPPort {
		errs = append(errs, fmt.Errorf("ADMIN_PORT and HTTP_PORT must differ (both %d)", c.HTTPPort))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err))
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			errs = append(errs, fmt.Errorf("invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err))
		}
	}

	switch c.DBDriver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Errorf("invalid DB_DRIVER %q (must be sqlite or mysql)", c.DBDriver))
	}
	if c.DBDSN == "" {
		errs = append(errs, fmt.Errorf("DB_DSN is required"))
	}
	if c.ContentRoot == "" {
		errs = append(errs, fmt.Errorf("CONTENT_ROOT is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, fmt.Errorf("JWT_SECRET is required"))
	}

	if c.MaxBundleBytes < 1 {
		errs = append(errs, fmt.Errorf("MAX_BUNDLE_BYTES must be positive (got %d)", c.MaxBundleBytes))
	}
	if c.ReviewBytes < 1 || c.ReviewBytes > c.MaxBundleBytes {
		errs = append(errs, fmt.Errorf("REVIEW_BYTES must be 1..MAX_BUNDLE_BYTES (got %d)", c.ReviewBytes))
	}
	if c.MaxBundleFiles < 1 {
		errs = append(errs, fmt.Errorf("MAX_BUNDLE_FILES must be positive (got %d)", c.MaxBundleFiles))
	}
	if c.SubmitRatePerIP <= 0 {
		errs = append(errs, fmt.Errorf("SUBMIT_RATE must be positive (got %g)", c.SubmitRatePerIP))
	}
	if c.SubmitBurst < 1 {
		errs = append(errs, fmt.Errorf("SUBMIT_BURST must be at least 1 (got %d)", c.SubmitBurst))
	}

	if c.MirrorS3 && c.MirrorS3Bucket == "" {
		errs = append(errs, fmt.Errorf("MIRROR_S3_BUCKET required when MIRROR_S3=true"))
	}

	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample))
	}

	if c.EnablePyroscope {
		if c.PyroServer == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER required when ENABLE_PYROSCOPE=true"))
		} else if u, err := url.Parse(c.PyroServer); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER must be a URL (got %q)", c.PyroServer))
		}
		if c.PyroTenantID == "" {
			errs = append(errs, fmt.Errorf("PYRO_TENANT required when ENABLE_PYROSCOPE=true"))
		}
	}

	// grpc exporter wants host:port, no scheme
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT required when ENABLE_TRACING=true"))
		} else if host, port, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err))
		} else if _, perr := strconv.Atoi(port); perr != nil || host == "" {
			// SplitHostPort accepts "http://host" as host "http", port "//host"
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT must be host:port (got %q)", c.OTLPEndpoint))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
