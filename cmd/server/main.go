package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/appgrove/appgrove-server/internal/api"
	"github.com/appgrove/appgrove-server/internal/authz"
	"github.com/appgrove/appgrove-server/internal/bundle"
	"github.com/appgrove/appgrove-server/internal/catalog"
	"github.com/appgrove/appgrove-server/internal/cfg"
	"github.com/appgrove/appgrove-server/internal/health"
	"github.com/appgrove/appgrove-server/internal/httpserver"
	"github.com/appgrove/appgrove-server/internal/ingest"
	"github.com/appgrove/appgrove-server/internal/log"
	"github.com/appgrove/appgrove-server/internal/metrics"
	"github.com/appgrove/appgrove-server/internal/moderation"
	"github.com/appgrove/appgrove-server/internal/opshttp"
	"github.com/appgrove/appgrove-server/internal/otelx"
	"github.com/appgrove/appgrove-server/internal/prof"
	"github.com/appgrove/appgrove-server/internal/ratelimit"
	"github.com/appgrove/appgrove-server/internal/storage"
	v "github.com/appgrove/appgrove-server/internal/version"
	"github.com/appgrove/appgrove-server/internal/webassets"
)

const appName = "appgrove-server"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vi := v.Get()

	var conf cfg.App
	var showVersion bool

	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("%s %s (commit=%s, build_date=%s, go=%s, dirty=%v)\n",
			appName, vi.Version, vi.Commit, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		os.Exit(0)
	}

	cfg.FillFromEnv(flag.CommandLine, "APPGROVE_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %s: %v\n", conf.LogLevel, err)
		os.Exit(1)
	}
	stackLvl, _ := log.ParseLevel(conf.StacktraceLevel)
	lg, err := log.New(log.Options{
		App:             appName,
		Version:         vi.Version,
		Commit:          vi.Commit,
		Level:           lvl,
		StacktraceLevel: stackLvl,
		JsonFormat:      conf.LogJSON,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	defer lg.Sync()
	L := lg.With("component", "server")
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"go_version", vi.GoVersion,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"db_driver", conf.DBDriver,
		"content_root", conf.ContentRoot,
		"mirror_s3", conf.MirrorS3,
		"max_bundle_bytes", conf.MaxBundleBytes,
		"review_bytes", conf.ReviewBytes,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
	)

	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       appName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"app":       appName,
			"component": "server",
			"version":   vi.Version,
			"commit":    vi.Commit,
		},
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	defer stopProf()

	// Insecure because the exporter talks to a localhost collector.
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:   conf.EnableTracing,
		Endpoint:  conf.OTLPEndpoint,
		Insecure:  true,
		Sample:    conf.TraceSample,
		Service:   appName,
		Component: "server",
		Version:   vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}
	defer func() { _ = shutdownOTEL(context.Background()) }()

	m := metrics.New()
	m.SetBuildInfoFromVersion(appName, "server", &vi)
	m.SetProfilingActive(conf.EnablePyroscope)

	store, err := catalog.Open(catalog.Options{Driver: conf.DBDriver, DSN: conf.DBDSN})
	if err != nil {
		L.Error(ctx, err, "failed to open catalog store", "driver", conf.DBDriver)
		os.Exit(1)
	}
	defer store.Close()

	files, err := storage.New(storage.Options{Root: conf.ContentRoot, Logger: L, SweepGrace: time.Hour})
	if err != nil {
		L.Error(ctx, err, "failed to init content storage", "root", conf.ContentRoot)
		os.Exit(1)
	}

	var mirror *storage.S3Mirror
	if conf.MirrorS3 {
		mirror, err = storage.NewS3Mirror(ctx, storage.S3MirrorOptions{
			Bucket: conf.MirrorS3Bucket,
			Prefix: conf.MirrorS3Prefix,
			Logger: L,
		})
		if err != nil {
			L.Error(ctx, err, "failed to init s3 mirror", "bucket", conf.MirrorS3Bucket)
			os.Exit(1)
		}
	}

	gate := &bundle.Gate{
		MaxFiles:  conf.MaxBundleFiles,
		MaxBytes:  conf.MaxBundleBytes,
		OnFailure: m.IncValidationFailure,
	}

	router := ingest.NewRouter(ingest.RouterOptions{
		Store:       store,
		Files:       files,
		Mirror:      mirror,
		Gate:        gate,
		ReviewBytes: conf.ReviewBytes,
		Metrics:     m,
		Logger:      L,
	})

	repos := ingest.NewRepoAdapter(conf.MaxBundleBytes, time.Duration(conf.RepoFetchSecs)*time.Second, L)
	scraper := ingest.NewScrapeAdapter(
		5<<20, 2<<20,
		time.Duration(conf.PageFetchSecs)*time.Second,
		time.Duration(conf.AssetFetchSecs)*time.Second,
		L,
	)

	mod := moderation.New(moderation.Options{
		Store:   store,
		Files:   files,
		Mirror:  mirror,
		Metrics: m,
		Logger:  L,
	})

	apiSvc := api.New(api.Options{
		Store:          store,
		Files:          files,
		Router:         router,
		Repos:          repos,
		Scraper:        scraper,
		Mod:            mod,
		Verifier:       &authz.Verifier{Secret: []byte(conf.JWTSecret)},
		Logger:         L,
		MaxUploadBytes: conf.MaxBundleBytes,
	})

	// Readiness requires a reachable database, a writable content root
	// and an open shutdown gate.
	var gateProbe health.ShutdownGate
	readiness := health.All(
		gateProbe.Probe(),
		health.CheckFunc(store.Ping),
		health.CheckFunc(func(context.Context) error { return files.WriteProbe() }),
	)

	limiter := ratelimit.New(ctx,
		ratelimit.WithRate(conf.SubmitRatePerIP, conf.SubmitBurst),
		ratelimit.WithOnDenied(func(ip string) {
			m.IncRateLimitDenied()
		}),
		ratelimit.WithOnFirstDenied(func(ip string) {
			L.Warn(ctx, "submit rate limit triggered", "ip", ip)
		}),
	)

	httpStop, err := httpserver.Start(ctx, &httpserver.Options{
		Logger: L,
		Port:   conf.HTTPPort,
		APIRoutes: func(r chi.Router) {
			apiSvc.RegisterRoutes(r, limiter.Middleware)
			r.Handle("/placeholders/*", http.StripPrefix("/placeholders/",
				http.FileServer(http.FS(webassets.PlaceholderFS()))))
		},
		Content: http.FileServer(http.Dir(conf.ContentRoot)),
		// archive upload cap plus multipart framing headroom
		MaxBodyBytes: conf.MaxBundleBytes + (1 << 20),
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		MetricsMW:    m.Middleware,
		Health:       health.Fixed(true, ""),
		Readiness:    readiness,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start http listener")
		os.Exit(1)
	}
	defer func() { _ = httpStop(context.Background()) }()

	opsStop, err := opshttp.Start(ctx, L, opshttp.Options{
		Port:        conf.AdminPort,
		Metrics:     m.Handler(),
		EnablePprof: conf.EnablePprof,
		Health:      health.Fixed(true, ""),
		Readiness:   readiness,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		os.Exit(1)
	}
	defer func() { _ = opsStop(context.Background()) }()

	if err := notifySystemd(); err != nil {
		L.Warn(ctx, "failed to notify systemd of readiness", "error", err)
	}

	sigCtx, cancelSig := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancelSig()
	<-sigCtx.Done()

	L.Info(context.Background(), "shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// fail readiness so load balancers stop sending traffic, then wait
	// for in-flight requests (imports can be slow) before closing
	gateProbe.Set("draining")
	L.Info(context.Background(), "shutdown gate closed, draining")

	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(15 * time.Second):
		L.Info(context.Background(), "drain period complete")
	case <-forceCh:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
	signal.Stop(forceCh)

	if err := httpStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "http server shutdown")
	}
	if err := opsStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "ops http server shutdown")
	}
	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "otel shutdown")
	}
	stopProf()

	L.Info(context.Background(), "shutdown complete")
}

// notifySystemd reports readiness when running under Type=notify.
func notifySystemd() error {
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set, skipping systemd notify")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return fmt.Errorf("systemd notify failed: dial failed: %w", err)
	}
	conn.Write([]byte("READY=1"))
	if err := conn.Close(); err != nil {
		return fmt.Errorf("systemd notify failed: close failed: %w", err)
	}
	return nil
}
