package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/oschwald/geoip2-golang/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"argus/internal/automation"
	"argus/internal/collector"
	"argus/internal/config"
	"argus/internal/handlers"
	"argus/internal/logging"
	"argus/internal/middleware"
	"argus/internal/observability"
	"argus/internal/proxy"
	"argus/internal/store"
	"argus/internal/token"
	"argus/internal/types"
)

// AppVersion defines the current version of the service
const AppVersion = "v1.0.0"

func main() {
	configPath := pflag.StringP("config", "c", "config.yaml", "path to the YAML config file")
	pflag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "argus: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, loadErr := config.LoadConfig(configPath)
	if loadErr != nil && !errors.Is(loadErr, os.ErrNotExist) {
		return loadErr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	if loadErr != nil {
		log.Warn("config file not found, using defaults", zap.String("path", configPath))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st store.Store
	if cfg.RedisAddr != "" {
		rs := store.NewRedis(cfg.RedisAddr)
		if err := rs.Ping(ctx); err != nil {
			return fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		st = rs
	} else {
		log.Info("no redis_addr configured, using in-memory store")
		st = store.NewMemory()
	}
	defer st.Close()

	deps := &handlers.Deps{
		Store:        st,
		Tokens:       token.NewIssuer([]byte(cfg.JWTSecret), cfg.TokenTTL()),
		Automation:   automation.Options{InconsistencyThreshold: cfg.Collection.InconsistencyThreshold},
		AudioSettle:  cfg.AudioSettle(),
		AudioBins:    cfg.Collection.AudioBins,
		NonceTTL:     cfg.NonceTTL(),
		SecureCookie: cfg.SecureCookie,
		Log:          log,
	}
	if cfg.GeoIPDatabase != "" {
		geoDB, err := geoip2.Open(cfg.GeoIPDatabase)
		if err != nil {
			return fmt.Errorf("open geoip database: %w", err)
		}
		defer geoDB.Close()
		deps.Geo = geoDB
	} else {
		log.Info("no geoip_database configured, network results carry the address only")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	obs := observability.NewPromObs(reg)
	deps.Verdicts = obs

	critical, err := cfg.Critical()
	if err != nil {
		return err
	}
	deps.Collector = collector.New(
		collector.WithCritical(critical...),
		collector.WithObserver(obs),
		collector.WithLogger(log),
		collector.WithReporter(func(step int, category types.Category) {
			log.Debug("collecting", zap.Int("step", step), zap.String("category", string(category)))
		}),
	)

	router, err := newRouter(cfg, deps, reg, log)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting argus", zap.String("addr", server.Addr), zap.String("version", AppVersion))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server exited gracefully")
	return nil
}

func newRouter(cfg *config.Config, deps *handlers.Deps, reg *prometheus.Registry, log *zap.Logger) (http.Handler, error) {
	var backend http.Handler
	if cfg.Backend != "" {
		p, err := proxy.NewProxy(cfg.Backend, deps.Store, proxy.Options{
			ScriptPath:  cfg.ProbeScriptPath,
			CollectPath: cfg.CollectPath,
			NonceTTL:    cfg.NonceTTL(),
			Log:         log,
		})
		if err != nil {
			return nil, fmt.Errorf("proxy init: %w", err)
		}
		backend = p
	}
	mw := middleware.New(deps.Store, cfg.RateLimit.RequestsPerMinute, log)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(mw.RequestLogger, chimw.Recoverer)

	r.Get("/health", handlers.Health(AppVersion))
	if cfg.Metrics.Path != "" {
		metrics := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		if cfg.Metrics.APIKey != "" {
			metrics = handlers.APIKeyAuthMiddleware(metrics, cfg.Metrics.APIKey)
		}
		r.Handle(cfg.Metrics.Path, metrics)
	}

	r.Get(cfg.ProbeScriptPath, handlers.Probe())
	r.Group(func(r chi.Router) {
		r.Use(mw.RateLimiter)
		r.Get("/argus/nonce", handlers.Nonce(deps))
		r.Get("/argus/session", handlers.Session(deps))
		r.Post(cfg.CollectPath, handlers.Collect(deps))
		if backend != nil {
			r.Handle("/*", backend)
		}
	})
	return r, nil
}
