package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/soc-analytics/backend/internal/api"
	"github.com/soc-analytics/backend/internal/cache"
	"github.com/soc-analytics/backend/internal/config"
	"github.com/soc-analytics/backend/internal/filter"
	"github.com/soc-analytics/backend/internal/logging"
	"github.com/soc-analytics/backend/internal/metrics"
	"github.com/soc-analytics/backend/internal/session"
	"github.com/soc-analytics/backend/internal/storage"
	"github.com/soc-analytics/backend/internal/upload"
	"github.com/soc-analytics/backend/internal/upstream"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const jobRetention = time.Hour

func main() {
	configPath := flag.String("config", defaultConfigPath(), "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, *configPath, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

// defaultConfigPath places the config next to the executable.
func defaultConfigPath() string {
	exePath, err := os.Executable()
	if err != nil {
		return "socanalytics.yaml"
	}
	return filepath.Join(filepath.Dir(exePath), "socanalytics.yaml")
}

func run(cfg *config.AppConfig, configPath string, logger *zap.Logger) error {
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mt := metrics.New(reg)

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	archive, err := storage.NewLocalArchive(cfg.Storage.UploadsDirectory)
	if err != nil {
		return fmt.Errorf("failed to initialize upload archive: %w", err)
	}

	resultCache, closeCache, err := openCache(cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	live := upstream.NewClient(upstream.Config{
		BaseURL: cfg.Upstream.BaseURL,
		Token:   cfg.Upstream.Token,
		Timeout: cfg.UpstreamTimeout(),
	}, logger, mt)

	f := filter.New(
		filter.WithLocation(loc),
		filter.WithLogger(logger),
		filter.WithMetrics(mt),
	)

	opts := []session.Option{
		session.WithLogger(logger),
		session.WithMetrics(mt),
		session.WithMaxDatasets(cfg.Processing.MaxDatasets),
	}
	if resultCache != nil {
		opts = append(opts, session.WithCache(resultCache, cfg.CacheTTL()))
	}
	if live.Configured() {
		opts = append(opts, session.WithUpstream(live))
	}
	datasets := session.NewManager(store, f, opts...)

	jobs := upload.NewManager(archive, datasets, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runCleanup(ctx, cfg, datasets, jobs, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	origins := splitList(cfg.Server.AllowOrigins)
	api.SetupMiddleware(e, api.MiddlewareConfig{
		Logger:         logger,
		RequestLogging: cfg.Logging.RequestLogging,
		BodyLimit:      cfg.Server.BodyLimit,
		EnableCORS:     cfg.Server.EnableCORS,
		AllowOrigins:   origins,
	})

	handlers := api.NewHandlers(&api.Dependencies{
		Datasets:          datasets,
		Archive:           archive,
		Jobs:              jobs,
		Parsers:           f.Parsers(),
		Location:          loc,
		AllowedExtensions: cfg.AllowedExtensions(),
		AllowOrigins:      origins,
		DefaultListLimit:  cfg.Processing.DefaultListLimit,
		KeepUploads:       cfg.Storage.KeepUploads,
		Version:           Version,
		Logger:            logger,
	})
	api.RegisterRoutes(e, handlers)
	api.RegisterWebSocketRoutes(e, handlers)
	if cfg.Metrics.Enabled {
		api.RegisterMetricsRoute(e, cfg.Metrics.Path, reg)
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second,
	}

	printBanner(cfg, configPath, loc)
	logger.Info("server starting",
		zap.String("addr", s.Addr),
		zap.String("version", Version),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("cache", cfg.Cache.Backend),
		zap.Bool("upstream", live.Configured()))

	errCh := make(chan error, 1)
	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	jobs.Wait()
	return nil
}

func openStore(cfg *config.AppConfig, logger *zap.Logger) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		store, err := storage.NewDuckStore(cfg.DatabasePath(), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open dataset store: %w", err)
		}
		return store, nil
	}
}

// openCache returns a nil cache when caching is disabled.
func openCache(cfg *config.AppConfig) (cache.Cache, func(), error) {
	switch cfg.Cache.Backend {
	case "none":
		return nil, func() {}, nil
	case "redis":
		rc, err := cache.NewRedisCache(context.Background(), cache.RedisConfig{
			Addr:      cfg.Cache.RedisAddr,
			Password:  cfg.Cache.RedisPassword,
			DB:        cfg.Cache.RedisDB,
			KeyPrefix: cfg.Cache.KeyPrefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return rc, func() { rc.Close() }, nil
	default:
		return cache.NewMemoryCache(cfg.Cache.MaxEntries), func() {}, nil
	}
}

func runCleanup(ctx context.Context, cfg *config.AppConfig, datasets *session.Manager, jobs *upload.Manager, logger *zap.Logger) {
	interval := cfg.CleanupInterval()
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := datasets.CleanupIdle(cfg.IdleTimeout()); n > 0 {
				logger.Info("evicted idle datasets", zap.Int("count", n))
			}
			jobs.CleanupOldJobs(jobRetention)
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printBanner(cfg *config.AppConfig, configPath string, loc *time.Location) {
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           SOC Analytics Backend                           ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Timezone:   %-45s║\n", loc.String())
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.Storage.DataDirectory)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
}
