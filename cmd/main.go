package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/oraculus/internal/adapters/http/api"
	"github.com/okian/oraculus/internal/adapters/http/swagger"
	"github.com/okian/oraculus/internal/adapters/repository"
	app "github.com/okian/oraculus/internal/app"
	"github.com/okian/oraculus/internal/config"
	"github.com/okian/oraculus/internal/domain/badge"
	"github.com/okian/oraculus/internal/domain/dataset"
	"github.com/okian/oraculus/internal/domain/scoring"
	"github.com/okian/oraculus/pkg/logger"
	"github.com/okian/oraculus/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics;
	// the metrics package collects its own system metrics.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// The master dataset is the competition's ground truth; refusing to
	// start without it beats serving wrong scores.
	master, err := dataset.LoadFile(cfg.MasterDataPath)
	if err != nil {
		log.Fatal(ctx, "failed to load master dataset", logger.String("path", cfg.MasterDataPath), logger.Error(err))
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal(ctx, "failed to open submission store", logger.String("db_path", cfg.DBPath), logger.Error(err))
	}

	deadline, err := cfg.DeadlineAt()
	if err != nil {
		log.Fatal(ctx, "invalid competition deadline", logger.String("deadline", cfg.Competition.Deadline), logger.Error(err))
	}

	svc := app.New(
		app.WithLogger(log),
		app.WithStore(store),
		app.WithMaster(master),
		app.WithGain(scoring.Matrix{
			TP: cfg.Gain.TP,
			TN: cfg.Gain.TN,
			FP: cfg.Gain.FP,
			FN: cfg.Gain.FN,
		}),
		app.WithThresholds(thresholdsFrom(cfg)),
		app.WithBadgeInfo(badgeInfoFrom(cfg)),
		app.WithDeadline(deadline),
		app.WithTeacherBypass(cfg.Competition.TeacherBypassDeadline),
		app.WithDropUnknownIDs(cfg.DropUnknownIDs),
		app.WithFakesOnPublic(cfg.FakesOnPublic),
	)
	if err := svc.Start(ctx); err != nil {
		log.Fatal(ctx, "failed to start competition engine", logger.Error(err))
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	// HTTP mux and routes.
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc, cfg.MaxLeaderboardLimit).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("competition", cfg.Competition.Name),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			return
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// openStore selects sqlite durability when a db path is configured, falling
// back to the in-memory store otherwise.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.DBPath == "" {
		return repository.NewMemoryStore(ctx), nil
	}
	return repository.NewSQLiteStore(ctx, cfg.DBPath)
}

func badgeInfoFrom(cfg *config.Config) map[string]badge.Info {
	out := make(map[string]badge.Info, len(cfg.Badges))
	for kind, info := range cfg.Badges {
		out[kind] = badge.Info{Name: info.Name, Emoji: info.Emoji}
	}
	return out
}

func thresholdsFrom(cfg *config.Config) []scoring.Threshold {
	out := make([]scoring.Threshold, 0, len(cfg.Thresholds))
	for _, t := range cfg.Thresholds {
		out = append(out, scoring.Threshold{
			MinScore: t.MinScore,
			Category: t.Category,
			Message:  t.Message,
			Emoji:    t.Emoji,
		})
	}
	return out
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater periodically refreshes service gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats pushes the gauge updates as a side effect.
			_ = svc.GetStats()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
