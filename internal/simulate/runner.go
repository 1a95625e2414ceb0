// Package simulate drives a synthetic student cohort against a running
// competition server and verifies the scores and leaderboard it reports.
package simulate

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/oraculus/internal/config"
	"github.com/okian/oraculus/internal/domain/dataset"
	"github.com/okian/oraculus/internal/domain/scoring"
	"github.com/okian/oraculus/pkg/logger"
)

// Run executes the complete simulation.
func Run(ctx context.Context, cfg *Config) error {
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting competition simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("master", cfg.MasterPath),
		logger.Int("students", cfg.Students),
		logger.Int("perStudent", cfg.SubmissionsPer),
		logger.Int("workers", cfg.Workers))

	if err := checkServiceHealth(ctx, cfg); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// The simulator must score with the exact gain matrix the server uses,
	// so it loads the same configuration sources.
	serverCfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load server configuration: %w", err)
	}

	master, err := dataset.LoadFile(cfg.MasterPath)
	if err != nil {
		return fmt.Errorf("load master dataset: %w", err)
	}
	scorer := scoring.NewScorer(master, scoring.Matrix{
		TP: serverCfg.Gain.TP,
		TN: serverCfg.Gain.TN,
		FP: serverCfg.Gain.FP,
		FN: serverCfg.Gain.FN,
	})

	subs, err := generateSubmissions(ctx, cfg, master, scorer, stats)
	if err != nil {
		return fmt.Errorf("submission generation failed: %w", err)
	}

	if err := submitAll(ctx, cfg, subs, stats); err != nil {
		return fmt.Errorf("submission run failed: %w", err)
	}

	board, err := getLeaderboard(ctx, cfg, stats)
	if err != nil {
		return fmt.Errorf("leaderboard retrieval failed: %w", err)
	}

	if err := verifyLeaderboard(subs, board, stats); err != nil {
		return fmt.Errorf("leaderboard verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	logger.Get().Info(ctx, "simulation completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, cfg *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(cfg.Timeout)
	resp, err := client.get(ctx, cfg.BaseURL+"/healthz", "simulator", "")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()

	// Any 200 counts as healthy; the endpoint serves Prometheus metrics.
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// displayFinalStats prints the final simulation statistics.
func displayFinalStats(stats *Stats) {
	var acceptRate, subsPerSecond float64
	if stats.Submitted > 0 {
		acceptRate = float64(stats.Accepted) / float64(stats.Submitted) * 100
	}
	if stats.Duration > 0 {
		subsPerSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("failed", stats.Failed),
		logger.Int("scoreMismatches", stats.ScoreMismatches),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("submissionsPerSecond", subsPerSecond))
}
