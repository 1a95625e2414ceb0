package simulate

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/okian/oraculus/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "simulation_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the simulation tool.
func ShowHelp() {
	os.Stdout.WriteString(`Oraculus Competition Simulator
==============================

Drives a synthetic student cohort against a running competition server and
verifies reported scores and the leaderboard against local computation.

Usage:
  go run cmd/simulate/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -master string
        Path to the master dataset CSV the server was started with
  -students int
        Number of synthetic students (default 50)
  -submissions int
        Submissions per student (default 5)
  -top int
        Number of leaderboard entries to fetch (default 50)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -log string
        Log file for simulation output (default: simulation_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Simulate against a locally running server
  go run cmd/simulate/main.go -master master_data.csv

  # Heavier run
  go run cmd/simulate/main.go -master master_data.csv -students 200 -submissions 10 -workers 16
`)
}
