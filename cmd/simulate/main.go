package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/oraculus/internal/simulate"
)

// Default configuration constants.
const (
	defaultStudents       = 50
	defaultSubmissionsPer = 5
	defaultTopN           = 50
	defaultWorkers        = 2 // multiplier for runtime.NumCPU()
	defaultTimeout        = 30 * time.Second
	defaultRunTimeout     = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		masterPath  = flag.String("master", "master_data.csv", "Path to the master dataset CSV")
		students    = flag.Int("students", defaultStudents, "Number of synthetic students")
		submissions = flag.Int("submissions", defaultSubmissionsPer, "Submissions per student")
		topN        = flag.Int("top", defaultTopN, "Number of leaderboard entries to fetch")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		logFile     = flag.String("log", "", "Log file for simulation output (default: simulation_TIMESTAMP.log)")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	if err := simulate.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &simulate.Config{
		BaseURL:        *baseURL,
		MasterPath:     *masterPath,
		Students:       *students,
		SubmissionsPer: *submissions,
		TopN:           *topN,
		Workers:        *workers,
		Timeout:        *timeout,
		LogFile:        *logFile,
		Verbose:        *verbose,
	}

	if err := simulate.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		return
	}
}
