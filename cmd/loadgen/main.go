package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/sonar/internal/loadgen"
	"github.com/okian/sonar/pkg/logger"
)

const defaultRunTimeout = 10 * time.Minute

func main() {
	def := loadgen.DefaultConfig()
	var (
		baseURL    = flag.String("url", def.BaseURL, "Base URL of the service")
		users      = flag.Int("users", def.Users, "Number of synthetic users")
		events     = flag.Int("events", def.EventsPerUser, "Events submitted per user")
		batch      = flag.Int("batch", def.BatchSize, "Events per ranking job")
		musicRatio = flag.Float64("music-ratio", def.MusicRatio, "Share of music events in [0, 1]")
		workers    = flag.Int("workers", def.Workers, "Concurrent submitters and pollers")
		top        = flag.Int("top", def.TopN, "Ranking page fetched per user for order checks")
		timeout    = flag.Duration("timeout", def.Timeout, "HTTP request timeout")
		wait       = flag.Duration("wait", def.WaitTimeout, "How long to wait for events to be ranked")
		seed       = flag.Uint64("seed", def.Seed, "Generator seed")
		noCatalog  = flag.Bool("no-catalog", false, "Skip uploading the synthetic artist catalog")
		outputFile = flag.String("output", "", "Write the submitted jobs as JSON to this file")
		logFormat  = flag.String("log-format", logger.FormatText, "Log format: text or json")
	)
	flag.Parse()

	if err := logger.InitWithWriter(os.Stdout, *logFormat); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := def
	cfg.BaseURL = *baseURL
	cfg.Users = *users
	cfg.EventsPerUser = *events
	cfg.BatchSize = *batch
	cfg.MusicRatio = *musicRatio
	cfg.Workers = *workers
	cfg.TopN = *top
	cfg.Timeout = *timeout
	cfg.WaitTimeout = *wait
	cfg.Seed = *seed
	cfg.SeedCatalog = !*noCatalog
	cfg.OutputFile = *outputFile

	if _, err := loadgen.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "load run failed", logger.Error(err))
		os.Exit(1)
	}
}
