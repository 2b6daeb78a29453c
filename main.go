package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/notedrop/gamify/gamify"
	"github.com/notedrop/gamify/gamify/logger"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	path := flag.String("config", "config.toml", "path to config")
	rankNow := flag.Bool("rank-now", false, "run a rank pass on startup")
	reconcileNow := flag.Bool("reconcile-now", false, "run a full reconciliation pass on startup")
	resetDB := flag.Bool("reset-db", false, "truncate all application tables before starting")
	flag.Parse()

	cfg, err := gamify.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	slog.SetDefault(slog.New(logger.NewHandler(cfg.Log.Level)))

	slog.Info("Starting NoteDrop aggregation engine",
		slog.String("version", version),
		slog.String("commit", commit))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	app := gamify.New(*cfg, version, commit)

	dbStart := time.Now()
	if err := app.Setup(ctx); err != nil {
		logger.LogError("Failed to set up application", err,
			slog.Duration("attempted_for", time.Since(dbStart)))
		os.Exit(1)
	}
	defer app.Close()

	slog.Info("Database connected and schema ready",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStart)))

	if *resetDB {
		if err := app.DB.ResetAppTables(ctx); err != nil {
			slog.Error("Failed to reset tables", slog.Any("error", err))
			os.Exit(1)
		}
	}

	if *reconcileNow {
		start := time.Now()
		count, err := app.Reconciler.ReconcileAll(ctx)
		logger.LogJob(gamify.JobDailyReconcile, time.Since(start), err)
		slog.Info("Startup reconciliation finished", slog.Int("reconciled", count))
	}

	if *rankNow {
		start := time.Now()
		count, err := app.RankEngine.RecomputeRanks(ctx)
		logger.LogJob(gamify.JobHourlyRank, time.Since(start), err)
		slog.Info("Startup rank pass finished", slog.Int("ranked", count))
	}

	app.StartJobs()
	logger.LogSystem("Aggregation engine is now running. Press CTRL-C to exit.")

	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-s

	slog.Info("Shutting down...")
}
