package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/notedrop/gamify/gamify"
	"github.com/notedrop/gamify/gamify/database"
	"github.com/notedrop/gamify/gamify/database/repositories"
	"github.com/notedrop/gamify/gamify/logger"
	"github.com/notedrop/gamify/gamify/migration"
	"github.com/notedrop/gamify/gamify/ranking"
	"github.com/notedrop/gamify/gamify/reconcile"
)

func main() {
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := gamify.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	slog.SetDefault(slog.New(logger.NewHandler(cfg.Log.Level)))

	ctx := context.Background()

	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		slog.Error("Failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize schema", slog.Any("error", err))
		os.Exit(1)
	}

	mongoDB, err := migration.Connect(ctx, cfg.Legacy.URI, cfg.Legacy.Database)
	if err != nil {
		slog.Error("Failed to connect to legacy database", slog.Any("error", err))
		os.Exit(1)
	}

	importer := migration.NewImporter(db.BunDB(), mongoDB)
	if err := importer.ImportAll(ctx); err != nil {
		logger.LogError("Import failed", err)
		os.Exit(1)
	}

	// Rebuild the rollups from the freshly imported source of truth.
	bunDB := db.BunDB()
	scores := repositories.NewScoreRepository(bunDB)
	files := repositories.NewFileRepository(bunDB)
	referrals := repositories.NewReferralRepository(bunDB)
	users := repositories.NewUserRepository(bunDB)

	// Reconcile every imported user individually: score records do not exist
	// yet, and ReconcileUser creates them with get-or-create semantics.
	reconciler := reconcile.NewReconciler(scores, files, referrals, users)
	ids, err := users.GetAllUserIDs(ctx)
	if err != nil {
		slog.Error("Failed to list imported users", slog.Any("error", err))
		os.Exit(1)
	}
	for _, id := range ids {
		if _, err := reconciler.ReconcileUser(ctx, id); err != nil {
			slog.Error("Failed to seed score record, continuing",
				slog.String("user_id", id),
				slog.Any("error", err))
		}
	}

	engine := ranking.NewEngine(scores)
	if _, err := engine.RecomputeRanks(ctx); err != nil {
		slog.Error("Post-import rank pass failed", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("Migration completed successfully")
}
