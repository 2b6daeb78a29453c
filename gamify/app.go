package gamify

import (
	"context"
	"time"

	"github.com/notedrop/gamify/gamify/database"
	"github.com/notedrop/gamify/gamify/database/repositories"
	"github.com/notedrop/gamify/gamify/ranking"
	"github.com/notedrop/gamify/gamify/reconcile"
	"github.com/notedrop/gamify/gamify/scheduler"
	"github.com/notedrop/gamify/gamify/scoring"
	"github.com/notedrop/gamify/gamify/services"
)

// Job names of the two scheduling triggers.
const (
	JobHourlyRank     = "hourly-rank"
	JobDailyReconcile = "daily-reconcile"
)

func New(cfg Config, version string, commit string) *App {
	return &App{
		Cfg:     cfg,
		Version: version,
		Commit:  commit,
		Jobs:    scheduler.NewManager(),
	}
}

// App wires the aggregation core together: storage, the event-path
// aggregator, the two scheduled jobs and the read services.
type App struct {
	Cfg     Config
	Version string
	Commit  string

	DB *database.DB

	ScoreRepository     repositories.ScoreRepository
	AnalyticsRepository repositories.AnalyticsRepository
	FileRepository      repositories.FileRepository
	ReferralRepository  repositories.ReferralRepository
	UserRepository      repositories.UserRepository

	Aggregator  *scoring.Aggregator
	RankEngine  *ranking.Engine
	Reconciler  *reconcile.Reconciler
	Leaderboard *services.LeaderboardService
	Analytics   *services.AnalyticsService

	Jobs *scheduler.Manager
}

// Setup connects storage and builds every component. The schema is created
// if absent.
func (a *App) Setup(ctx context.Context) error {
	db, err := database.New(ctx, a.Cfg.DB)
	if err != nil {
		return err
	}
	if err := db.InitializeSchema(ctx); err != nil {
		db.Close()
		return err
	}
	a.DB = db

	bunDB := db.BunDB()
	a.ScoreRepository = repositories.NewScoreRepository(bunDB)
	a.AnalyticsRepository = repositories.NewAnalyticsRepository(bunDB)
	a.FileRepository = repositories.NewFileRepository(bunDB)
	a.ReferralRepository = repositories.NewReferralRepository(bunDB)
	a.UserRepository = repositories.NewUserRepository(bunDB)

	a.Aggregator = scoring.NewAggregator(a.AnalyticsRepository, a.ScoreRepository)
	a.RankEngine = ranking.NewEngine(a.ScoreRepository)
	a.Reconciler = reconcile.NewReconciler(a.ScoreRepository, a.FileRepository, a.ReferralRepository, a.UserRepository)

	cacheTTL := time.Duration(a.Cfg.Jobs.CacheTTLSeconds) * time.Second
	a.Leaderboard = services.NewLeaderboardService(a.ScoreRepository, a.UserRepository, cacheTTL)
	a.Analytics = services.NewAnalyticsService(a.AnalyticsRepository)

	return nil
}

// StartJobs registers the two periodic triggers. Both are idempotent and
// safe to run back-to-back or to skip a cycle.
func (a *App) StartJobs() {
	rankInterval := time.Duration(a.Cfg.Jobs.RankIntervalMinutes) * time.Minute
	reconcileInterval := time.Duration(a.Cfg.Jobs.ReconcileIntervalMinutes) * time.Minute

	a.Jobs.StartPeriodic(JobHourlyRank, "recompute leaderboard ranks", rankInterval, func(ctx context.Context) error {
		_, err := a.RankEngine.RecomputeRanks(ctx)
		if err == nil {
			a.Leaderboard.Invalidate()
		}
		return err
	})

	a.Jobs.StartPeriodic(JobDailyReconcile, "reconcile score records against source of truth", reconcileInterval, func(ctx context.Context) error {
		_, err := a.Reconciler.ReconcileAll(ctx)
		return err
	})
}

func (a *App) Close() {
	if a.Jobs != nil {
		a.Jobs.Shutdown(10 * time.Second)
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
