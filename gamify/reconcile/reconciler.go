package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/notedrop/gamify/gamify/database/models"
	"github.com/notedrop/gamify/gamify/database/repositories"
	"github.com/notedrop/gamify/gamify/scoring"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const maxConcurrentUsers = 5

// Reconciler recomputes count-derived score fields from the source-of-truth
// collections, overwriting whatever the event path accumulated. It is the
// authority that bounds drift: lost or duplicated events are corrected on the
// next pass. Points are deliberately not recomputed here; they accrue on the
// event path only.
type Reconciler struct {
	scores    repositories.ScoreRepository
	files     repositories.FileRepository
	referrals repositories.ReferralRepository
	users     repositories.UserRepository
	sem       *semaphore.Weighted
	running   atomic.Bool
}

func NewReconciler(
	scores repositories.ScoreRepository,
	files repositories.FileRepository,
	referrals repositories.ReferralRepository,
	users repositories.UserRepository,
) *Reconciler {
	return &Reconciler{
		scores:    scores,
		files:     files,
		referrals: referrals,
		users:     users,
		sem:       semaphore.NewWeighted(maxConcurrentUsers),
	}
}

// ReconcileUser restores one user's count fields to ground truth and
// re-derives the badge from the preserved point total.
func (r *Reconciler) ReconcileUser(ctx context.Context, userID string) (*models.ScoreRecord, error) {
	approved, downloads, views, err := r.files.GetApprovedAggregates(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate files for %s: %w", userID, err)
	}
	referralCount, err := r.referrals.CountByReferrer(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count referrals for %s: %w", userID, err)
	}

	rec, err := r.scores.OverwriteCounts(ctx, userID, repositories.SourceCounts{
		ApprovedFiles:  approved,
		Referrals:      referralCount,
		TotalDownloads: downloads,
		TotalViews:     views,
	})
	if err != nil {
		return nil, err
	}

	badge := scoring.BadgeFor(rec.Points)
	if err := r.scores.SetBadge(ctx, userID, badge); err != nil {
		return nil, fmt.Errorf("failed to re-derive badge for %s: %w", userID, err)
	}
	rec.Badge = badge

	// Refresh the display mirrors the core owns on the user record.
	if err := r.users.UpdateMirrors(ctx, userID, rec.Points, referralCount); err != nil {
		return nil, err
	}

	slog.Debug("Reconciled user",
		slog.String("type", "job"),
		slog.String("operation", "ReconcileUser"),
		slog.String("user_id", userID),
		slog.Int64("approved_files", approved),
		slog.Int64("referrals", referralCount))
	return rec, nil
}

// ReconcileAll walks every active score record. A failed user is logged and
// skipped; it stays stale until the next pass, never half-written. Returns
// how many users were reconciled.
func (r *Reconciler) ReconcileAll(ctx context.Context) (int, error) {
	if !r.running.CompareAndSwap(false, true) {
		slog.Warn("Reconciliation already in progress, skipping",
			slog.String("type", "job"),
			slog.String("operation", "ReconcileAll"))
		return 0, nil
	}
	defer r.running.Store(false)

	start := time.Now()

	ids, err := r.scores.GetActiveUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active users: %w", err)
	}

	var reconciled, failed int32
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		if err := r.sem.Acquire(gctx, 1); err != nil {
			// Context cancelled mid-run; already reconciled users stand.
			break
		}
		id := id
		g.Go(func() error {
			defer r.sem.Release(1)
			if _, err := r.ReconcileUser(gctx, id); err != nil {
				atomic.AddInt32(&failed, 1)
				slog.Error("Failed to reconcile user, continuing",
					slog.String("type", "job"),
					slog.String("operation", "ReconcileAll"),
					slog.String("user_id", id),
					slog.String("error", err.Error()))
				return nil
			}
			atomic.AddInt32(&reconciled, 1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(atomic.LoadInt32(&reconciled)), err
	}

	slog.Info("Reconciliation pass complete",
		slog.String("type", "job"),
		slog.String("operation", "ReconcileAll"),
		slog.Int("reconciled", int(atomic.LoadInt32(&reconciled))),
		slog.Int("failed", int(atomic.LoadInt32(&failed))),
		slog.Duration("took", time.Since(start)))
	return int(atomic.LoadInt32(&reconciled)), nil
}
