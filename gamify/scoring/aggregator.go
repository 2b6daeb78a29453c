package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/notedrop/gamify/gamify/database/models"
	"github.com/notedrop/gamify/gamify/database/repositories"
	"github.com/notedrop/gamify/gamify/logger"
)

// Aggregator consumes business events one at a time and applies atomic
// deltas to the per-user analytics and score rollups. Analytics and score
// writes are independent operations; a failure in one leaves the other
// intact, and the reconciliation job bounds any resulting drift. Badge
// writes are likewise unordered across concurrent same-user events, so the
// stored badge can transiently lag the point total; the next reconciliation
// pass re-derives it from the settled total.
type Aggregator struct {
	analytics repositories.AnalyticsRepository
	scores    repositories.ScoreRepository
}

func NewAggregator(analytics repositories.AnalyticsRepository, scores repositories.ScoreRepository) *Aggregator {
	return &Aggregator{
		analytics: analytics,
		scores:    scores,
	}
}

// Apply validates and dispatches a single event. Malformed events are
// rejected and must not be retried; persistence failures are surfaced to the
// caller and the event counts as not applied.
func (a *Aggregator) Apply(ctx context.Context, event Event) error {
	if event == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidEvent)
	}
	if err := event.Validate(); err != nil {
		slog.Warn("Rejected malformed event",
			slog.String("type", "event"),
			slog.String("operation", "Apply"),
			slog.String("error", err.Error()))
		return err
	}

	start := time.Now()
	switch e := event.(type) {
	case UploadRecorded:
		err := a.applyUpload(ctx, e)
		logger.LogEvent("upload", e.UserID, time.Since(start), err)
		return err
	case AITaskRecorded:
		err := a.applyAITask(ctx, e)
		logger.LogEvent("ai_task", e.UserID, time.Since(start), err)
		return err
	case ReferralRecorded:
		err := a.applyReferral(ctx, e)
		logger.LogEvent("referral", e.ReferrerID, time.Since(start), err)
		return err
	default:
		return fmt.Errorf("%w: unhandled event type %T", ErrInvalidEvent, event)
	}
}

func (a *Aggregator) applyUpload(ctx context.Context, e UploadRecorded) error {
	day := today()

	if err := a.analytics.IncrementUpload(ctx, e.UserID, e.FileType, e.Status); err != nil {
		return err
	}
	if err := a.analytics.IncrementDay(ctx, e.UserID, day, 1, 0, 0); err != nil {
		return err
	}
	if err := a.analytics.IncrementSnapshot(ctx, e.UserID, 1, 0); err != nil {
		return err
	}

	// Only approved uploads score.
	if e.Status != models.FileStatusApproved {
		return nil
	}

	rec, err := a.scores.ApplyUploadDelta(ctx, e.UserID, PointsPerUpload)
	if err != nil {
		return err
	}
	if err := a.scores.SetBadge(ctx, e.UserID, BadgeFor(rec.Points)); err != nil {
		return fmt.Errorf("failed to update badge: %w", err)
	}
	return nil
}

func (a *Aggregator) applyAITask(ctx context.Context, e AITaskRecorded) error {
	day := today()

	if err := a.analytics.IncrementAITask(ctx, e.UserID); err != nil {
		return err
	}
	if err := a.analytics.IncrementDay(ctx, e.UserID, day, 0, 1, 0); err != nil {
		return err
	}
	if err := a.analytics.IncrementSnapshot(ctx, e.UserID, 0, 1); err != nil {
		return err
	}
	// AI tasks never change points; any award for them happens elsewhere.
	// They still count as activity on the score record.
	return a.scores.TouchActivity(ctx, e.UserID)
}

func (a *Aggregator) applyReferral(ctx context.Context, e ReferralRecorded) error {
	day := today()

	if err := a.analytics.IncrementReferral(ctx, e.ReferrerID); err != nil {
		return err
	}
	if err := a.analytics.IncrementDay(ctx, e.ReferrerID, day, 0, 0, 1); err != nil {
		return err
	}
	if err := a.analytics.IncrementReferrerStat(ctx, e.ReferrerID); err != nil {
		return err
	}
	// The referred user is a signup driven by this referral.
	if err := a.analytics.IncrementGrowth(ctx, day, 1, 1); err != nil {
		return err
	}

	rec, err := a.scores.ApplyReferralDelta(ctx, e.ReferrerID, PointsPerReferral)
	if err != nil {
		return err
	}
	if err := a.scores.SetBadge(ctx, e.ReferrerID, BadgeFor(rec.Points)); err != nil {
		return fmt.Errorf("failed to update badge: %w", err)
	}
	return nil
}

// today returns the current UTC calendar day, the key of the daily ledgers.
func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
