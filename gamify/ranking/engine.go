package ranking

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/notedrop/gamify/gamify/database/repositories"
)

// Engine recomputes the global ordering of active score records. Ranking is
// a batch operation run on a schedule, never per event: it reads a snapshot,
// assigns dense 1-based ranks and writes them as one logical unit. Racing
// point increments are harmless; the next pass corrects the ordering.
type Engine struct {
	scores  repositories.ScoreRepository
	running atomic.Bool
}

func NewEngine(scores repositories.ScoreRepository) *Engine {
	return &Engine{scores: scores}
}

// RecomputeRanks assigns rank 1..N over all active records and returns how
// many were ranked. Running it twice with no intervening events yields
// identical assignments.
func (e *Engine) RecomputeRanks(ctx context.Context) (int, error) {
	if !e.running.CompareAndSwap(false, true) {
		slog.Warn("Rank pass already in progress, skipping",
			slog.String("type", "job"),
			slog.String("operation", "RecomputeRanks"))
		return 0, nil
	}
	defer e.running.Store(false)

	start := time.Now()

	records, err := e.scores.GetActiveOrdered(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load active score records: %w", err)
	}

	assignments := make([]repositories.RankAssignment, len(records))
	for i, rec := range records {
		assignments[i] = repositories.RankAssignment{
			UserID: rec.UserID,
			Rank:   i + 1,
		}
	}

	if err := e.scores.UpdateRanks(ctx, assignments); err != nil {
		return 0, fmt.Errorf("failed to write rank batch: %w", err)
	}

	slog.Info("Rank pass complete",
		slog.String("type", "job"),
		slog.String("operation", "RecomputeRanks"),
		slog.Int("ranked", len(assignments)),
		slog.Duration("took", time.Since(start)))
	return len(assignments), nil
}
