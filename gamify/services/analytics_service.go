package services

import (
	"context"
	"fmt"
	"time"

	"github.com/notedrop/gamify/gamify/database/models"
	"github.com/notedrop/gamify/gamify/database/repositories"
)

// UserAnalytics is the per-user dashboard view: the rollup record plus the
// daily activity ledger behind it.
type UserAnalytics struct {
	Record *models.AnalyticsRecord
	Days   []*models.ActivityDay
}

// AnalyticsService serves the dashboard and admin read paths over the
// analytics rollups.
type AnalyticsService struct {
	analytics repositories.AnalyticsRepository
}

func NewAnalyticsService(analytics repositories.AnalyticsRepository) *AnalyticsService {
	return &AnalyticsService{analytics: analytics}
}

func (s *AnalyticsService) GetUserAnalytics(ctx context.Context, userID string) (*UserAnalytics, error) {
	rec, err := s.analytics.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	days, err := s.analytics.GetActivityDays(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load activity ledger: %w", err)
	}
	return &UserAnalytics{Record: rec, Days: days}, nil
}

func (s *AnalyticsService) GetTopReferrers(ctx context.Context, n int) ([]*models.ReferrerStat, error) {
	return s.analytics.GetTopReferrers(ctx, n)
}

func (s *AnalyticsService) GetGrowthRange(ctx context.Context, from, to time.Time) ([]*models.GrowthDay, error) {
	return s.analytics.GetGrowthRange(ctx, from, to)
}

func (s *AnalyticsService) GetTopByActivity(ctx context.Context, n int) ([]*models.ActivitySnapshot, error) {
	return s.analytics.GetTopByActivity(ctx, n)
}
