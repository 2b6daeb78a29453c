package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/notedrop/gamify/gamify/database/models"
	"github.com/uptrace/bun"
)

// topReferrersCap bounds the admin top-referrers list.
const topReferrersCap = 25

type AnalyticsRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.AnalyticsRecord, error)
	IncrementUpload(ctx context.Context, userID string, fileType models.FileType, status models.FileStatus) error
	IncrementAITask(ctx context.Context, userID string) error
	IncrementReferral(ctx context.Context, userID string) error
	IncrementDay(ctx context.Context, userID string, day time.Time, uploads, aiTasks, referrals int64) error
	GetActivityDays(ctx context.Context, userID string) ([]*models.ActivityDay, error)
	IncrementSnapshot(ctx context.Context, userID string, uploads, aiTasks int64) error
	IncrementReferrerStat(ctx context.Context, userID string) error
	IncrementGrowth(ctx context.Context, day time.Time, newUsers, newReferrals int64) error
	GetTopReferrers(ctx context.Context, n int) ([]*models.ReferrerStat, error)
	GetGrowthRange(ctx context.Context, from, to time.Time) ([]*models.GrowthDay, error)
	GetTopByActivity(ctx context.Context, n int) ([]*models.ActivitySnapshot, error)
}

type analyticsRepository struct {
	db *bun.DB
}

func NewAnalyticsRepository(db *bun.DB) AnalyticsRepository {
	return &analyticsRepository{db: db}
}

func (r *analyticsRepository) GetByUserID(ctx context.Context, userID string) (*models.AnalyticsRecord, error) {
	rec := new(models.AnalyticsRecord)
	err := r.db.NewSelect().
		Model(rec).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// IncrementUpload bumps the cumulative, per-status and per-type upload
// counters in one atomic upsert.
func (r *analyticsRepository) IncrementUpload(ctx context.Context, userID string, fileType models.FileType, status models.FileStatus) error {
	now := time.Now()
	rec := &models.AnalyticsRecord{
		UserID:       userID,
		TotalUploads: 1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	switch status {
	case models.FileStatusPending:
		rec.FilesPending = 1
	case models.FileStatusApproved:
		rec.FilesApproved = 1
	case models.FileStatusRejected:
		rec.FilesRejected = 1
	}
	switch fileType {
	case models.FileTypeImage:
		rec.FilesImage = 1
	case models.FileTypeRaw:
		rec.FilesRaw = 1
	}

	_, err := r.db.NewInsert().
		Model(rec).
		On("CONFLICT (user_id) DO UPDATE").
		Set("total_uploads = analytics_records.total_uploads + 1").
		Set("files_pending = analytics_records.files_pending + EXCLUDED.files_pending").
		Set("files_approved = analytics_records.files_approved + EXCLUDED.files_approved").
		Set("files_rejected = analytics_records.files_rejected + EXCLUDED.files_rejected").
		Set("files_image = analytics_records.files_image + EXCLUDED.files_image").
		Set("files_raw = analytics_records.files_raw + EXCLUDED.files_raw").
		Set("updated_at = ?", now).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to increment upload analytics: %w", err)
	}
	return nil
}

func (r *analyticsRepository) IncrementAITask(ctx context.Context, userID string) error {
	now := time.Now()
	rec := &models.AnalyticsRecord{
		UserID:       userID,
		TotalAITasks: 1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err := r.db.NewInsert().
		Model(rec).
		On("CONFLICT (user_id) DO UPDATE").
		Set("total_ai_tasks = analytics_records.total_ai_tasks + 1").
		Set("updated_at = ?", now).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to increment ai task analytics: %w", err)
	}
	return nil
}

func (r *analyticsRepository) IncrementReferral(ctx context.Context, userID string) error {
	now := time.Now()
	rec := &models.AnalyticsRecord{
		UserID:         userID,
		TotalReferrals: 1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_, err := r.db.NewInsert().
		Model(rec).
		On("CONFLICT (user_id) DO UPDATE").
		Set("total_referrals = analytics_records.total_referrals + 1").
		Set("updated_at = ?", now).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to increment referral analytics: %w", err)
	}
	return nil
}

// IncrementDay upserts the (user_id, day) ledger entry in place. Event-driven
// increments never rewrite historical entries; only reconciliation may.
func (r *analyticsRepository) IncrementDay(ctx context.Context, userID string, day time.Time, uploads, aiTasks, referrals int64) error {
	now := time.Now()
	entry := &models.ActivityDay{
		UserID:    userID,
		Day:       day,
		Uploads:   uploads,
		AITasks:   aiTasks,
		Referrals: referrals,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := r.db.NewInsert().
		Model(entry).
		On("CONFLICT (user_id, day) DO UPDATE").
		Set("uploads = activity_days.uploads + EXCLUDED.uploads").
		Set("ai_tasks = activity_days.ai_tasks + EXCLUDED.ai_tasks").
		Set("referrals = activity_days.referrals + EXCLUDED.referrals").
		Set("updated_at = ?", now).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to increment activity day: %w", err)
	}
	return nil
}

func (r *analyticsRepository) GetActivityDays(ctx context.Context, userID string) ([]*models.ActivityDay, error) {
	var days []*models.ActivityDay
	err := r.db.NewSelect().
		Model(&days).
		Where("user_id = ?", userID).
		Order("day ASC").
		Scan(ctx)
	return days, err
}

func (r *analyticsRepository) IncrementSnapshot(ctx context.Context, userID string, uploads, aiTasks int64) error {
	now := time.Now()
	snap := &models.ActivitySnapshot{
		UserID:    userID,
		Uploads:   uploads,
		AITasks:   aiTasks,
		UpdatedAt: now,
	}
	_, err := r.db.NewInsert().
		Model(snap).
		On("CONFLICT (user_id) DO UPDATE").
		Set("uploads = activity_snapshots.uploads + EXCLUDED.uploads").
		Set("ai_tasks = activity_snapshots.ai_tasks + EXCLUDED.ai_tasks").
		Set("updated_at = ?", now).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to increment activity snapshot: %w", err)
	}
	return nil
}

func (r *analyticsRepository) IncrementReferrerStat(ctx context.Context, userID string) error {
	now := time.Now()
	stat := &models.ReferrerStat{
		UserID:        userID,
		ReferredCount: 1,
		UpdatedAt:     now,
	}
	_, err := r.db.NewInsert().
		Model(stat).
		On("CONFLICT (user_id) DO UPDATE").
		Set("referred_count = referrer_stats.referred_count + 1").
		Set("updated_at = ?", now).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to increment referrer stat: %w", err)
	}
	return nil
}

func (r *analyticsRepository) IncrementGrowth(ctx context.Context, day time.Time, newUsers, newReferrals int64) error {
	now := time.Now()
	entry := &models.GrowthDay{
		Day:          day,
		NewUsers:     newUsers,
		NewReferrals: newReferrals,
		UpdatedAt:    now,
	}
	_, err := r.db.NewInsert().
		Model(entry).
		On("CONFLICT (day) DO UPDATE").
		Set("new_users = growth_days.new_users + EXCLUDED.new_users").
		Set("new_referrals = growth_days.new_referrals + EXCLUDED.new_referrals").
		Set("updated_at = ?", now).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to increment growth day: %w", err)
	}
	return nil
}

func (r *analyticsRepository) GetTopReferrers(ctx context.Context, n int) ([]*models.ReferrerStat, error) {
	if n <= 0 || n > topReferrersCap {
		n = topReferrersCap
	}
	var stats []*models.ReferrerStat
	err := r.db.NewSelect().
		Model(&stats).
		Order("referred_count DESC", "user_id ASC").
		Limit(n).
		Scan(ctx)
	return stats, err
}

func (r *analyticsRepository) GetGrowthRange(ctx context.Context, from, to time.Time) ([]*models.GrowthDay, error) {
	var days []*models.GrowthDay
	err := r.db.NewSelect().
		Model(&days).
		Where("day >= ?", from).
		Where("day <= ?", to).
		Order("day ASC").
		Scan(ctx)
	return days, err
}

func (r *analyticsRepository) GetTopByActivity(ctx context.Context, n int) ([]*models.ActivitySnapshot, error) {
	var snaps []*models.ActivitySnapshot
	err := r.db.NewSelect().
		Model(&snaps).
		OrderExpr("uploads + ai_tasks DESC").
		Order("user_id ASC").
		Limit(n).
		Scan(ctx)
	return snaps, err
}
