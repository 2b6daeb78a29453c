package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/notedrop/gamify/gamify/database/models"
	"github.com/uptrace/bun"
)

// RankAssignment pairs a user with the rank the rank engine computed for it.
type RankAssignment struct {
	UserID string
	Rank   int
}

// SourceCounts is the ground truth the reconciliation job derives for one user.
type SourceCounts struct {
	ApprovedFiles  int64
	Referrals      int64
	TotalDownloads int64
	TotalViews     int64
}

type ScoreRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.ScoreRecord, error)
	ApplyUploadDelta(ctx context.Context, userID string, points int64) (*models.ScoreRecord, error)
	ApplyReferralDelta(ctx context.Context, userID string, points int64) (*models.ScoreRecord, error)
	TouchActivity(ctx context.Context, userID string) error
	SetBadge(ctx context.Context, userID string, badge models.Badge) error
	OverwriteCounts(ctx context.Context, userID string, counts SourceCounts) (*models.ScoreRecord, error)
	GetActiveOrdered(ctx context.Context) ([]*models.ScoreRecord, error)
	UpdateRanks(ctx context.Context, assignments []RankAssignment) error
	GetPage(ctx context.Context, offset, limit int) ([]*models.ScoreRecord, error)
	GetTopN(ctx context.Context, n int) ([]*models.ScoreRecord, error)
	GetActiveUserIDs(ctx context.Context) ([]string, error)
	Deactivate(ctx context.Context, userID string) error
}

type scoreRepository struct {
	db *bun.DB
}

func NewScoreRepository(db *bun.DB) ScoreRepository {
	return &scoreRepository{db: db}
}

func (r *scoreRepository) GetByUserID(ctx context.Context, userID string) (*models.ScoreRecord, error) {
	rec := new(models.ScoreRecord)
	err := r.db.NewSelect().
		Model(rec).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		slog.Error("Database error when getting score record",
			slog.String("type", "db"),
			slog.String("operation", "GetByUserID"),
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return nil, err
	}
	return rec, nil
}

// ApplyUploadDelta adds one approved upload and its point award as a single
// atomic upsert. Concurrent deltas for the same user never lose updates.
func (r *scoreRepository) ApplyUploadDelta(ctx context.Context, userID string, points int64) (*models.ScoreRecord, error) {
	now := time.Now()
	rec := &models.ScoreRecord{
		UserID:         userID,
		Points:         points,
		UploadCount:    1,
		Badge:          models.BadgeNone,
		Active:         true,
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_, err := r.db.NewInsert().
		Model(rec).
		On("CONFLICT (user_id) DO UPDATE").
		Set("points = score_records.points + ?", points).
		Set("upload_count = score_records.upload_count + 1").
		Set("last_activity_at = ?", now).
		Set("updated_at = ?", now).
		Returning("points").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to apply upload delta: %w", err)
	}
	return rec, nil
}

// ApplyReferralDelta adds one referral and its point bonus atomically.
func (r *scoreRepository) ApplyReferralDelta(ctx context.Context, userID string, points int64) (*models.ScoreRecord, error) {
	now := time.Now()
	rec := &models.ScoreRecord{
		UserID:         userID,
		Points:         points,
		ReferralCount:  1,
		Badge:          models.BadgeNone,
		Active:         true,
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_, err := r.db.NewInsert().
		Model(rec).
		On("CONFLICT (user_id) DO UPDATE").
		Set("points = score_records.points + ?", points).
		Set("referral_count = score_records.referral_count + 1").
		Set("last_activity_at = ?", now).
		Set("updated_at = ?", now).
		Returning("points").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to apply referral delta: %w", err)
	}
	return rec, nil
}

func (r *scoreRepository) TouchActivity(ctx context.Context, userID string) error {
	now := time.Now()
	rec := &models.ScoreRecord{
		UserID:         userID,
		Badge:          models.BadgeNone,
		Active:         true,
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_, err := r.db.NewInsert().
		Model(rec).
		On("CONFLICT (user_id) DO UPDATE").
		Set("last_activity_at = ?", now).
		Set("updated_at = ?", now).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to touch activity: %w", err)
	}
	return nil
}

func (r *scoreRepository) SetBadge(ctx context.Context, userID string, badge models.Badge) error {
	_, err := r.db.NewUpdate().
		Model((*models.ScoreRecord)(nil)).
		Set("badge = ?", badge).
		Set("updated_at = ?", time.Now()).
		Where("user_id = ?", userID).
		Exec(ctx)
	return err
}

// OverwriteCounts replaces the count-derived fields with reconciled ground
// truth. Points are left untouched; they accrue on the event path only.
func (r *scoreRepository) OverwriteCounts(ctx context.Context, userID string, counts SourceCounts) (*models.ScoreRecord, error) {
	now := time.Now()
	rec := &models.ScoreRecord{
		UserID:         userID,
		UploadCount:    counts.ApprovedFiles,
		ReferralCount:  counts.Referrals,
		TotalDownloads: counts.TotalDownloads,
		TotalViews:     counts.TotalViews,
		Badge:          models.BadgeNone,
		Active:         true,
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_, err := r.db.NewInsert().
		Model(rec).
		On("CONFLICT (user_id) DO UPDATE").
		Set("upload_count = EXCLUDED.upload_count").
		Set("referral_count = EXCLUDED.referral_count").
		Set("total_downloads = EXCLUDED.total_downloads").
		Set("total_views = EXCLUDED.total_views").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("points, badge, rank, active").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to overwrite score counts: %w", err)
	}
	return rec, nil
}

// GetActiveOrdered returns all active records in ranking order. The exact
// tie-break chain keeps rank passes reproducible for identical inputs.
func (r *scoreRepository) GetActiveOrdered(ctx context.Context) ([]*models.ScoreRecord, error) {
	var records []*models.ScoreRecord
	err := r.db.NewSelect().
		Model(&records).
		Where("active = ?", true).
		Order("points DESC", "upload_count DESC", "referral_count DESC", "created_at DESC").
		Scan(ctx)
	return records, err
}

// UpdateRanks writes a whole rank pass as one transaction so a partially
// ranked leaderboard is never observable.
func (r *scoreRepository) UpdateRanks(ctx context.Context, assignments []RankAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	return r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now()
		for _, a := range assignments {
			_, err := tx.NewUpdate().
				Model((*models.ScoreRecord)(nil)).
				Set("rank = ?", a.Rank).
				Set("updated_at = ?", now).
				Where("user_id = ?", a.UserID).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to write rank for %s: %w", a.UserID, err)
			}
		}
		return nil
	})
}

func (r *scoreRepository) GetPage(ctx context.Context, offset, limit int) ([]*models.ScoreRecord, error) {
	var records []*models.ScoreRecord
	err := r.db.NewSelect().
		Model(&records).
		Where("active = ?", true).
		Where("rank > 0").
		Order("rank ASC").
		Offset(offset).
		Limit(limit).
		Scan(ctx)
	return records, err
}

func (r *scoreRepository) GetTopN(ctx context.Context, n int) ([]*models.ScoreRecord, error) {
	return r.GetPage(ctx, 0, n)
}

func (r *scoreRepository) GetActiveUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.NewSelect().
		Model((*models.ScoreRecord)(nil)).
		Column("user_id").
		Where("active = ?", true).
		Order("user_id ASC").
		Scan(ctx, &ids)
	return ids, err
}

func (r *scoreRepository) Deactivate(ctx context.Context, userID string) error {
	res, err := r.db.NewUpdate().
		Model((*models.ScoreRecord)(nil)).
		Set("active = ?", false).
		Set("rank = 0").
		Set("updated_at = ?", time.Now()).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
