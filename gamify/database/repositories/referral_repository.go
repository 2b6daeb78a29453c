package repositories

import (
	"context"

	"github.com/notedrop/gamify/gamify/database/models"
	"github.com/uptrace/bun"
)

// ReferralRepository reads the referral source-of-truth collection.
type ReferralRepository interface {
	Create(ctx context.Context, referral *models.Referral) error
	CountByReferrer(ctx context.Context, referrerID string) (int64, error)
}

type referralRepository struct {
	db *bun.DB
}

func NewReferralRepository(db *bun.DB) ReferralRepository {
	return &referralRepository{db: db}
}

func (r *referralRepository) Create(ctx context.Context, referral *models.Referral) error {
	_, err := r.db.NewInsert().Model(referral).Exec(ctx)
	return err
}

func (r *referralRepository) CountByReferrer(ctx context.Context, referrerID string) (int64, error) {
	count, err := r.db.NewSelect().
		Model((*models.Referral)(nil)).
		Where("referrer_id = ?", referrerID).
		Count(ctx)
	return int64(count), err
}
