package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/notedrop/gamify/gamify/database/models"
	"github.com/uptrace/bun"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByUserID(ctx context.Context, userID string) (*models.User, error)
	GetUsernames(ctx context.Context, userIDs []string) (map[string]string, error)
	GetAllUserIDs(ctx context.Context) ([]string, error)
	UpdateMirrors(ctx context.Context, userID string, points, referralCount int64) error
}

type userRepository struct {
	db *bun.DB
}

func NewUserRepository(db *bun.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	_, err := r.db.NewInsert().Model(user).Exec(ctx)
	return err
}

func (r *userRepository) GetByUserID(ctx context.Context, userID string) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) GetUsernames(ctx context.Context, userIDs []string) (map[string]string, error) {
	if len(userIDs) == 0 {
		return map[string]string{}, nil
	}
	var users []*models.User
	err := r.db.NewSelect().
		Model(&users).
		Column("user_id", "username").
		Where("user_id IN (?)", bun.In(userIDs)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.UserID] = u.Username
	}
	return names, nil
}

func (r *userRepository) GetAllUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.NewSelect().
		Model((*models.User)(nil)).
		Column("user_id").
		Order("user_id ASC").
		Scan(ctx, &ids)
	return ids, err
}

// UpdateMirrors refreshes the display mirror columns the core owns by
// contract. A missing user row is not an error; the account component may
// not have created it yet.
func (r *userRepository) UpdateMirrors(ctx context.Context, userID string, points, referralCount int64) error {
	_, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("points = ?", points).
		Set("referral_count = ?", referralCount).
		Set("updated_at = ?", time.Now()).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to update user mirrors: %w", err)
	}
	return nil
}
