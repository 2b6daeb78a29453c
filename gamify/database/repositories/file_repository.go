package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/notedrop/gamify/gamify/database/models"
	"github.com/uptrace/bun"
)

// FileRepository reads the file source-of-truth collection. The aggregation
// core never writes files; Create exists for the importer and tests only.
type FileRepository interface {
	Create(ctx context.Context, file *models.File) error
	GetApprovedAggregates(ctx context.Context, ownerID string) (count, downloads, views int64, err error)
}

type fileRepository struct {
	db *bun.DB
}

func NewFileRepository(db *bun.DB) FileRepository {
	return &fileRepository{db: db}
}

func (r *fileRepository) Create(ctx context.Context, file *models.File) error {
	_, err := r.db.NewInsert().Model(file).Exec(ctx)
	return err
}

func (r *fileRepository) GetApprovedAggregates(ctx context.Context, ownerID string) (int64, int64, int64, error) {
	var agg struct {
		Count     int64 `bun:"count"`
		Downloads int64 `bun:"downloads"`
		Views     int64 `bun:"views"`
	}
	err := r.db.NewSelect().
		Model((*models.File)(nil)).
		ColumnExpr("COUNT(*) AS count").
		ColumnExpr("COALESCE(SUM(downloads), 0) AS downloads").
		ColumnExpr("COALESCE(SUM(views), 0) AS views").
		Where("owner_id = ?", ownerID).
		Where("status = ?", models.FileStatusApproved).
		Scan(ctx, &agg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, 0, nil
		}
		return 0, 0, 0, err
	}
	return agg.Count, agg.Downloads, agg.Views, nil
}
