package migration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/notedrop/gamify/gamify/database/models"
	"github.com/uptrace/bun"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultBatchSize = 1000

// Importer streams the predecessor's MongoDB collections into Postgres.
// Only the source-of-truth collections move; every insert carries a conflict
// target keyed on the legacy identity so a re-run writes no duplicate rows,
// and rollups are rebuilt afterwards by a reconciliation and a rank pass.
type Importer struct {
	pgDB      *bun.DB
	mongoDB   *mongo.Database
	batchSize int
	collNames map[string]string
	stats     ImportStats
}

type ImportStats struct {
	Users     int
	Files     int
	Referrals int
	Skipped   int
}

// Legacy document shapes. Field names follow the old Node service's schema.
type legacyUser struct {
	ID       string `bson:"_id"`
	Username string `bson:"username"`
	JoinedAt int64  `bson:"joinedAt"`
}

type legacyFile struct {
	ID        string `bson:"_id"`
	Owner     string `bson:"owner"`
	Name      string `bson:"name"`
	Kind      string `bson:"kind"`
	Status    string `bson:"status"`
	Downloads int64  `bson:"downloads"`
	Views     int64  `bson:"views"`
}

type legacyReferral struct {
	Referrer string `bson:"referrer"`
	Referred string `bson:"referred"`
	Rewarded bool   `bson:"rewarded"`
}

func NewImporter(pgDB *bun.DB, mongoDB *mongo.Database) *Importer {
	return &Importer{
		pgDB:      pgDB,
		mongoDB:   mongoDB,
		batchSize: defaultBatchSize,
		collNames: map[string]string{
			"users":     "users",
			"files":     "files",
			"referrals": "referrals",
		},
	}
}

// Connect opens the legacy MongoDB database.
func Connect(ctx context.Context, uri, database string) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to legacy mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("legacy mongo unreachable: %w", err)
	}
	return client.Database(database), nil
}

// ImportAll moves users, files and referrals in that order.
func (m *Importer) ImportAll(ctx context.Context) error {
	start := time.Now()

	if err := m.importUsers(ctx); err != nil {
		return fmt.Errorf("user import failed: %w", err)
	}
	if err := m.importFiles(ctx); err != nil {
		return fmt.Errorf("file import failed: %w", err)
	}
	if err := m.importReferrals(ctx); err != nil {
		return fmt.Errorf("referral import failed: %w", err)
	}

	slog.Info("Legacy import complete",
		slog.String("type", "job"),
		slog.String("operation", "ImportAll"),
		slog.Int("users", m.stats.Users),
		slog.Int("files", m.stats.Files),
		slog.Int("referrals", m.stats.Referrals),
		slog.Int("skipped", m.stats.Skipped),
		slog.Duration("took", time.Since(start)))
	return nil
}

func (m *Importer) importUsers(ctx context.Context) error {
	cursor, err := m.mongoDB.Collection(m.collNames["users"]).Find(ctx, bson.M{})
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	batch := make([]*models.User, 0, m.batchSize)
	for cursor.Next(ctx) {
		var doc legacyUser
		if err := cursor.Decode(&doc); err != nil {
			m.stats.Skipped++
			continue
		}
		if doc.ID == "" {
			m.stats.Skipped++
			continue
		}
		now := time.Now()
		created := now
		if doc.JoinedAt > 0 {
			created = time.UnixMilli(doc.JoinedAt)
		}
		batch = append(batch, &models.User{
			UserID:    doc.ID,
			Username:  doc.Username,
			CreatedAt: created,
			UpdatedAt: now,
		})
		if len(batch) >= m.batchSize {
			if err := m.flushUsers(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := m.flushUsers(ctx, batch); err != nil {
			return err
		}
	}
	return cursor.Err()
}

func (m *Importer) insertUsersQuery(batch *[]*models.User) *bun.InsertQuery {
	return m.pgDB.NewInsert().
		Model(batch).
		On("CONFLICT (user_id) DO NOTHING")
}

func (m *Importer) flushUsers(ctx context.Context, batch []*models.User) error {
	if _, err := m.insertUsersQuery(&batch).Exec(ctx); err != nil {
		return err
	}
	m.stats.Users += len(batch)
	return nil
}

func (m *Importer) importFiles(ctx context.Context) error {
	cursor, err := m.mongoDB.Collection(m.collNames["files"]).Find(ctx, bson.M{})
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	batch := make([]*models.File, 0, m.batchSize)
	for cursor.Next(ctx) {
		var doc legacyFile
		if err := cursor.Decode(&doc); err != nil {
			m.stats.Skipped++
			continue
		}
		file, ok := convertFile(doc)
		if !ok {
			m.stats.Skipped++
			continue
		}
		batch = append(batch, file)
		if len(batch) >= m.batchSize {
			if err := m.flushFiles(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := m.flushFiles(ctx, batch); err != nil {
			return err
		}
	}
	return cursor.Err()
}

func convertFile(doc legacyFile) (*models.File, bool) {
	// The legacy id is the dedup key on re-runs; a file without one cannot
	// be imported safely.
	if doc.ID == "" || doc.Owner == "" {
		return nil, false
	}
	fileType := models.FileType(doc.Kind)
	if fileType != models.FileTypeImage && fileType != models.FileTypeRaw {
		return nil, false
	}
	status := models.FileStatus(doc.Status)
	switch status {
	case models.FileStatusPending, models.FileStatusApproved, models.FileStatusRejected:
	default:
		// The old service stored a few moderation states we fold into pending.
		status = models.FileStatusPending
	}
	now := time.Now()
	return &models.File{
		LegacyID:  doc.ID,
		OwnerID:   doc.Owner,
		Name:      doc.Name,
		FileType:  fileType,
		Status:    status,
		Downloads: doc.Downloads,
		Views:     doc.Views,
		CreatedAt: now,
		UpdatedAt: now,
	}, true
}

func (m *Importer) insertFilesQuery(batch *[]*models.File) *bun.InsertQuery {
	return m.pgDB.NewInsert().
		Model(batch).
		On("CONFLICT (legacy_id) WHERE legacy_id <> '' DO NOTHING")
}

func (m *Importer) flushFiles(ctx context.Context, batch []*models.File) error {
	if _, err := m.insertFilesQuery(&batch).Exec(ctx); err != nil {
		return err
	}
	m.stats.Files += len(batch)
	return nil
}

func (m *Importer) importReferrals(ctx context.Context) error {
	cursor, err := m.mongoDB.Collection(m.collNames["referrals"]).Find(ctx, bson.M{})
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	batch := make([]*models.Referral, 0, m.batchSize)
	for cursor.Next(ctx) {
		var doc legacyReferral
		if err := cursor.Decode(&doc); err != nil {
			m.stats.Skipped++
			continue
		}
		if doc.Referrer == "" || doc.Referred == "" || doc.Referrer == doc.Referred {
			m.stats.Skipped++
			continue
		}
		batch = append(batch, &models.Referral{
			ReferrerID: doc.Referrer,
			ReferredID: doc.Referred,
			Rewarded:   doc.Rewarded,
			CreatedAt:  time.Now(),
		})
		if len(batch) >= m.batchSize {
			if err := m.flushReferrals(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := m.flushReferrals(ctx, batch); err != nil {
			return err
		}
	}
	return cursor.Err()
}

func (m *Importer) insertReferralsQuery(batch *[]*models.Referral) *bun.InsertQuery {
	return m.pgDB.NewInsert().
		Model(batch).
		On("CONFLICT (referred_id) DO NOTHING")
}

func (m *Importer) flushReferrals(ctx context.Context, batch []*models.Referral) error {
	if _, err := m.insertReferralsQuery(&batch).Exec(ctx); err != nil {
		return err
	}
	m.stats.Referrals += len(batch)
	return nil
}

func (m *Importer) Stats() ImportStats {
	return m.stats
}
