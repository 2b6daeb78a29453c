package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Badge is the reputation tier derived from a user's point total.
type Badge string

const (
	BadgeNone     Badge = "none"
	BadgeBronze   Badge = "bronze"
	BadgeGold     Badge = "gold"
	BadgePlatinum Badge = "platinum"
)

type ScoreRecord struct {
	bun.BaseModel `bun:"table:score_records,alias:sr"`

	ID     int64  `bun:"id,pk,autoincrement"`
	UserID string `bun:"user_id,notnull,unique"`

	// Incrementally maintained by the event path
	Points        int64 `bun:"points,notnull,default:0"`
	UploadCount   int64 `bun:"upload_count,notnull,default:0"`
	ReferralCount int64 `bun:"referral_count,notnull,default:0"`

	// Overwritten by reconciliation from source-of-truth
	TotalDownloads int64 `bun:"total_downloads,notnull,default:0"`
	TotalViews     int64 `bun:"total_views,notnull,default:0"`

	// Derived fields
	Badge Badge `bun:"badge,notnull,default:'none'"`
	Rank  int   `bun:"rank,notnull,default:0"` // 0 = unranked

	Active         bool      `bun:"active,notnull,default:true"`
	LastActivityAt time.Time `bun:"last_activity_at"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}
