package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ReferrerStat backs the admin top-referrers list.
type ReferrerStat struct {
	bun.BaseModel `bun:"table:referrer_stats,alias:rs"`

	UserID        string    `bun:"user_id,pk"`
	ReferredCount int64     `bun:"referred_count,notnull,default:0"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

// GrowthDay is one entry of the admin daily new-user/new-referral ledger.
type GrowthDay struct {
	bun.BaseModel `bun:"table:growth_days,alias:gd"`

	Day          time.Time `bun:"day,pk,type:date"`
	NewUsers     int64     `bun:"new_users,notnull,default:0"`
	NewReferrals int64     `bun:"new_referrals,notnull,default:0"`
	UpdatedAt    time.Time `bun:"updated_at,notnull"`
}

// ActivitySnapshot backs the admin top-by-activity view.
type ActivitySnapshot struct {
	bun.BaseModel `bun:"table:activity_snapshots,alias:as"`

	UserID    string    `bun:"user_id,pk"`
	Uploads   int64     `bun:"uploads,notnull,default:0"`
	AITasks   int64     `bun:"ai_tasks,notnull,default:0"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}
