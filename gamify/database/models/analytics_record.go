package models

import (
	"time"

	"github.com/uptrace/bun"
)

type AnalyticsRecord struct {
	bun.BaseModel `bun:"table:analytics_records,alias:ar"`

	ID     int64  `bun:"id,pk,autoincrement"`
	UserID string `bun:"user_id,notnull,unique"`

	// Cumulative totals
	TotalUploads   int64 `bun:"total_uploads,notnull,default:0"`
	TotalAITasks   int64 `bun:"total_ai_tasks,notnull,default:0"`
	TotalReferrals int64 `bun:"total_referrals,notnull,default:0"`

	// Per-status file breakdown
	FilesPending  int64 `bun:"files_pending,notnull,default:0"`
	FilesApproved int64 `bun:"files_approved,notnull,default:0"`
	FilesRejected int64 `bun:"files_rejected,notnull,default:0"`

	// Per-type file breakdown
	FilesImage int64 `bun:"files_image,notnull,default:0"`
	FilesRaw   int64 `bun:"files_raw,notnull,default:0"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// ActivityDay is one entry of the per-user daily activity ledger.
// At most one row exists per (user_id, day); same-day events increment in place.
type ActivityDay struct {
	bun.BaseModel `bun:"table:activity_days,alias:ad"`

	ID        int64     `bun:"id,pk,autoincrement"`
	UserID    string    `bun:"user_id,notnull"`
	Day       time.Time `bun:"day,notnull,type:date"`
	Uploads   int64     `bun:"uploads,notnull,default:0"`
	AITasks   int64     `bun:"ai_tasks,notnull,default:0"`
	Referrals int64     `bun:"referrals,notnull,default:0"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}
