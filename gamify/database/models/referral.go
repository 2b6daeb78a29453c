package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Referral is a source-of-truth record owned by the referral component.
// One row per referred user; the per-referrer count is the row count.
type Referral struct {
	bun.BaseModel `bun:"table:referrals,alias:r"`

	ID         int64  `bun:"id,pk,autoincrement"`
	ReferrerID string `bun:"referrer_id,notnull"`
	ReferredID string `bun:"referred_id,notnull,unique"`
	Rewarded   bool   `bun:"rewarded,notnull,default:false"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
