package models

import (
	"time"

	"github.com/uptrace/bun"
)

// User is owned by the account component. The core writes only the
// points / referral_count mirror columns it owns by contract.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID       int64  `bun:"id,pk,autoincrement"`
	UserID   string `bun:"user_id,notnull,unique"`
	Username string `bun:"username,notnull"`

	// Display mirrors maintained by the aggregation core
	Points        int64 `bun:"points,notnull,default:0"`
	ReferralCount int64 `bun:"referral_count,notnull,default:0"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}
