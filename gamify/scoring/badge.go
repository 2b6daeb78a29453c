package scoring

import "github.com/notedrop/gamify/gamify/database/models"

// Badge thresholds. Tiers are non-overlapping; the highest matching tier wins.
const (
	BronzeThreshold   = 100
	GoldThreshold     = 500
	PlatinumThreshold = 1000
)

// Fixed point awards applied by the event path.
const (
	PointsPerUpload   = 10
	PointsPerReferral = 25
)

// BadgeFor maps an accumulated point total to its badge tier. Pure function;
// the caller persists the result. Badges never regress for a growing total.
func BadgeFor(points int64) models.Badge {
	switch {
	case points >= PlatinumThreshold:
		return models.BadgePlatinum
	case points >= GoldThreshold:
		return models.BadgeGold
	case points >= BronzeThreshold:
		return models.BadgeBronze
	default:
		return models.BadgeNone
	}
}
