package domain

import (
	"fmt"
	"strings"
)

type Tier string

const (
	TierBasic   Tier = "basic"
	TierPro     Tier = "pro"
	TierPremium Tier = "premium"
	TierElite   Tier = "elite"
)

// Tiers is ordered from cheapest to most expensive.
var Tiers = []Tier{TierBasic, TierPro, TierPremium, TierElite}

func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidTier, s)
	}

	return t, nil
}

func (t Tier) Valid() bool {
	return t.PriceMinor() > 0
}

// PriceMinor is the purchase cost in cents.
func (t Tier) PriceMinor() int64 {
	switch t {
	case TierBasic:
		return 4_000
	case TierPro:
		return 10_000
	case TierPremium:
		return 25_000
	case TierElite:
		return 100_000
	default:
		return 0
	}
}

// BaseMinor is the tier's base unit: half of the price. The other half is
// paid out as the direct referral bonus.
func (t Tier) BaseMinor() int64 {
	return t.PriceMinor() / 2
}

// Rank orders tiers; unknown tiers rank below basic.
func (t Tier) Rank() int {
	for i, tt := range Tiers {
		if tt == t {
			return i
		}
	}

	return -1
}
