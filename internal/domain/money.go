package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyPrimary Currency = "primary"
	CurrencyBonus   Currency = "bonus"
	CurrencyPool    Currency = "pool"
)

// FormatMinor renders minor units as a two-decimal amount, e.g. 1250 as
// "12.50".
func FormatMinor(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

// Currencies lists every supported currency in a stable order.
var Currencies = []Currency{CurrencyPrimary, CurrencyBonus, CurrencyPool}

func ParseCurrency(s string) (Currency, error) {
	c := Currency(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, s)
	}

	return c, nil
}

func (c Currency) Valid() bool {
	switch c {
	case CurrencyPrimary, CurrencyBonus, CurrencyPool:
		return true
	default:
		return false
	}
}

// Kind classifies a ledger row. The set is closed.
type Kind string

const (
	KindPurchaseDebit       Kind = "purchase-debit"
	KindDirectReferralBonus Kind = "direct-referral-bonus"
	KindPoolContribution    Kind = "pool-contribution"
	KindLevelUpPayout       Kind = "level-up-payout"
	KindAdminAdjustment     Kind = "admin-adjustment"
	KindWithdrawal          Kind = "withdrawal"
)

func (k Kind) Valid() bool {
	switch k {
	case KindPurchaseDebit,
		KindDirectReferralBonus,
		KindPoolContribution,
		KindLevelUpPayout,
		KindAdminAdjustment,
		KindWithdrawal:
		return true
	default:
		return false
	}
}

// ReferralEarning reports whether credits of this kind count as bonus earned
// from referred users.
func (k Kind) ReferralEarning() bool {
	switch k {
	case KindDirectReferralBonus, KindLevelUpPayout:
		return true
	case KindPurchaseDebit, KindPoolContribution, KindAdminAdjustment, KindWithdrawal:
		return false
	default:
		return false
	}
}

// Balances holds cached per-currency balances in minor units.
type Balances struct {
	Primary int64
	Bonus   int64
	Pool    int64
}

func (b Balances) Of(c Currency) int64 {
	switch c {
	case CurrencyPrimary:
		return b.Primary
	case CurrencyBonus:
		return b.Bonus
	case CurrencyPool:
		return b.Pool
	default:
		return 0
	}
}

func (b *Balances) Set(c Currency, v int64) {
	switch c {
	case CurrencyPrimary:
		b.Primary = v
	case CurrencyBonus:
		b.Bonus = v
	case CurrencyPool:
		b.Pool = v
	}
}

// Transaction is one immutable ledger row. AmountMinor is signed.
type Transaction struct {
	ID          int64
	UserID      uint64
	AmountMinor int64
	Currency    Currency
	Kind        Kind
	Description string
	Reference   uuid.UUID
	CreatedAt   time.Time
}
