package audit

import (
	"github.com/fastprodman/matrixledger/internal/domain"
	"github.com/fastprodman/matrixledger/internal/services/progression"
)

type FindingKind string

const (
	BalanceMismatch FindingKind = "balance-mismatch"
	ExcessiveBonus  FindingKind = "excessive-bonus"
	LevelDrift      FindingKind = "level-drift"
)

// Finding is one discrepancy. Expected is what the ledger or tree shape
// supports, Actual is what was observed.
type Finding struct {
	Kind     FindingKind
	Currency domain.Currency
	NodeID   int64
	Expected int64
	Actual   int64
}

// Diff is Actual minus Expected.
func (f Finding) Diff() int64 {
	return f.Actual - f.Expected
}

type Report struct {
	UserID           uint64
	Cached           domain.Balances
	Ledger           domain.Balances
	TheoreticalBonus int64
	ActualBonus      int64
	Findings         []Finding
	Corrected        bool
}

func (r Report) Clean() bool {
	return len(r.Findings) == 0
}

// Excess returns the ExcessiveBonus amount, or 0.
func (r Report) Excess() int64 {
	for _, f := range r.Findings {
		if f.Kind == ExcessiveBonus {
			return f.Diff()
		}
	}

	return 0
}

// TheoreticalMaxBonus is the most a referrer can have been paid for the
// given nodes of directly referred users.
func TheoreticalMaxBonus(referred []domain.Node) int64 {
	var total int64
	for _, n := range referred {
		total += progression.ReferrerEarnings(n.Level, n.Tier.BaseMinor())
	}

	return total
}

// Thresholds are the tolerances used by assess.
type Thresholds struct {
	Epsilon     int64
	BonusBuffer int64
}

func assess(cached, ledger domain.Balances, theoretical, actual int64, th Thresholds) []Finding {
	var out []Finding

	for _, c := range domain.Currencies {
		if absDiff(cached.Of(c), ledger.Of(c)) > th.Epsilon {
			out = append(out, Finding{
				Kind:     BalanceMismatch,
				Currency: c,
				Expected: ledger.Of(c),
				Actual:   cached.Of(c),
			})
		}
	}

	if actual-theoretical > th.BonusBuffer {
		out = append(out, Finding{
			Kind:     ExcessiveBonus,
			Currency: domain.CurrencyBonus,
			Expected: theoretical,
			Actual:   actual,
		})
	}

	return out
}

// levelDrift compares node levels with their transition log.
func levelDrift(owned []domain.Node, lastLevels map[int64]int) []Finding {
	var out []Finding
	for _, n := range owned {
		logged := lastLevels[n.ID]
		if logged != n.Level {
			out = append(out, Finding{
				Kind:     LevelDrift,
				NodeID:   n.ID,
				Expected: int64(logged),
				Actual:   int64(n.Level),
			})
		}
	}

	return out
}
