package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/fastprodman/matrixledger/internal/config"
	"github.com/fastprodman/matrixledger/internal/domain"
	"github.com/fastprodman/matrixledger/internal/infra/pgutils"
	"github.com/fastprodman/matrixledger/internal/repos/nodes"
	"github.com/fastprodman/matrixledger/internal/repos/transactions"
	"github.com/fastprodman/matrixledger/internal/repos/transitions"
	"github.com/fastprodman/matrixledger/internal/repos/users"
	"github.com/fastprodman/matrixledger/internal/services/ledger"
)

// ClawbackDescription prefixes the description of every correction that
// moves excess bonus back into the pool.
const ClawbackDescription = "audit clawback"

// earningKinds are the bonus credits a user receives because of referrals.
var earningKinds = []domain.Kind{domain.KindDirectReferralBonus, domain.KindLevelUpPayout}

// Auditor recomputes balances and referral earnings from the ledger and the
// tree and compares them with what is stored.
type Auditor struct {
	wallet      *ledger.Wallet
	users       users.Users
	txns        transactions.Transactions
	nodes       nodes.Nodes
	transitions transitions.Transitions
	notifier    Notifier
	cfg         config.AuditConfig
}

func New(
	w *ledger.Wallet,
	u users.Users,
	t transactions.Transactions,
	n nodes.Nodes,
	lt transitions.Transitions,
	notifier Notifier,
	cfg config.AuditConfig,
) *Auditor {
	if notifier == nil {
		notifier = LogNotifier{}
	}

	return &Auditor{wallet: w, users: u, txns: t, nodes: n, transitions: lt, notifier: notifier, cfg: cfg}
}

// AuditUser builds a report for one user. With correct (or auto-correct
// configured) any finding is corrected toward the ledger afterwards.
func (a *Auditor) AuditUser(ctx context.Context, userID uint64, correct bool) (Report, error) {
	var r Report

	err := a.wallet.RunInTxOptions(ctx, pgutils.Snapshot, func(tx *ledger.Tx) error {
		var err error
		r, err = a.inspect(ctx, tx.Tx, userID)

		return err
	})
	if err != nil {
		return Report{}, fmt.Errorf("audit user %d: %w", userID, err)
	}

	if r.Clean() {
		return r, nil
	}

	log.WithFields(log.Fields{
		"user_id":     userID,
		"findings":    len(r.Findings),
		"excess":      r.Excess(),
		"theoretical": r.TheoreticalBonus,
		"actual":      r.ActualBonus,
	}).Warn("audit findings")

	if correct || a.cfg.AutoCorrect {
		err = a.correct(ctx, &r)
		if err != nil {
			return r, fmt.Errorf("audit user %d: correct: %w", userID, err)
		}
	}

	nerr := a.notifier.Notify(ctx, r)
	if nerr != nil {
		log.WithError(nerr).WithField("user_id", userID).Warn("audit notification failed")
	}

	return r, nil
}

func (a *Auditor) inspect(ctx context.Context, tx *sql.Tx, userID uint64) (Report, error) {
	r := Report{UserID: userID}

	var err error

	r.Cached, err = a.users.GetBalances(ctx, tx, userID)
	if err != nil {
		return Report{}, err
	}

	r.Ledger, err = a.txns.SumByCurrency(ctx, tx, userID)
	if err != nil {
		return Report{}, err
	}

	r.TheoreticalBonus, r.ActualBonus, err = a.bonusFigures(ctx, tx, userID)
	if err != nil {
		return Report{}, err
	}

	r.Findings = assess(r.Cached, r.Ledger, r.TheoreticalBonus, r.ActualBonus, Thresholds{
		Epsilon:     a.cfg.EpsilonMinor,
		BonusBuffer: a.cfg.BonusBufferMinor,
	})

	owned, err := a.nodes.ListByOwners(ctx, tx, []uint64{userID})
	if err != nil {
		return Report{}, err
	}

	ids := make([]int64, 0, len(owned))
	for _, n := range owned {
		ids = append(ids, n.ID)
	}

	last, err := a.transitions.LastLevels(ctx, tx, ids)
	if err != nil {
		return Report{}, err
	}

	r.Findings = append(r.Findings, levelDrift(owned, last)...)

	return r, nil
}

// bonusFigures returns the theoretical maximum and the referral earnings
// still held, net of earlier clawbacks. Manual adjustments do not count.
func (a *Auditor) bonusFigures(ctx context.Context, q pgutils.Querier, userID uint64) (theoretical, actual int64, err error) {
	referred, err := a.users.ListReferred(ctx, q, userID)
	if err != nil {
		return 0, 0, err
	}

	referredNodes, err := a.nodes.ListByOwners(ctx, q, referred)
	if err != nil {
		return 0, 0, err
	}

	earned, err := a.txns.SumCredits(ctx, q, userID, domain.CurrencyBonus, earningKinds)
	if err != nil {
		return 0, 0, err
	}

	clawed, err := a.txns.SumDebits(ctx, q, userID, domain.CurrencyBonus,
		[]domain.Kind{domain.KindAdminAdjustment}, ClawbackDescription)
	if err != nil {
		return 0, 0, err
	}

	return TheoreticalMaxBonus(referredNodes), earned - clawed, nil
}

// correct works on freshly locked state rather than the snapshot: cached
// balances are realigned with the ledger sum, then excessive bonus is moved
// back into the pool. Level drift is reported only.
func (a *Auditor) correct(ctx context.Context, r *Report) error {
	ref := uuid.New()

	err := a.wallet.RunInTx(ctx, func(tx *ledger.Tx) error {
		b, err := a.users.LockAndGetBalances(ctx, tx.Tx, r.UserID)
		if err != nil {
			return err
		}

		sums, err := a.txns.SumByCurrency(ctx, tx.Tx, r.UserID)
		if err != nil {
			return err
		}

		for _, c := range domain.Currencies {
			if absDiff(b.Of(c), sums.Of(c)) <= a.cfg.EpsilonMinor {
				continue
			}

			err = a.wallet.Realign(ctx, tx, r.UserID, c, sums.Of(c))
			if err != nil {
				return err
			}

			b.Set(c, sums.Of(c))
		}

		// a concurrent correction may already have clawed the excess back
		theoretical, actual, err := a.bonusFigures(ctx, tx.Tx, r.UserID)
		if err != nil {
			return err
		}

		excess := actual - theoretical
		if excess <= a.cfg.BonusBufferMinor {
			excess = 0
		}

		claw := min(excess, b.Bonus)
		if claw <= 0 {
			if excess > 0 {
				log.WithField("user_id", r.UserID).Warn("excess bonus already withdrawn, nothing to claw back")
			}

			return nil
		}

		desc := fmt.Sprintf("%s of %d excess bonus", ClawbackDescription, claw)

		err = a.wallet.Charge(ctx, tx, ledger.Entry{
			UserID:      r.UserID,
			Currency:    domain.CurrencyBonus,
			Amount:      claw,
			Kind:        domain.KindAdminAdjustment,
			Description: desc,
			Reference:   ref,
		})
		if err != nil {
			return err
		}

		return a.wallet.Deposit(ctx, tx, ledger.Entry{
			UserID:      r.UserID,
			Currency:    domain.CurrencyPool,
			Amount:      claw,
			Kind:        domain.KindAdminAdjustment,
			Description: desc,
			Reference:   ref,
		})
	})
	if err != nil {
		return err
	}

	r.Corrected = true

	return nil
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}

	return b - a
}

// AuditAll pages through every user. A failing user is logged and skipped.
func (a *Auditor) AuditAll(ctx context.Context, correct bool) ([]Report, error) {
	pageSize := a.cfg.PageSize
	if pageSize <= 0 {
		pageSize = 500
	}

	var (
		reports []Report
		after   uint64
	)

	for {
		ids, err := a.users.ListIDs(ctx, a.wallet.DB(), after, pageSize)
		if err != nil {
			return reports, fmt.Errorf("audit all: %w", err)
		}

		for _, id := range ids {
			r, err := a.AuditUser(ctx, id, correct)
			if err != nil {
				log.WithError(err).WithField("user_id", id).Error("audit failed")

				continue
			}

			reports = append(reports, r)
		}

		if len(ids) < pageSize {
			break
		}

		after = ids[len(ids)-1]
	}

	return reports, nil
}
