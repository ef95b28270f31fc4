package progression

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/fastprodman/matrixledger/internal/domain"
	"github.com/fastprodman/matrixledger/internal/infra/pgutils"
	"github.com/fastprodman/matrixledger/internal/repos/contributions"
	"github.com/fastprodman/matrixledger/internal/repos/nodes"
	"github.com/fastprodman/matrixledger/internal/repos/transitions"
	"github.com/fastprodman/matrixledger/internal/repos/users"
	"github.com/fastprodman/matrixledger/internal/services/ledger"
)

// Engine applies pool contributions and level-ups, one node per unit of
// work.
type Engine struct {
	db          *sql.DB
	wallet      *ledger.Wallet
	users       users.Users
	nodes       nodes.Nodes
	transitions transitions.Transitions
	pending     contributions.Contributions
	depth       int
}

func New(
	db *sql.DB,
	w *ledger.Wallet,
	u users.Users,
	n nodes.Nodes,
	t transitions.Transitions,
	p contributions.Contributions,
	depth int,
) *Engine {
	return &Engine{db: db, wallet: w, users: u, nodes: n, transitions: t, pending: p, depth: max(depth, 1)}
}

// Contribution credits Amount to the pool of NodeID.
type Contribution struct {
	NodeID       int64
	SourceNodeID int64
	Amount       int64
	Reference    uuid.UUID
}

// Propagate spreads a purchase contribution over the ancestors of source.
// The nearest ancestor is credited inside tx; the rest are queued and the
// returned ids must be passed to Drain once tx has committed.
func (e *Engine) Propagate(ctx context.Context, tx *ledger.Tx, source domain.Node, ref uuid.UUID) ([]int64, error) {
	ancestors, err := e.nodes.Ancestors(ctx, tx.Tx, source.ID, e.depth)
	if err != nil {
		return nil, fmt.Errorf("load ancestors: %w", err)
	}
	if len(ancestors) == 0 {
		return nil, nil
	}

	amount := source.Tier.BaseMinor()

	_, err = e.Contribute(ctx, tx, Contribution{
		NodeID:       ancestors[0],
		SourceNodeID: source.ID,
		Amount:       amount,
		Reference:    ref,
	})
	if err != nil {
		return nil, fmt.Errorf("contribute to slot: %w", err)
	}

	queued := make([]int64, 0, len(ancestors)-1)
	for _, id := range ancestors[1:] {
		pid, err := e.pending.Insert(ctx, tx.Tx, domain.PendingContribution{
			NodeID:       id,
			SourceNodeID: source.ID,
			AmountMinor:  amount,
			Reference:    ref,
		})
		if err != nil {
			return nil, fmt.Errorf("queue contribution: %w", err)
		}

		queued = append(queued, pid)
	}

	return queued, nil
}

// Contribute credits the node's pool and applies any level-ups it funds.
// Closed or inactive nodes take no contribution.
func (e *Engine) Contribute(ctx context.Context, tx *ledger.Tx, c Contribution) ([]domain.LevelTransition, error) {
	n, err := e.nodes.Lock(ctx, tx.Tx, c.NodeID)
	if err != nil {
		return nil, fmt.Errorf("lock node %d: %w", c.NodeID, err)
	}

	if n.Closed || !n.Active {
		log.WithFields(log.Fields{
			"node_id": n.ID,
			"source":  c.SourceNodeID,
			"closed":  n.Closed,
		}).Debug("contribution skipped")

		return nil, nil
	}

	err = e.wallet.Deposit(ctx, tx, ledger.Entry{
		UserID:      n.OwnerID,
		Currency:    domain.CurrencyPool,
		Amount:      c.Amount,
		Kind:        domain.KindPoolContribution,
		Description: fmt.Sprintf("node %d from node %d", n.ID, c.SourceNodeID),
		Reference:   c.Reference,
	})
	if err != nil {
		return nil, fmt.Errorf("credit pool: %w", err)
	}

	n.PoolMinor += c.Amount

	done, err := e.advance(ctx, tx, n, c.Reference)
	if err != nil {
		return nil, err
	}

	return done, nil
}

// Evaluate re-runs the level check on a node without adding to its pool.
func (e *Engine) Evaluate(ctx context.Context, tx *ledger.Tx, nodeID int64) ([]domain.LevelTransition, error) {
	n, err := e.nodes.Lock(ctx, tx.Tx, nodeID)
	if err != nil {
		return nil, fmt.Errorf("lock node %d: %w", nodeID, err)
	}

	_, steps := Advance(State{Level: n.Level, Pool: n.PoolMinor, Closed: n.Closed}, n.Tier.BaseMinor())
	if len(steps) == 0 {
		return nil, nil
	}

	return e.advance(ctx, tx, n, uuid.New())
}

// EvaluateNode runs Evaluate in its own unit of work.
func (e *Engine) EvaluateNode(ctx context.Context, nodeID int64) ([]domain.LevelTransition, error) {
	var done []domain.LevelTransition

	err := e.wallet.RunInTx(ctx, func(tx *ledger.Tx) error {
		var err error
		done, err = e.Evaluate(ctx, tx, nodeID)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("evaluate node: %w", err)
	}

	return done, nil
}

// advance persists n after applying every funded step.
func (e *Engine) advance(ctx context.Context, tx *ledger.Tx, n domain.Node, ref uuid.UUID) ([]domain.LevelTransition, error) {
	next, steps := Advance(State{Level: n.Level, Pool: n.PoolMinor, Closed: n.Closed}, n.Tier.BaseMinor())

	var referrer *uint64
	if len(steps) > 0 {
		owner, err := e.users.Get(ctx, tx.Tx, n.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("load owner: %w", err)
		}

		referrer = owner.ReferrerID
	}

	done := make([]domain.LevelTransition, 0, len(steps))
	for _, st := range steps {
		lt, err := e.applyStep(ctx, tx, n, st, referrer, ref)
		if err != nil {
			return nil, fmt.Errorf("level %d->%d: %w", st.FromLevel, st.ToLevel, err)
		}

		done = append(done, lt)
	}

	n.Level, n.PoolMinor, n.Closed = next.Level, next.Pool, next.Closed

	err := e.nodes.SaveProgress(ctx, tx.Tx, n)
	if err != nil {
		return nil, fmt.Errorf("save node %d: %w", n.ID, err)
	}

	return done, nil
}

func (e *Engine) applyStep(
	ctx context.Context,
	tx *ledger.Tx,
	n domain.Node,
	st Step,
	referrer *uint64,
	ref uuid.UUID,
) (domain.LevelTransition, error) {
	desc := fmt.Sprintf("node %d level %d->%d", n.ID, st.FromLevel, st.ToLevel)

	err := e.wallet.Charge(ctx, tx, ledger.Entry{
		UserID:      n.OwnerID,
		Currency:    domain.CurrencyPool,
		Amount:      st.Consumed,
		Kind:        domain.KindLevelUpPayout,
		Description: desc,
		Reference:   ref,
	})
	if err != nil {
		return domain.LevelTransition{}, fmt.Errorf("consume pool: %w", err)
	}

	lt := domain.LevelTransition{
		NodeID:       n.ID,
		FromLevel:    st.FromLevel,
		ToLevel:      st.ToLevel,
		PoolConsumed: st.Consumed,
	}

	if st.Bonus > 0 && referrer != nil {
		err = e.wallet.Deposit(ctx, tx, ledger.Entry{
			UserID:      *referrer,
			Currency:    domain.CurrencyBonus,
			Amount:      st.Bonus,
			Kind:        domain.KindLevelUpPayout,
			Description: desc,
			Reference:   ref,
		})
		if err != nil {
			return domain.LevelTransition{}, fmt.Errorf("pay referrer bonus: %w", err)
		}

		lt.BonusPaid = st.Bonus
		lt.BonusUserID = referrer
	}

	if st.Payout > 0 {
		err = e.wallet.Deposit(ctx, tx, ledger.Entry{
			UserID:      n.OwnerID,
			Currency:    domain.CurrencyPrimary,
			Amount:      st.Payout,
			Kind:        domain.KindLevelUpPayout,
			Description: desc + " terminal payout",
			Reference:   ref,
		})
		if err != nil {
			return domain.LevelTransition{}, fmt.Errorf("pay terminal payout: %w", err)
		}

		lt.Payout = st.Payout
	}

	lt.ID, err = e.transitions.Insert(ctx, tx.Tx, lt)
	if err != nil {
		return domain.LevelTransition{}, fmt.Errorf("record transition: %w", err)
	}

	log.WithFields(log.Fields{
		"node_id":  n.ID,
		"owner_id": n.OwnerID,
		"from":     st.FromLevel,
		"to":       st.ToLevel,
		"bonus":    lt.BonusPaid,
		"payout":   lt.Payout,
	}).Info("node advanced")

	return lt, nil
}

var drainBackoff = pgutils.Backoff{Attempts: 3, Base: 20 * time.Millisecond, Max: 200 * time.Millisecond}

// Drain applies queued hops one per transaction, in queue order. A hop that
// keeps failing stays queued for the next drain.
func (e *Engine) Drain(ctx context.Context, ids []int64) (int, error) {
	var (
		applied int
		errs    []error
	)

	for _, id := range ids {
		ok, err := e.drainOne(ctx, id)
		if err != nil {
			log.WithError(err).WithField("pending_id", id).Warn("cascade hop failed")
			errs = append(errs, fmt.Errorf("hop %d: %w", id, err))

			continue
		}

		if ok {
			applied++
		}
	}

	return applied, errors.Join(errs...)
}

func (e *Engine) drainOne(ctx context.Context, id int64) (bool, error) {
	var applied bool

	err := pgutils.Retry(ctx, drainBackoff, pgutils.IsRetryable, func(int) error {
		applied = false

		return e.wallet.RunInTx(ctx, func(tx *ledger.Tx) error {
			pc, err := e.pending.Claim(ctx, tx.Tx, id)
			if err != nil {
				if errors.Is(err, contributions.ErrNothingPending) {
					return nil
				}

				return err
			}

			_, err = e.Contribute(ctx, tx, Contribution{
				NodeID:       pc.NodeID,
				SourceNodeID: pc.SourceNodeID,
				Amount:       pc.AmountMinor,
				Reference:    pc.Reference,
			})
			if err != nil {
				return err
			}

			err = e.pending.Delete(ctx, tx.Tx, pc.ID)
			if err != nil {
				return err
			}

			applied = true

			return nil
		})
	})

	return applied, err
}

// DrainPending applies up to limit of the oldest queued hops.
func (e *Engine) DrainPending(ctx context.Context, limit int) (int, error) {
	ids, err := e.pending.ListIDs(ctx, e.db, limit)
	if err != nil {
		return 0, fmt.Errorf("list pending: %w", err)
	}

	return e.Drain(ctx, ids)
}
