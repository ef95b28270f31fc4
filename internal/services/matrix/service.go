package matrix

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/fastprodman/matrixledger/internal/config"
	"github.com/fastprodman/matrixledger/internal/domain"
	"github.com/fastprodman/matrixledger/internal/infra/pgutils"
	"github.com/fastprodman/matrixledger/internal/repos/nodes"
	"github.com/fastprodman/matrixledger/internal/repos/transitions"
	"github.com/fastprodman/matrixledger/internal/repos/users"
	"github.com/fastprodman/matrixledger/internal/services/ledger"
	"github.com/fastprodman/matrixledger/internal/services/placement"
	"github.com/fastprodman/matrixledger/internal/services/progression"
)

// Service exposes the engine's boundary operations.
type Service struct {
	db          *sql.DB
	wallet      *ledger.Wallet
	users       users.Users
	nodes       nodes.Nodes
	transitions transitions.Transitions
	placement   *placement.Engine
	progression *progression.Engine
	policy      PayoutPolicy
	cfg         config.EngineConfig
}

func New(
	db *sql.DB,
	w *ledger.Wallet,
	u users.Users,
	n nodes.Nodes,
	lt transitions.Transitions,
	pl *placement.Engine,
	pr *progression.Engine,
	policy PayoutPolicy,
	cfg config.EngineConfig,
) *Service {
	return &Service{
		db:          db,
		wallet:      w,
		users:       u,
		nodes:       n,
		transitions: lt,
		placement:   pl,
		progression: pr,
		policy:      policy,
		cfg:         cfg,
	}
}

// Placement is the outcome of a purchase.
type Placement struct {
	NodeID      int64
	ParentID    *int64
	Reference   uuid.UUID
	Transitions []domain.LevelTransition
}

// EnsureUser registers userID on first sight. The referrer is bound only if
// the user has none yet and the referrer exists.
func (s *Service) EnsureUser(ctx context.Context, userID uint64, referrerID *uint64) (domain.User, error) {
	var u domain.User

	err := s.wallet.RunInTx(ctx, func(tx *ledger.Tx) error {
		_, err := s.users.Create(ctx, tx.Tx, userID, nil)
		if err != nil {
			return err
		}

		_, err = s.bindReferrer(ctx, tx, userID, referrerID)
		if err != nil {
			return err
		}

		u, err = s.users.Get(ctx, tx.Tx, userID)

		return err
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("ensure user: %w", err)
	}

	return u, nil
}

func (s *Service) bindReferrer(ctx context.Context, tx *ledger.Tx, userID uint64, referrerID *uint64) (bool, error) {
	if referrerID == nil || *referrerID == userID {
		return false, nil
	}

	err := s.users.Exists(ctx, tx.Tx, *referrerID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			log.WithFields(log.Fields{"user_id": userID, "referrer_id": *referrerID}).Warn("unknown referrer ignored")

			return false, nil
		}

		return false, err
	}

	return s.users.BindReferrer(ctx, tx.Tx, userID, *referrerID)
}

// PlaceAndCharge debits the tier price, places a node, pays the direct
// referral bonus and feeds the cascade. Everything up to and including the
// slot's own progression commits as one unit; upper ancestors are credited
// afterwards one transaction each.
func (s *Service) PlaceAndCharge(ctx context.Context, userID uint64, tier domain.Tier, referrerID *uint64) (Placement, error) {
	if !tier.Valid() {
		return Placement{}, fmt.Errorf("place and charge: %w: %q", domain.ErrInvalidTier, tier)
	}

	var (
		res    Placement
		queued []int64
	)

	backoff := pgutils.Backoff{
		Attempts: s.cfg.PlacementMaxRetries,
		Base:     s.cfg.RetryBaseDelay,
		Max:      s.cfg.RetryMaxDelay,
	}

	err := pgutils.Retry(ctx, backoff, retryablePlacement, func(attempt int) error {
		if attempt > 1 {
			log.WithFields(log.Fields{"user_id": userID, "attempt": attempt}).Debug("retrying placement")
		}

		res = Placement{Reference: uuid.New()}
		queued = nil

		return s.wallet.RunInTx(ctx, func(tx *ledger.Tx) error {
			var err error
			res, queued, err = s.purchase(ctx, tx, userID, tier, referrerID, res.Reference)

			return err
		})
	})
	if err != nil {
		return Placement{}, fmt.Errorf("place and charge: %w", err)
	}

	if len(queued) > 0 {
		_, derr := s.progression.Drain(ctx, queued)
		if derr != nil {
			log.WithError(derr).WithField("reference", res.Reference).Warn("cascade left hops queued")
		}
	}

	log.WithFields(log.Fields{
		"user_id":   userID,
		"tier":      tier,
		"node_id":   res.NodeID,
		"reference": res.Reference,
	}).Info("node placed")

	return res, nil
}

func retryablePlacement(err error) bool {
	return errors.Is(err, domain.ErrPlacementConflict) || pgutils.IsRetryable(err)
}

func (s *Service) purchase(
	ctx context.Context,
	tx *ledger.Tx,
	userID uint64,
	tier domain.Tier,
	referrerID *uint64,
	ref uuid.UUID,
) (Placement, []int64, error) {
	u, err := s.users.Get(ctx, tx.Tx, userID)
	if err != nil {
		return Placement{}, nil, err
	}
	if !u.Active {
		return Placement{}, nil, domain.ErrUserInactive
	}

	referrer := u.ReferrerID
	if referrer == nil {
		bound, err := s.bindReferrer(ctx, tx, userID, referrerID)
		if err != nil {
			return Placement{}, nil, err
		}
		if bound {
			referrer = referrerID
		}
	}

	err = s.wallet.Charge(ctx, tx, ledger.Entry{
		UserID:      userID,
		Currency:    domain.CurrencyPrimary,
		Amount:      tier.PriceMinor(),
		Kind:        domain.KindPurchaseDebit,
		Description: fmt.Sprintf("%s avatar", tier),
		Reference:   ref,
	})
	if err != nil {
		return Placement{}, nil, err
	}

	node, err := s.placement.Place(ctx, tx, userID, tier, referrer)
	if err != nil {
		return Placement{}, nil, err
	}

	if referrer != nil {
		err = s.wallet.Deposit(ctx, tx, ledger.Entry{
			UserID:      *referrer,
			Currency:    domain.CurrencyBonus,
			Amount:      tier.BaseMinor(),
			Kind:        domain.KindDirectReferralBonus,
			Description: fmt.Sprintf("%s avatar by user %d", tier, userID),
			Reference:   ref,
		})
		if err != nil {
			return Placement{}, nil, err
		}
	}

	queued, err := s.progression.Propagate(ctx, tx, node, ref)
	if err != nil {
		return Placement{}, nil, err
	}

	return Placement{NodeID: node.ID, ParentID: node.ParentID, Reference: ref}, queued, nil
}

func (s *Service) GetBalances(ctx context.Context, userID uint64) (domain.Balances, error) {
	return s.wallet.GetBalances(ctx, userID)
}

func (s *Service) History(ctx context.Context, userID uint64, limit int) ([]domain.Transaction, error) {
	return s.wallet.History(ctx, userID, limit)
}

// Withdrawal splits a bonus withdrawal into what leaves the platform and
// what it keeps.
type Withdrawal struct {
	Amount             int64
	Payout             int64
	CommissionRetained int64
	Reference          uuid.UUID
}

func (s *Service) Withdraw(ctx context.Context, userID uint64, amount int64) (Withdrawal, error) {
	if amount <= 0 {
		return Withdrawal{}, fmt.Errorf("withdraw: %w: %d", domain.ErrInvalidAmount, amount)
	}

	bps, err := s.policy.PayoutBps(ctx, userID)
	if err != nil {
		return Withdrawal{}, fmt.Errorf("withdraw: payout policy: %w", err)
	}

	w := Withdrawal{Amount: amount, Reference: uuid.New()}
	w.Payout = amount * bps / 10_000
	w.CommissionRetained = amount - w.Payout

	err = s.wallet.RunInTx(ctx, func(tx *ledger.Tx) error {
		return s.wallet.Charge(ctx, tx, ledger.Entry{
			UserID:      userID,
			Currency:    domain.CurrencyBonus,
			Amount:      amount,
			Kind:        domain.KindWithdrawal,
			Description: fmt.Sprintf("payout %d, commission %d", w.Payout, w.CommissionRetained),
			Reference:   w.Reference,
		})
	})
	if err != nil {
		return Withdrawal{}, fmt.Errorf("withdraw: %w", err)
	}

	return w, nil
}

// Adjust applies a signed admin correction to one currency.
func (s *Service) Adjust(ctx context.Context, userID uint64, c domain.Currency, amount int64, reason string) error {
	if amount == 0 {
		return fmt.Errorf("adjust: %w: 0", domain.ErrInvalidAmount)
	}
	// pool mirrors node pools and only moves with contributions and level-ups
	if c == domain.CurrencyPool {
		return fmt.Errorf("adjust: %w: %s is internal", domain.ErrInvalidCurrency, c)
	}

	e := ledger.Entry{
		UserID:      userID,
		Currency:    c,
		Amount:      amount,
		Kind:        domain.KindAdminAdjustment,
		Description: reason,
		Reference:   uuid.New(),
	}

	err := s.wallet.RunInTx(ctx, func(tx *ledger.Tx) error {
		if amount < 0 {
			e.Amount = -amount

			return s.wallet.Charge(ctx, tx, e)
		}

		return s.wallet.Deposit(ctx, tx, e)
	})
	if err != nil {
		return fmt.Errorf("adjust: %w", err)
	}

	return nil
}

// DeactivateUser blocks further purchases by the user and takes every node
// they own out of placement and cascade. Balances and history stay.
func (s *Service) DeactivateUser(ctx context.Context, userID uint64) error {
	err := s.wallet.RunInTx(ctx, func(tx *ledger.Tx) error {
		err := s.users.Deactivate(ctx, tx.Tx, userID)
		if err != nil {
			return err
		}

		owned, err := s.nodes.ListByOwners(ctx, tx.Tx, []uint64{userID})
		if err != nil {
			return err
		}

		for _, n := range owned {
			if !n.Active {
				continue
			}

			err = s.nodes.Deactivate(ctx, tx.Tx, n.ID)
			if err != nil {
				return err
			}
		}

		log.WithFields(log.Fields{"user_id": userID, "nodes": len(owned)}).Info("user deactivated")

		return nil
	})
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}

	return nil
}

// DeactivateNode takes one node out of placement and cascade. Its level,
// pool and children are kept.
func (s *Service) DeactivateNode(ctx context.Context, nodeID int64) error {
	err := s.nodes.Deactivate(ctx, s.db, nodeID)
	if err != nil {
		return fmt.Errorf("deactivate node %d: %w", nodeID, err)
	}

	log.WithField("node_id", nodeID).Info("node deactivated")

	return nil
}

// NodeHistory returns a node with its level transitions, oldest first.
func (s *Service) NodeHistory(ctx context.Context, nodeID int64) (domain.Node, []domain.LevelTransition, error) {
	n, err := s.nodes.Get(ctx, s.db, nodeID)
	if err != nil {
		return domain.Node{}, nil, fmt.Errorf("node history: %w", err)
	}

	steps, err := s.transitions.ListByNode(ctx, s.db, nodeID)
	if err != nil {
		return domain.Node{}, nil, fmt.Errorf("node history: %w", err)
	}

	return n, steps, nil
}
