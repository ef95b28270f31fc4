package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	MaxChildren = 3
	MaxLevel    = 5
)

type User struct {
	ID         uint64
	ReferrerID *uint64
	Balances   Balances
	Active     bool
	CreatedAt  time.Time
}

// Node is one purchased avatar placed in a ternary tree. ID doubles as the
// insertion sequence used for every ordering decision.
type Node struct {
	ID        int64
	OwnerID   uint64
	Tier      Tier
	ParentID  *int64
	Position  int
	Level     int
	PoolMinor int64
	Closed    bool
	Active    bool
	CreatedAt time.Time
}

func (n Node) IsRoot() bool {
	return n.ParentID == nil
}

type LevelTransition struct {
	ID           int64
	NodeID       int64
	FromLevel    int
	ToLevel      int
	PoolConsumed int64
	BonusPaid    int64
	BonusUserID  *uint64
	Payout       int64
	CreatedAt    time.Time
}

// PendingContribution is a cascade hop written in the purchase transaction
// and applied later in its own transaction.
type PendingContribution struct {
	ID           int64
	NodeID       int64
	SourceNodeID int64
	AmountMinor  int64
	Reference    uuid.UUID
}
