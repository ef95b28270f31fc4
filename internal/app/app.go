package app

import (
	"database/sql"

	"github.com/fastprodman/matrixledger/internal/config"
	"github.com/fastprodman/matrixledger/internal/infra/cache"
	pgcontributions "github.com/fastprodman/matrixledger/internal/repos/contributions/postgres"
	pgnodes "github.com/fastprodman/matrixledger/internal/repos/nodes/postgres"
	pgtransactions "github.com/fastprodman/matrixledger/internal/repos/transactions/postgres"
	pgtransitions "github.com/fastprodman/matrixledger/internal/repos/transitions/postgres"
	pgusers "github.com/fastprodman/matrixledger/internal/repos/users/postgres"
	"github.com/fastprodman/matrixledger/internal/services/audit"
	"github.com/fastprodman/matrixledger/internal/services/ledger"
	"github.com/fastprodman/matrixledger/internal/services/matrix"
	"github.com/fastprodman/matrixledger/internal/services/placement"
	"github.com/fastprodman/matrixledger/internal/services/progression"
)

// App is the object graph of one process.
type App struct {
	Wallet      *ledger.Wallet
	Placement   *placement.Engine
	Progression *progression.Engine
	Matrix      *matrix.Service
	Auditor     *audit.Auditor
}

type Options struct {
	Cache    cache.Balances
	Notifier audit.Notifier
	Policy   matrix.PayoutPolicy
	Engine   config.EngineConfig
	Audit    config.AuditConfig
}

// New wires the Postgres repositories into the services.
func New(db *sql.DB, opts Options) *App {
	users := pgusers.New()
	txns := pgtransactions.New()
	nodes := pgnodes.New()
	transitions := pgtransitions.New()
	pending := pgcontributions.New()

	wallet := ledger.New(db, users, txns, opts.Cache)
	place := placement.New(nodes)
	prog := progression.New(db, wallet, users, nodes, transitions, pending, opts.Engine.CascadeDepth)

	policy := opts.Policy
	if policy == nil {
		policy = matrix.NewTierPolicy(db, nodes, nil)
	}

	return &App{
		Wallet:      wallet,
		Placement:   place,
		Progression: prog,
		Matrix:      matrix.New(db, wallet, users, nodes, transitions, place, prog, policy, opts.Engine),
		Auditor:     audit.New(wallet, users, txns, nodes, transitions, opts.Notifier, opts.Audit),
	}
}
