package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/fastprodman/matrixledger/internal/config"
	"github.com/fastprodman/matrixledger/internal/infra/cache"
	"github.com/fastprodman/matrixledger/internal/infra/pgutils"
	"github.com/fastprodman/matrixledger/pkg/shutdownqueue"
)

// Open connects to Postgres and, when configured, Redis, and builds the
// App. Every opened resource is registered on q.
func Open(ctx context.Context, cfg config.Base, q *shutdownqueue.Queue) (*App, error) {
	db, err := pgutils.OpenDB(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	q.AddCloser("postgres", db.Close)

	var balances cache.Balances = cache.Nop{}

	if cfg.Redis.Addr != "" {
		rdb, err := cache.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}

		q.AddCloser("redis", rdb.Close)

		balances = cache.NewRedisBalances(rdb, cfg.Redis.TTL)

		log.WithField("addr", cfg.Redis.Addr).Info("balance cache enabled")
	}

	return New(db, Options{
		Cache:  balances,
		Engine: cfg.Engine,
		Audit:  cfg.Audit,
	}), nil
}
