package main

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	log "github.com/sirupsen/logrus"

	"github.com/fastprodman/matrixledger/internal/infra/logging"
	"github.com/fastprodman/matrixledger/internal/infra/schema"
	"github.com/fastprodman/matrixledger/pkg/envconf"
)

type migratorConfig struct {
	DSN      string `envconfig:"PG_DSN" required:"true"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	AppEnv   string `envconfig:"APP_ENV" default:"PROD"`
	Down     bool   `envconfig:"MIGRATE_DOWN" default:"false"`
}

// plan lists the sets to touch in order. Seed rows reference schema
// tables, so the seed goes last on the way up and first on the way down.
func (c migratorConfig) plan() []schema.Set {
	sets := []schema.Set{schema.Tables}
	if c.AppEnv == "DEV" {
		sets = append(sets, schema.Seed)
	}
	if c.Down {
		for i, j := 0, len(sets)-1; i < j; i, j = i+1, j-1 {
			sets[i], sets[j] = sets[j], sets[i]
		}
	}
	return sets
}

func main() {
	err := migrateAll()
	if err != nil {
		log.WithError(err).Error("migration run failed")
		os.Exit(1)
	}
}

func migrateAll() error {
	var cfg migratorConfig

	err := envconf.Load(&cfg)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.SetupJSON(cfg.LogLevel)

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	//nolint:errcheck
	defer db.Close()

	err = db.Ping()
	if err != nil {
		return fmt.Errorf("ping db: %w", err)
	}

	for _, set := range cfg.plan() {
		step, apply := "applied", set.Up
		if cfg.Down {
			step, apply = "rolled back", set.Down
		}
		err = apply(db)
		if err != nil {
			return err
		}
		log.WithField("set", set.String()).Info("migrations " + step)
	}

	return nil
}
