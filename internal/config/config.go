package config

import "time"

type PostgresConfig struct {
	DSN             string        `envconfig:"PG_DSN" required:"true"`
	MaxOpenConns    int           `envconfig:"PG_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PG_MAX_IDLE_CONNS" default:"10"`
	ConnMaxIdleTime time.Duration `envconfig:"PG_CONN_MAX_IDLE_TIME" default:"5m"`
	ConnMaxLifetime time.Duration `envconfig:"PG_CONN_MAX_LIFETIME" default:"30m"`
}

// RedisConfig is optional: an empty Addr disables the balance cache.
type RedisConfig struct {
	Addr     string        `envconfig:"REDIS_ADDR"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	TTL      time.Duration `envconfig:"BALANCE_CACHE_TTL" default:"30s"`
}

type EngineConfig struct {
	CascadeDepth        int           `envconfig:"CASCADE_DEPTH" default:"5"`
	PlacementMaxRetries int           `envconfig:"PLACEMENT_MAX_RETRIES" default:"5"`
	RetryBaseDelay      time.Duration `envconfig:"PLACEMENT_RETRY_BASE_DELAY" default:"25ms"`
	RetryMaxDelay       time.Duration `envconfig:"PLACEMENT_RETRY_MAX_DELAY" default:"800ms"`
	MaxTreeDepth        int           `envconfig:"MAX_TREE_DEPTH" default:"8"`
}

type AuditConfig struct {
	EpsilonMinor     int64  `envconfig:"AUDIT_EPSILON" default:"0"`
	BonusBufferMinor int64  `envconfig:"AUDIT_BONUS_BUFFER" default:"0"`
	AutoCorrect      bool   `envconfig:"AUDIT_AUTO_CORRECT" default:"false"`
	PageSize         int    `envconfig:"AUDIT_PAGE_SIZE" default:"500"`
	Schedule         string `envconfig:"AUDIT_SCHEDULE" default:"@every 1h"`
	DrainSchedule    string `envconfig:"DRAIN_SCHEDULE" default:"@every 1m"`
	Timezone         string `envconfig:"JOBS_TIMEZONE" default:"UTC"`
}

// Base is what every binary that talks to the engine loads.
type Base struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Postgres PostgresConfig
	Redis    RedisConfig
	Engine   EngineConfig
	Audit    AuditConfig
}
