package main

import (
	"time"

	"github.com/fastprodman/matrixledger/internal/config"
)

type apiConfig struct {
	config.Base

	Port            uint16        `envconfig:"APP_PORT" default:"8080"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
	JobsEnabled     bool          `envconfig:"JOBS_ENABLED" default:"true"`
}
