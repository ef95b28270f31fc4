// Package envconf fills configuration structs from the process environment,
// optionally seeded from .env files.
package envconf

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// DefaultFile is read by Load when present.
const DefaultFile = ".env"

// Load reads DefaultFile if it exists and then processes dst's envconfig
// tags. Variables already set in the environment win over the file.
func Load(dst any) error {
	return LoadFiles(dst, DefaultFile)
}

// LoadFiles is Load with explicit dotenv files. Missing files are skipped.
func LoadFiles(dst any, files ...string) error {
	if dst == nil {
		return errors.New("destination is nil")
	}

	for _, f := range files {
		err := godotenv.Load(f)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}

	err := envconfig.Process("", dst)
	if err != nil {
		return fmt.Errorf("process env: %w", err)
	}

	return nil
}
