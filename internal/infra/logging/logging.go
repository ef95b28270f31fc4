package logging

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// SetupJSON points the standard logrus logger at stdout with JSON output.
// An unparsable level falls back to info.
func SetupJSON(level string) {
	log.SetOutput(os.Stdout)
	log.SetFormatter(&log.JSONFormatter{})

	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}
