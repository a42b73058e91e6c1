package commands

import (
	"os"

	"github.com/charmbracelet/log"
)

// SetupLogger creates the stderr logger at the given level
func SetupLogger(level string) (*log.Logger, error) {
	logger := log.New(os.Stderr)
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(lvl)
	return logger, nil
}
