package logger

import (
	"go.uber.org/zap"
)

// DefaultLevel is used before the configured level is known.
const DefaultLevel = "info"

// Log is a no-op logger until Initialize is called.
var Log *zap.Logger = zap.NewNop()

// Initialize builds the production logger at the given level and replaces Log.
func Initialize(level string) error {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl

	zl, err := cfg.Build()
	if err != nil {
		return err
	}

	Log = zl
	return nil
}
