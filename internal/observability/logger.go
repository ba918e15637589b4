package observability

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds the production JSON logger at the given level
// (debug, info, warn, error).
func NewLogger(level string) (*zap.Logger, error) {
	atomic, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = atomic
	return cfg.Build()
}
