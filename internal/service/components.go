// File: internal/service/components.go
package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/capture-cli/internal/cache"
	"github.com/xkilldash9x/capture-cli/internal/capture"
)

// Runner executes a single capture. *capture.Command implements it.
type Runner interface {
	Run(ctx context.Context, req capture.Request) (*capture.Result, error)
}

// Components holds everything a capture invocation needs and centralizes their
// lifecycle.
type Components struct {
	Command Runner
	Cache   *cache.RedisStore

	logger *zap.Logger
}

// Shutdown closes long lived clients. Browsers are not tracked here; each
// Command.Run releases its own.
func (c *Components) Shutdown() {
	logger := c.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if c.Cache != nil {
		if err := c.Cache.Close(); err != nil {
			logger.Warn("Error closing capture cache.", zap.Error(err))
		} else {
			logger.Debug("Capture cache closed.")
		}
		c.Cache = nil
	}
}
