package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/teamquery-ai/teamquery/pkg/config"
)

// NewExecutor builds the executor matching the configured driver.
func NewExecutor(ctx context.Context, cfg config.DatabaseConfig, timeout time.Duration, logger *zap.Logger) (Executor, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgresExecutor(ctx, cfg, timeout, logger)
	case "sqlserver":
		return NewSQLServerExecutor(cfg, timeout, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
