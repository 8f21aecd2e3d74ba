package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/teamquery-ai/teamquery/pkg/apperrors"
	"github.com/teamquery-ai/teamquery/pkg/config"
	"github.com/teamquery-ai/teamquery/pkg/logging"
	"github.com/teamquery-ai/teamquery/pkg/models"
)

// PostgresExecutor runs statements against a PostgreSQL warehouse.
type PostgresExecutor struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	logger  *zap.Logger
}

// NewPostgresExecutor connects a pool to the configured database. Every
// connection forces read-only transactions as a second line of defense
// behind the classifier.
func NewPostgresExecutor(ctx context.Context, cfg config.DatabaseConfig, timeout time.Duration, logger *zap.Logger) (*PostgresExecutor, error) {
	connStr := cfg.ConnectionString()
	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config %s: %w",
			logging.SanitizeConnectionString(connStr), err)
	}
	poolCfg.ConnConfig.RuntimeParams["default_transaction_read_only"] = "on"

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres %s: %w",
			logging.SanitizeConnectionString(connStr), err)
	}
	return &PostgresExecutor{
		pool:    pool,
		timeout: timeout,
		logger:  logger.Named("postgres"),
	}, nil
}

// Execute runs a statement and returns at most limit rows.
func (e *PostgresExecutor) Execute(ctx context.Context, sqlQuery string, limit int) (*models.QueryResult, error) {
	queryToRun := wrapWithLimit(sqlQuery, clampLimit(limit))

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	rows, err := e.pool.Query(ctx, queryToRun)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrExecution, logging.SanitizeError(err))
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = string(fd.Name)
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("%w: read row values: %v", apperrors.ErrExecution, err)
		}
		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col] = values[i]
		}
		resultRows = append(resultRows, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate rows: %v", apperrors.ErrExecution, err)
	}

	e.logger.Debug("query executed",
		zap.Int("rows", len(resultRows)),
		zap.Duration("elapsed", time.Since(start)))

	return &models.QueryResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}

// Close releases the pool.
func (e *PostgresExecutor) Close() {
	e.pool.Close()
}
