package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"github.com/teamquery-ai/teamquery/pkg/apperrors"
	"github.com/teamquery-ai/teamquery/pkg/config"
	"github.com/teamquery-ai/teamquery/pkg/logging"
	"github.com/teamquery-ai/teamquery/pkg/models"
)

// SQLServerExecutor runs statements against a SQL Server warehouse.
type SQLServerExecutor struct {
	db      *sql.DB
	timeout time.Duration
	logger  *zap.Logger
}

// NewSQLServerExecutor opens a connection to the configured database.
func NewSQLServerExecutor(cfg config.DatabaseConfig, timeout time.Duration, logger *zap.Logger) (*SQLServerExecutor, error) {
	connStr := cfg.ConnectionString()
	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlserver %s: %w",
			logging.SanitizeConnectionString(connStr), err)
	}
	return &SQLServerExecutor{
		db:      db,
		timeout: timeout,
		logger:  logger.Named("sqlserver"),
	}, nil
}

// Execute runs a statement and returns at most limit rows.
func (e *SQLServerExecutor) Execute(ctx context.Context, sqlQuery string, limit int) (*models.QueryResult, error) {
	queryToRun := wrapWithTop(sqlQuery, clampLimit(limit))

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, queryToRun)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrExecution, logging.SanitizeError(err))
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: read columns: %v", apperrors.ErrExecution, err)
	}

	resultRows := make([]map[string]any, 0)
	values := make([]any, len(columns))
	scanArgs := make([]any, len(columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("%w: scan row: %v", apperrors.ErrExecution, err)
		}
		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			rowMap[col] = v
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

// Close releases the connection.
func (e *SQLServerExecutor) Close() {
	_ = e.db.Close()
}
