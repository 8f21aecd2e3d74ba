// Package services orchestrates the question-to-answer pipeline: injection
// guard, table identification, SQL generation, safety validation, scope
// injection, bounded execution and result labeling.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamquery-ai/teamquery/pkg/apperrors"
	"github.com/teamquery-ai/teamquery/pkg/audit"
	"github.com/teamquery-ai/teamquery/pkg/database"
	"github.com/teamquery-ai/teamquery/pkg/llm"
	"github.com/teamquery-ai/teamquery/pkg/models"
	"github.com/teamquery-ai/teamquery/pkg/prompts"
	"github.com/teamquery-ai/teamquery/pkg/schema"
	sqlpkg "github.com/teamquery-ai/teamquery/pkg/sql"
)

// QueryOptions tunes pipeline behavior per deployment.
type QueryOptions struct {
	// Dialect names the SQL dialect for the generation prompt ("postgres",
	// "sqlserver").
	Dialect string
	// Temperature for SQL generation requests.
	Temperature float64
	// RowLimit bounds how many rows an answer may return.
	RowLimit int
	// Unrestricted skips scope injection entirely. Classification still
	// applies; nothing unsafe runs even for unrestricted callers.
	Unrestricted bool
}

// QueryService runs raw statements and natural-language questions through
// the validation and rewrite pipeline.
type QueryService struct {
	injector   *sqlpkg.Injector
	executor   database.Executor
	llm        llm.Client
	schema     *schema.Manager
	identifier *TableIdentifier
	labeler    *Labeler
	auditor    *audit.SecurityAuditor
	identity   models.Identity
	opts       QueryOptions
	logger     *zap.Logger
}

// NewQueryService wires the pipeline together.
func NewQueryService(
	injector *sqlpkg.Injector,
	executor database.Executor,
	client llm.Client,
	mgr *schema.Manager,
	labeler *Labeler,
	auditor *audit.SecurityAuditor,
	identity models.Identity,
	opts QueryOptions,
	logger *zap.Logger,
) *QueryService {
	return &QueryService{
		injector:   injector,
		executor:   executor,
		llm:        client,
		schema:     mgr,
		identifier: NewTableIdentifier(client, mgr, logger),
		labeler:    labeler,
		auditor:    auditor,
		identity:   identity,
		opts:       opts,
		logger:     logger.Named("query"),
	}
}

// RunResult is the outcome of validating and rewriting one statement.
type RunResult struct {
	// SQL is the statement that is safe to execute.
	SQL string
	// Predicates are the scope fragments that were conjoined.
	Predicates []string
	// Fallbacks lists tables whose predicate was applied unqualified.
	Fallbacks []string
	// Audit is the trail for this trip through the pipeline. It is
	// populated on rejection too, with Rejected set.
	Audit models.AuditRecord
}

// Run validates a raw statement and conjoins the caller's scope predicates.
// It never executes anything: rejected statements are returned with the
// rejection error and an audit record, and nothing downstream sees them.
func (s *QueryService) Run(ctx context.Context, rawSQL string, tables []string, id models.Identity) (*RunResult, error) {
	requestID := uuid.New()
	record := models.AuditRecord{
		RequestID:   requestID,
		Timestamp:   time.Now().UTC(),
		Identity:    id.String(),
		OriginalSQL: rawSQL,
	}

	classified, err := sqlpkg.Classify(rawSQL)
	if err != nil {
		return s.reject(requestID, record, id, rawSQL, err)
	}

	if s.opts.Unrestricted {
		record.FinalSQL = classified
		return &RunResult{SQL: classified, Audit: record}, nil
	}

	injected, err := s.injector.Inject(classified, tables, id)
	if err != nil {
		return s.reject(requestID, record, id, rawSQL, err)
	}

	record.FinalSQL = injected.SQL
	record.Predicates = injected.Predicates
	record.Fallbacks = injected.Fallbacks

	if len(injected.Predicates) > 0 {
		s.auditor.LogScopeInjection(requestID, id, rawSQL, injected.SQL, injected.Predicates, injected.Fallbacks)
	}

	return &RunResult{
		SQL:        injected.SQL,
		Predicates: injected.Predicates,
		Fallbacks:  injected.Fallbacks,
		Audit:      record,
	}, nil
}

// Ask answers a natural-language question end to end. The returned answer
// includes the generated SQL, the bounded result set and the audit record.
func (s *QueryService) Ask(ctx context.Context, question string) (*models.QueryAnswer, error) {
	if hit := sqlpkg.CheckQuestionForInjection(question); hit != nil {
		s.auditor.LogQuestionInjectionAttempt(uuid.New(), s.identity, question, hit.Fingerprint)
		return nil, fmt.Errorf("%w: question flagged as SQL injection", apperrors.ErrUnsafeStatement)
	}

	tables, err := s.identifier.Identify(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("table identification failed: %w", err)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("no tables in the schema match the question")
	}

	system := prompts.BuildSQLSystemPrompt(s.opts.Dialect)
	user := prompts.BuildSQLUserPrompt(question, s.schema.PromptContext(tables))

	response, err := s.llm.GenerateResponse(ctx, user, system, s.opts.Temperature)
	if err != nil {
		return nil, fmt.Errorf("SQL generation failed: %w", err)
	}
	generated := prompts.CleanSQLResponse(response)

	s.logger.Debug("generated SQL",
		zap.Strings("tables", tables),
		zap.String("sql", generated))

	run, err := s.Run(ctx, generated, tables, s.identity)
	if err != nil {
		return nil, err
	}

	result, err := s.executor.Execute(ctx, run.SQL, s.opts.RowLimit)
	if err != nil {
		return nil, err
	}
	s.labeler.Apply(result)

	s.auditor.LogQueryExecuted(run.Audit.RequestID, s.identity, run.SQL, result.RowCount)

	return &models.QueryAnswer{
		Question: question,
		Tables:   tables,
		SQL:      run.SQL,
		Result:   result,
		Audit:    run.Audit,
	}, nil
}

// reject logs the rejection and returns the audit record alongside the error.
func (s *QueryService) reject(requestID uuid.UUID, record models.AuditRecord, id models.Identity, rawSQL string, err error) (*RunResult, error) {
	reason := "rejected"
	detail := err.Error()
	var rej *sqlpkg.RejectionError
	if errors.As(err, &rej) {
		reason = rej.Reason
		detail = rej.Detail
	}

	record.Rejected = reason
	s.auditor.LogRejection(requestID, id, reason, detail, rawSQL)

	return &RunResult{Audit: record}, err
}
