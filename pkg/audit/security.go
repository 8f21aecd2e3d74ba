// Package audit provides security audit logging for SIEM consumption.
// Every query that passes through the pipeline leaves a trail here: what was
// asked, what was rewritten, what was rejected, and for whom.
package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamquery-ai/teamquery/pkg/logging"
	"github.com/teamquery-ai/teamquery/pkg/models"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventStatementRejected is logged when classification or injection rejects a statement.
	EventStatementRejected SecurityEventType = "statement_rejected"
	// EventScopeInjected is logged when scope predicates are added to a statement.
	EventScopeInjected SecurityEventType = "scope_injected"
	// EventPolicyMismatch is logged when a scoped table could not be located in
	// the statement and an unqualified predicate was applied instead.
	EventPolicyMismatch SecurityEventType = "policy_mismatch"
	// EventQuestionInjectionAttempt is logged when libinjection flags a question.
	EventQuestionInjectionAttempt SecurityEventType = "question_injection_attempt"
	// EventQueryExecuted is logged for successful query execution.
	EventQueryExecuted SecurityEventType = "query_executed"
)

// SecurityEvent represents an auditable security event with all relevant
// context for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	RequestID uuid.UUID         `json:"request_id"`
	SubjectID int64             `json:"subject_id"`
	GroupID   *int64            `json:"group_id,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// RejectionDetails contains specifics of a rejected statement.
type RejectionDetails struct {
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
	SQL    string `json:"sql"`
}

// InjectionDetails contains specifics of a scope injection.
type InjectionDetails struct {
	OriginalSQL string   `json:"original_sql"`
	FinalSQL    string   `json:"final_sql"`
	Predicates  []string `json:"predicates"`
	Fallbacks   []string `json:"fallbacks,omitempty"`
}

// QuestionInjectionDetails contains specifics of a flagged question.
type QuestionInjectionDetails struct {
	Question    string `json:"question"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
}

// ExecutionDetails contains specifics of a completed query.
type ExecutionDetails struct {
	SQL      string `json:"sql"`
	RowCount int    `json:"row_count"`
}

// SecurityAuditor logs security events for SIEM consumption.
// Events are logged in structured JSON format with appropriate severity levels.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger
// namespace for easy filtering in SIEM systems.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogRejection records a rejected statement at WARN level.
func (a *SecurityAuditor) LogRejection(requestID uuid.UUID, id models.Identity, reason, detail, sqlText string) {
	details := RejectionDetails{
		Reason: reason,
		Detail: detail,
		SQL:    logging.TruncateQuery(sqlText),
	}
	event := a.newEvent(EventStatementRejected, requestID, id, details, "warning")

	a.logger.Warn("statement rejected",
		zap.String("event_json", marshalEvent(event)),
		zap.String("request_id", requestID.String()),
		zap.String("reason", reason),
		zap.Int64("subject_id", id.SubjectID),
	)
}

// LogScopeInjection records the predicates added to a statement at INFO level.
func (a *SecurityAuditor) LogScopeInjection(requestID uuid.UUID, id models.Identity, originalSQL, finalSQL string, predicates, fallbacks []string) {
	details := InjectionDetails{
		OriginalSQL: logging.TruncateQuery(originalSQL),
		FinalSQL:    logging.TruncateQuery(finalSQL),
		Predicates:  predicates,
		Fallbacks:   fallbacks,
	}
	event := a.newEvent(EventScopeInjected, requestID, id, details, "info")

	a.logger.Info("scope predicates injected",
		zap.String("event_json", marshalEvent(event)),
		zap.String("request_id", requestID.String()),
		zap.Int("predicate_count", len(predicates)),
		zap.Int64("subject_id", id.SubjectID),
	)

	if len(fallbacks) > 0 {
		mismatch := a.newEvent(EventPolicyMismatch, requestID, id, details, "warning")
		a.logger.Warn("scoped tables applied unqualified",
			zap.String("event_json", marshalEvent(mismatch)),
			zap.String("request_id", requestID.String()),
			zap.Strings("tables", fallbacks),
		)
	}
}

// LogQuestionInjectionAttempt records a flagged natural-language question.
// This is logged at ERROR level with "critical" severity for immediate alerting.
func (a *SecurityAuditor) LogQuestionInjectionAttempt(requestID uuid.UUID, id models.Identity, question, fingerprint string) {
	details := QuestionInjectionDetails{
		Question:    question,
		Fingerprint: fingerprint,
	}
	event := a.newEvent(EventQuestionInjectionAttempt, requestID, id, details, "critical")

	a.logger.Error("SQL injection attempt detected in question",
		zap.String("event_json", marshalEvent(event)),
		zap.String("request_id", requestID.String()),
		zap.String("fingerprint", fingerprint),
		zap.Int64("subject_id", id.SubjectID),
		zap.String("severity", "critical"),
	)
}

// LogQueryExecuted records a successfully executed query at INFO level.
func (a *SecurityAuditor) LogQueryExecuted(requestID uuid.UUID, id models.Identity, sqlText string, rowCount int) {
	details := ExecutionDetails{
		SQL:      logging.TruncateQuery(sqlText),
		RowCount: rowCount,
	}
	event := a.newEvent(EventQueryExecuted, requestID, id, details, "info")

	a.logger.Info("query executed",
		zap.String("event_json", marshalEvent(event)),
		zap.String("request_id", requestID.String()),
		zap.Int("row_count", rowCount),
		zap.Int64("subject_id", id.SubjectID),
	)
}

func (a *SecurityAuditor) newEvent(eventType SecurityEventType, requestID uuid.UUID, id models.Identity, details any, severity string) SecurityEvent {
	return SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		RequestID: requestID,
		SubjectID: id.SubjectID,
		GroupID:   id.GroupID,
		Details:   details,
		Severity:  severity,
	}
}

// marshalEvent serializes an event for SIEM ingestion.
// Ignoring error as marshaling known types should never fail.
func marshalEvent(event SecurityEvent) string {
	eventJSON, _ := json.Marshal(event)
	return string(eventJSON)
}
