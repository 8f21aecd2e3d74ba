package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/teamquery-ai/teamquery/pkg/llm"
	"github.com/teamquery-ai/teamquery/pkg/prompts"
	"github.com/teamquery-ai/teamquery/pkg/schema"
)

// maxSelectedTables caps how many tables feed the SQL generation prompt.
const maxSelectedTables = 5

// TableIdentifier picks the tables relevant to a question, asking the model
// first and falling back to keyword search over the schema snapshot.
type TableIdentifier struct {
	llm    llm.Client
	schema *schema.Manager
	logger *zap.Logger
}

// NewTableIdentifier wires an identifier to a model and a schema snapshot.
func NewTableIdentifier(client llm.Client, mgr *schema.Manager, logger *zap.Logger) *TableIdentifier {
	return &TableIdentifier{
		llm:    client,
		schema: mgr,
		logger: logger.Named("table_identifier"),
	}
}

// Identify returns up to maxSelectedTables tables relevant to the question.
// Tables the snapshot does not know are dropped, so hallucinated names never
// reach the prompt or the scope hints.
func (ti *TableIdentifier) Identify(ctx context.Context, question string) ([]string, error) {
	prompt := prompts.BuildTableSelectionPrompt(question, ti.schema.AllTablesSummary())

	response, err := ti.llm.GenerateResponse(ctx, prompt, "", 0)
	if err != nil {
		ti.logger.Warn("table selection request failed, using keyword fallback", zap.Error(err))
		return ti.keywordFallback(question), nil
	}

	var tables []string
	for _, name := range prompts.ParseTableSelection(response) {
		if !ti.schema.TableExists(name) {
			ti.logger.Debug("dropping unknown table from selection", zap.String("table", name))
			continue
		}
		tables = append(tables, name)
		if len(tables) == maxSelectedTables {
			break
		}
	}

	if len(tables) == 0 {
		return ti.keywordFallback(question), nil
	}
	return tables, nil
}

// keywordFallback searches the schema snapshot with each word of the
// question. Order of first match wins; duplicates are dropped.
func (ti *TableIdentifier) keywordFallback(question string) []string {
	seen := make(map[string]bool)
	var tables []string

	for _, word := range strings.Fields(question) {
		word = strings.Trim(strings.ToLower(word), ".,?!'\"")
		if len(word) < 3 {
			continue
		}
		for _, table := range ti.schema.SearchByKeyword(word) {
			if seen[table] {
				continue
			}
			seen[table] = true
			tables = append(tables, table)
			if len(tables) == maxSelectedTables {
				return tables
			}
		}
	}
	return tables
}
