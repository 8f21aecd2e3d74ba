// Package prompts builds the LLM prompts for table selection and SQL
// generation, and normalizes model responses.
package prompts

import (
	"fmt"
	"strings"
)

// NoneSentinel is what the table selection prompt instructs the model to
// answer when no table is relevant to the question.
const NoneSentinel = "NONE"

// BuildTableSelectionPrompt asks the model to pick the tables relevant to a
// question from a one-line-per-table summary.
func BuildTableSelectionPrompt(question, tablesSummary string) string {
	var b strings.Builder
	b.WriteString("You are selecting database tables relevant to a question.\n\n")
	b.WriteString("Available tables:\n")
	b.WriteString(tablesSummary)
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer with a comma-separated list of table names from the list above.\n")
	b.WriteString("Answer " + NoneSentinel + " if no table is relevant. Do not explain.")
	return b.String()
}

// ParseTableSelection extracts table names from a table selection response.
// Returns nil when the model answered the none sentinel.
func ParseTableSelection(response string) []string {
	cleaned := strings.TrimSpace(stripFences(response))
	if cleaned == "" || strings.EqualFold(cleaned, NoneSentinel) {
		return nil
	}

	var tables []string
	for _, part := range strings.Split(cleaned, ",") {
		name := strings.TrimSpace(part)
		name = strings.Trim(name, "`\"'")
		if name == "" || strings.EqualFold(name, NoneSentinel) {
			continue
		}
		tables = append(tables, name)
	}
	return tables
}

// BuildSQLSystemPrompt is the fixed system prompt for SQL generation.
func BuildSQLSystemPrompt(dialect string) string {
	var b strings.Builder
	b.WriteString("You translate questions into SQL for a " + dialect + " database.\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Produce exactly one SELECT statement. Never modify data.\n")
	b.WriteString("- Use only the tables and columns provided in the schema context.\n")
	b.WriteString("- Do not add LIMIT unless the question asks for a specific count.\n")
	b.WriteString("- Return only the SQL statement, no explanation and no markdown.")
	return b.String()
}

// BuildSQLUserPrompt combines the schema context and the question.
func BuildSQLUserPrompt(question, schemaContext string) string {
	return fmt.Sprintf("Schema:\n%s\nQuestion: %s", schemaContext, question)
}

// CleanSQLResponse strips markdown fences and surrounding noise from a
// model's SQL response.
func CleanSQLResponse(response string) string {
	content := strings.TrimSpace(response)
	content = strings.TrimPrefix(content, "```sql")
	content = strings.TrimPrefix(content, "```SQL")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return s
}
