package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/teamquery-ai/teamquery/pkg/services"
)

// ToolDeps holds the dependencies the query tools need.
type ToolDeps struct {
	QueryService *services.QueryService
	Logger       *zap.Logger
}

// RegisterQueryTools adds the pipeline tools to the server.
func RegisterQueryTools(s *Server, deps *ToolDeps) {
	registerAskDatabaseTool(s, deps)
}

// registerAskDatabaseTool adds the ask_database tool: natural-language
// question in, scoped and bounded result set out.
func registerAskDatabaseTool(s *Server, deps *ToolDeps) {
	tool := mcp.NewTool(
		"ask_database",
		mcp.WithDescription(
			"Answer a natural-language question from the team database. "+
				"Generates a read-only SQL statement, applies the caller's "+
				"permission scope, and returns the rows plus the SQL that ran. "+
				"Example: ask_database(question='how many open orders does my team have')",
		),
		mcp.WithString(
			"question",
			mcp.Required(),
			mcp.Description("The question to answer from the database"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.RegisterTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return nil, err
		}
		question = strings.TrimSpace(question)
		if question == "" {
			return mcp.NewToolResultError("parameter 'question' cannot be empty"), nil
		}

		answer, err := deps.QueryService.Ask(ctx, question)
		if err != nil {
			deps.Logger.Warn("ask_database failed", zap.Error(err))
			return mcp.NewToolResultError(err.Error()), nil
		}

		jsonResult, err := json.Marshal(answer)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal answer: %w", err)
		}
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}
