package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teamquery-ai/teamquery/pkg/audit"
	"github.com/teamquery-ai/teamquery/pkg/auth"
	"github.com/teamquery-ai/teamquery/pkg/config"
	"github.com/teamquery-ai/teamquery/pkg/database"
	"github.com/teamquery-ai/teamquery/pkg/llm"
	"github.com/teamquery-ai/teamquery/pkg/logging"
	"github.com/teamquery-ai/teamquery/pkg/mcp"
	"github.com/teamquery-ai/teamquery/pkg/models"
	"github.com/teamquery-ai/teamquery/pkg/policy"
	"github.com/teamquery-ai/teamquery/pkg/retry"
	"github.com/teamquery-ai/teamquery/pkg/schema"
	"github.com/teamquery-ai/teamquery/pkg/services"
	sqlpkg "github.com/teamquery-ai/teamquery/pkg/sql"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	question := flag.String("q", "", "answer one question and exit")
	mcpMode := flag.Bool("mcp", false, "serve the pipeline as MCP tools over stdio")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("driver", cfg.Database.Driver),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("policy_file", cfg.PolicyFile))

	svc, executor, err := buildPipeline(cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer executor.Close()

	ctx := context.Background()

	switch {
	case *mcpMode:
		srv := mcp.NewServer("teamquery", Version, logger)
		mcp.RegisterQueryTools(srv, &mcp.ToolDeps{QueryService: svc, Logger: logger})
		if err := srv.ServeStdio(); err != nil {
			logger.Fatal("MCP server failed", zap.Error(err))
		}
	case *question != "":
		if err := askAndPrint(ctx, svc, *question); err != nil {
			logger.Fatal("question failed", zap.Error(err))
		}
	default:
		runREPL(ctx, svc)
	}
}

// buildPipeline wires config into a ready query service.
func buildPipeline(cfg *config.Config, logger *zap.Logger) (*services.QueryService, database.Executor, error) {
	identity, err := resolveIdentity(cfg)
	if err != nil {
		return nil, nil, err
	}

	pol, err := policy.LoadFile(cfg.PolicyFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load policy: %w", err)
	}

	mgr, err := schema.LoadFile(cfg.SchemaFile, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("load schema snapshot: %w", err)
	}

	labeler := services.NewLabeler(nil)
	if cfg.LabelsFile != "" {
		labeler, err = services.LoadLabels(cfg.LabelsFile)
		if err != nil {
			return nil, nil, fmt.Errorf("load labels: %w", err)
		}
	}

	baseClient, err := llm.NewClient(cfg.LLM, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("build llm client: %w", err)
	}
	client := llm.NewRetryingClient(baseClient, retry.DefaultConfig(), logger)

	timeout := time.Duration(cfg.Query.TimeoutSeconds) * time.Second
	executor, err := database.NewExecutor(context.Background(), cfg.Database, timeout, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}

	svc := services.NewQueryService(
		sqlpkg.NewInjector(pol, logger),
		executor,
		client,
		mgr,
		labeler,
		audit.NewSecurityAuditor(logger),
		identity,
		services.QueryOptions{
			Dialect:      cfg.Database.Driver,
			Temperature:  cfg.LLM.Temperature,
			RowLimit:     cfg.Query.RowLimit,
			Unrestricted: cfg.Identity.Unrestricted,
		},
		logger,
	)
	return svc, executor, nil
}

// resolveIdentity picks the caller identity: a signed token wins, explicit
// config values are next, and absent identity is only legal with the
// explicit unrestricted flag.
func resolveIdentity(cfg *config.Config) (models.Identity, error) {
	if cfg.Identity.Token != "" {
		verifier, err := auth.NewVerifier(cfg.Identity.TokenSecret)
		if err != nil {
			return models.Identity{}, fmt.Errorf("identity token set but no token secret: %w", err)
		}
		id, err := verifier.Verify(cfg.Identity.Token)
		if err != nil {
			return models.Identity{}, fmt.Errorf("verify identity token: %w", err)
		}
		return id, nil
	}

	if cfg.Identity.SubjectID == 0 {
		if cfg.Identity.Unrestricted {
			return models.Identity{}, nil
		}
		return models.Identity{}, fmt.Errorf("no identity configured: set identity.subject_id, IDENTITY_TOKEN, or identity.unrestricted")
	}

	id := models.Identity{
		SubjectID:  cfg.Identity.SubjectID,
		Privileged: cfg.Identity.Privileged,
	}
	if cfg.Identity.GroupID != 0 {
		group := cfg.Identity.GroupID
		id.GroupID = &group
	}
	return id, nil
}

// runREPL reads questions from stdin until EOF.
func runREPL(ctx context.Context, svc *services.QueryService) {
	fmt.Println("teamquery - ask questions about your data (ctrl-d to quit)")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if err := askAndPrint(ctx, svc, question); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func askAndPrint(ctx context.Context, svc *services.QueryService, question string) error {
	answer, err := svc.Ask(ctx, question)
	if err != nil {
		return err
	}

	fmt.Printf("SQL: %s\n", answer.SQL)
	if answer.Result == nil || answer.Result.RowCount == 0 {
		fmt.Println("no rows")
		return nil
	}
	for i, row := range answer.Result.Rows {
		fmt.Printf("--- row %d ---\n", i+1)
		for _, col := range answer.Result.Columns {
			fmt.Printf("%s: %v\n", col, row[col])
		}
	}
	fmt.Printf("(%d rows)\n", answer.Result.RowCount)
	return nil
}
