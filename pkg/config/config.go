package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for teamquery.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys, tokens) must only come from environment variables.
type Config struct {
	Env string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`

	// Database configuration (the data warehouse queries run against)
	Database DatabaseConfig `yaml:"database"`

	// LLM configuration for SQL generation
	LLM LLMConfig `yaml:"llm"`

	// Identity configuration for the calling user
	Identity IdentityConfig `yaml:"identity"`

	// Query execution limits
	Query QueryConfig `yaml:"query"`

	// PolicyFile is the path to the table scoping rules.
	PolicyFile string `yaml:"policy_file" env:"POLICY_FILE" env-default:"policy.yaml"`
	// SchemaFile is the path to the schema snapshot used for prompting.
	SchemaFile string `yaml:"schema_file" env:"SCHEMA_FILE" env-default:"schema.json"`
	// LabelsFile is the path to the code-to-label mappings (optional).
	LabelsFile string `yaml:"labels_file" env:"LABELS_FILE" env-default:""`
}

// DatabaseConfig holds connection settings for the queried database.
type DatabaseConfig struct {
	// Driver selects the executor: "postgres" or "sqlserver".
	Driver   string `yaml:"driver" env:"DB_DRIVER" env-default:"postgres"`
	Host     string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"DB_USER" env-default:""`
	Password string `yaml:"-" env:"DB_PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"DB_NAME" env-default:""`
	SSLMode  string `yaml:"ssl_mode" env:"DB_SSLMODE" env-default:"disable"`
}

// LLMConfig holds settings for the SQL-generating model.
type LLMConfig struct {
	// Provider selects the client: "openai" or "anthropic".
	Provider string `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	Model    string `yaml:"model" env:"LLM_MODEL" env-default:""`
	// BaseURL overrides the provider endpoint (for compatible gateways).
	BaseURL     string  `yaml:"base_url" env:"LLM_BASE_URL" env-default:""`
	APIKey      string  `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	Temperature float64 `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0"`
}

// IdentityConfig holds the caller identity. A signed token takes precedence;
// otherwise the explicit subject/group fields are used.
type IdentityConfig struct {
	SubjectID   int64  `yaml:"subject_id" env:"IDENTITY_SUBJECT_ID" env-default:"0"`
	GroupID     int64  `yaml:"group_id" env:"IDENTITY_GROUP_ID" env-default:"0"`
	Privileged  bool   `yaml:"privileged" env:"IDENTITY_PRIVILEGED" env-default:"false"`
	Token       string `yaml:"-" env:"IDENTITY_TOKEN"`        // Secret - not in YAML
	TokenSecret string `yaml:"-" env:"IDENTITY_TOKEN_SECRET"` // Secret - not in YAML

	// Unrestricted disables scope injection entirely. It must be set
	// explicitly; no other setting implies it.
	Unrestricted bool `yaml:"unrestricted" env:"IDENTITY_UNRESTRICTED" env-default:"false"`
}

// QueryConfig holds execution limits applied to every statement.
type QueryConfig struct {
	RowLimit       int `yaml:"row_limit" env:"QUERY_ROW_LIMIT" env-default:"10"`
	TimeoutSeconds int `yaml:"timeout_seconds" env:"QUERY_TIMEOUT_SECONDS" env-default:"30"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. If no config.yaml exists, environment variables alone are used.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlserver":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unsupported llm provider %q", c.LLM.Provider)
	}
	if c.Query.RowLimit <= 0 {
		return fmt.Errorf("query row_limit must be positive, got %d", c.Query.RowLimit)
	}
	if c.Query.TimeoutSeconds <= 0 {
		return fmt.Errorf("query timeout_seconds must be positive, got %d", c.Query.TimeoutSeconds)
	}
	return nil
}

// ConnectionString returns a driver-appropriate connection string.
func (c *DatabaseConfig) ConnectionString() string {
	if c.Driver == "sqlserver" {
		return fmt.Sprintf(
			"server=%s;port=%d;user id=%s;password=%s;database=%s",
			c.Host, c.Port, c.User, c.Password, c.Database,
		)
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
