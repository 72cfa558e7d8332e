package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration. Secrets (API keys) come from the environment,
// a .env file, or the config file; never committed.
type Config struct {
	// Provider selects the chat client: "openai" or "anthropic".
	Provider        string `json:"provider"`
	OpenAIAPIKey    string `json:"openai_api_key"`
	AnthropicAPIKey string `json:"anthropic_api_key"`
	// BaseURL overrides the provider endpoint (OpenAI-compatible servers, proxies).
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	// MaxRetries for transient HTTP failures; 0 sends each request once.
	MaxRetries int `json:"max_retries"`

	SystemPrompt string `json:"system_prompt"`
	// FunctionsPath is a declaration file or a doublestar glob (e.g. functions/**/*.yaml).
	FunctionsPath string `json:"functions_path"`

	// ConfigDir is where config.json lives (set at runtime).
	ConfigDir    string `json:"-"`
	AuditLogPath string `json:"audit_log_path"`
	// DBPath is the SQLite audit store; empty disables it.
	DBPath      string `json:"db_path"`
	HistoryFile string `json:"history_file"`

	MaxFunctionCalls  int `json:"max_function_calls"`
	ContextTokenLimit int `json:"context_token_limit"`
	// ToolOutputMaxRunes caps function output length (0 = no truncation).
	ToolOutputMaxRunes int `json:"tool_output_max_runes"`
	// ConfirmRestricted prompts before running functions declared with policy "restricted".
	ConfirmRestricted bool `json:"confirm_restricted"`

	ExecTimeoutSeconds    int      `json:"exec_timeout_seconds"`
	MaxExecTimeoutSeconds int      `json:"max_exec_timeout_seconds"`
	Interpreter           []string `json:"interpreter"`
	Linter                []string `json:"linter"`
	Formatter             []string `json:"formatter"`
}

// Defaults.
const (
	DefaultProvider     = "openai"
	DefaultSystemPrompt = "You are a helpful assistant"
	DefaultFunctions    = "functions.json"
	DefaultAuditLog     = "logs/conversation.log"
)

// DefaultConfigDir returns the project-local .funcchat if present, else ~/.config/funcchat.
func DefaultConfigDir() string {
	cwd, _ := os.Getwd()
	local := filepath.Join(cwd, ".funcchat")
	if info, err := os.Stat(local); err == nil && info.IsDir() {
		return local
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "funcchat")
}

// New builds config from defaults, .env, the environment and the optional config.json in
// configDir, later sources winning. configDir can be empty to use FUNCCHAT_CONFIG_DIR or
// DefaultConfigDir.
func New(configDir string) (*Config, error) {
	// .env never overrides variables already set in the environment.
	_ = godotenv.Load()

	if configDir == "" {
		if d := os.Getenv("FUNCCHAT_CONFIG_DIR"); d != "" {
			configDir = d
		} else {
			configDir = DefaultConfigDir()
		}
	}
	cfg := &Config{
		Provider:              DefaultProvider,
		SystemPrompt:          DefaultSystemPrompt,
		FunctionsPath:         DefaultFunctions,
		AuditLogPath:          DefaultAuditLog,
		ConfigDir:             configDir,
		HistoryFile:           filepath.Join(configDir, "history"),
		MaxFunctionCalls:      10,
		ExecTimeoutSeconds:    10,
		MaxExecTimeoutSeconds: 60,
		Interpreter:           []string{"python3"},
		Linter:                []string{"pyflakes"},
		Formatter:             []string{"autopep8", "--in-place"},
	}
	cfg.applyEnv()

	configPath := filepath.Join(configDir, "config.json")
	if data, err := os.ReadFile(configPath); err == nil {
		// Keys present in the file overwrite env values; missing keys leave them alone.
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: %s: %w", configPath, err)
		}
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Provider, "FUNCCHAT_PROVIDER")
	setString(&c.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&c.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	setString(&c.BaseURL, "FUNCCHAT_BASE_URL")
	setString(&c.Model, "FUNCCHAT_MODEL")
	setString(&c.SystemPrompt, "FUNCCHAT_SYSTEM_PROMPT")
	setString(&c.FunctionsPath, "FUNCCHAT_FUNCTIONS")
	setString(&c.AuditLogPath, "FUNCCHAT_AUDIT_LOG")
	setString(&c.DBPath, "FUNCCHAT_DB_PATH")
	setString(&c.HistoryFile, "FUNCCHAT_HISTORY_FILE")
	setInt(&c.MaxRetries, "FUNCCHAT_MAX_RETRIES")
	setInt(&c.MaxFunctionCalls, "FUNCCHAT_MAX_FUNCTION_CALLS")
	setInt(&c.ContextTokenLimit, "FUNCCHAT_CONTEXT_TOKEN_LIMIT")
	setInt(&c.ToolOutputMaxRunes, "FUNCCHAT_TOOL_OUTPUT_MAX_RUNES")
	setInt(&c.ExecTimeoutSeconds, "FUNCCHAT_EXEC_TIMEOUT")
	setInt(&c.MaxExecTimeoutSeconds, "FUNCCHAT_MAX_EXEC_TIMEOUT")
	setArgv(&c.Interpreter, "FUNCCHAT_INTERPRETER")
	setArgv(&c.Linter, "FUNCCHAT_LINTER")
	setArgv(&c.Formatter, "FUNCCHAT_FORMATTER")
	if v := os.Getenv("FUNCCHAT_CONFIRM_RESTRICTED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.ConfirmRestricted = b
		}
	}
}

// APIKey returns the key for the selected provider.
func (c *Config) APIKey() string {
	if c.Provider == "anthropic" {
		return c.AnthropicAPIKey
	}
	return c.OpenAIAPIKey
}

// ExecTimeout is the default execute_code timeout.
func (c *Config) ExecTimeout() time.Duration {
	return time.Duration(c.ExecTimeoutSeconds) * time.Second
}

// MaxExecTimeout caps the timeout a model may request.
func (c *Config) MaxExecTimeout() time.Duration {
	return time.Duration(c.MaxExecTimeoutSeconds) * time.Second
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			*dst = n
		}
	}
}

// setArgv splits the variable on whitespace; set it to "-" to clear the command.
func setArgv(dst *[]string, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	if strings.TrimSpace(v) == "-" {
		*dst = nil
		return
	}
	*dst = strings.Fields(v)
}
