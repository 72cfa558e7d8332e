// funcchat is an interactive chat with a model that can call declared functions:
// web search and sandboxed code execution.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hattiebot/funcchat/internal/agent"
	_ "github.com/hattiebot/funcchat/internal/anthropic"
	"github.com/hattiebot/funcchat/internal/audit"
	"github.com/hattiebot/funcchat/internal/config"
	"github.com/hattiebot/funcchat/internal/core"
	"github.com/hattiebot/funcchat/internal/health"
	"github.com/hattiebot/funcchat/internal/middleware"
	_ "github.com/hattiebot/funcchat/internal/openai"
	"github.com/hattiebot/funcchat/internal/provider"
	"github.com/hattiebot/funcchat/internal/registry"
	"github.com/hattiebot/funcchat/internal/sandbox"
	"github.com/hattiebot/funcchat/internal/store"
	"github.com/hattiebot/funcchat/internal/tools"
	"github.com/hattiebot/funcchat/internal/websearch"
)

var (
	aiColor    = color.New(color.FgCyan)
	errorColor = color.New(color.FgRed)
	infoColor  = color.New(color.FgBlue)
)

type flags struct {
	configDir        string
	provider         string
	model            string
	functions        string
	auditLog         string
	dbPath           string
	maxFunctionCalls int
}

func main() {
	var f flags
	root := &cobra.Command{
		Use:           "funcchat",
		Short:         "Chat with a model that can search the web and run Python",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return runChat(cmd.Context(), cfg)
		},
	}
	root.PersistentFlags().StringVar(&f.configDir, "config-dir", "", "directory holding config.json (default: .funcchat or ~/.config/funcchat)")
	root.PersistentFlags().StringVar(&f.provider, "provider", "", "chat provider: openai or anthropic")
	root.PersistentFlags().StringVar(&f.model, "model", "", "model id")
	root.PersistentFlags().StringVar(&f.functions, "functions", "", "function declaration file or glob")
	root.PersistentFlags().StringVar(&f.auditLog, "audit-log", "", "JSON-lines audit file")
	root.PersistentFlags().StringVar(&f.dbPath, "db", "", "SQLite audit database")
	root.PersistentFlags().IntVar(&f.maxFunctionCalls, "max-function-calls", 0, "function calls allowed per turn")

	root.AddCommand(&cobra.Command{
		Use:   "functions",
		Short: "Print the declared functions and their estimated token cost",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return printFunctions(cmd.OutOrStdout(), cfg)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "sessions",
		Short: "List conversations stored in the audit database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return printSessions(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "doctor",
		Short: "Check the interpreter, linter, formatter and API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return doctor(cmd.OutOrStdout(), cfg)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		// After the first interrupt a second one kills the process outright.
		<-ctx.Done()
		stop()
	}()
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		errorColor.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, f flags) (*config.Config, error) {
	cfg, err := config.New(f.configDir)
	if err != nil {
		return nil, err
	}
	fl := cmd.Flags()
	if fl.Changed("provider") {
		cfg.Provider = f.provider
	}
	if fl.Changed("model") {
		cfg.Model = f.model
	}
	if fl.Changed("functions") {
		cfg.FunctionsPath = f.functions
	}
	if fl.Changed("audit-log") {
		cfg.AuditLogPath = f.auditLog
	}
	if fl.Changed("db") {
		cfg.DBPath = f.dbPath
	}
	if fl.Changed("max-function-calls") {
		cfg.MaxFunctionCalls = f.maxFunctionCalls
	}
	return cfg, nil
}

// loadFunctions reads a single declaration file, or every file a glob matches.
func loadFunctions(path string) (*registry.Registry, error) {
	if strings.ContainsAny(path, "*?[{") {
		return registry.LoadGlob(path)
	}
	return registry.Load(path)
}

func runChat(ctx context.Context, cfg *config.Config) error {
	reg, err := loadFunctions(cfg.FunctionsPath)
	if err != nil {
		return err
	}

	lr, err := newLineReader(cfg.HistoryFile)
	if err != nil {
		return err
	}
	defer lr.Close()

	ex, err := sandbox.New(sandbox.Config{
		Interpreter: cfg.Interpreter,
		Linter:      cfg.Linter,
		Formatter:   cfg.Formatter,
		Timeout:     cfg.ExecTimeout(),
	})
	if err != nil {
		return err
	}
	var confirm middleware.ConfirmationFunc
	if cfg.ConfirmRestricted {
		confirm = confirmer(lr)
	}
	if _, err := tools.Bind(reg, tools.Deps{
		Sandbox:        ex,
		Searcher:       websearch.NewDuckDuckGo(),
		MaxExecTimeout: cfg.MaxExecTimeout(),
		Wrap:           middleware.Chain(cfg.ToolOutputMaxRunes, confirm),
	}); err != nil {
		return err
	}

	client, err := provider.New(cfg.Provider, provider.Settings{
		APIKey:     cfg.APIKey(),
		Model:      cfg.Model,
		BaseURL:    cfg.BaseURL,
		MaxRetries: cfg.MaxRetries,
	})
	if err != nil {
		return err
	}

	sinks, closeSinks, err := openAudit(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSinks()

	loop := &agent.Loop{
		Client:            client,
		Functions:         reg,
		Audit:             sinks,
		MaxFunctionCalls:  cfg.MaxFunctionCalls,
		ContextTokenLimit: cfg.ContextTokenLimit,
	}
	conv := loop.NewConversation(ctx, cfg.SystemPrompt)

	return chatLoop(ctx, os.Stdout, lr, loop, conv)
}

// chatLoop reads utterances until quit or EOF. A failed turn is reported and the loop
// goes on, unless ctx is done: an interrupt ends the session.
func chatLoop(ctx context.Context, w io.Writer, lr lineReader, loop *agent.Loop, conv *agent.Conversation) error {
	fmt.Fprintln(w, "You are now chatting with the AI. Type 'quit' to exit.")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		input, err := lr.ReadLine("User: ")
		if errors.Is(err, errInterrupted) {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if strings.EqualFold(input, "quit") {
			return nil
		}
		if input == "" {
			continue
		}
		reply, err := turn(ctx, loop, conv, input)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			errorColor.Fprintf(w, "An error occurred: %v\n", err)
			continue
		}
		aiColor.Fprint(w, "AI: ")
		fmt.Fprintln(w, reply.Content)
	}
}

// turn runs one MessageStep, turning a panic in a function or client into an error.
func turn(ctx context.Context, loop *agent.Loop, conv *agent.Conversation, input string) (reply core.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[AGENT] Recovered panic in turn: %v", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return loop.MessageStep(ctx, conv, input)
}

// openAudit opens the audit file and, when configured, the SQLite store.
func openAudit(ctx context.Context, cfg *config.Config) (core.AuditLog, func(), error) {
	var sinks audit.Multi
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	if cfg.AuditLogPath != "" {
		fl, err := audit.OpenFile(cfg.AuditLogPath)
		if err != nil {
			return nil, closeAll, err
		}
		sinks = append(sinks, fl)
		closers = append(closers, func() { fl.Close() })
	}
	if cfg.DBPath != "" {
		db, err := store.Open(ctx, cfg.DBPath)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("opening audit db: %w", err)
		}
		sinks = append(sinks, db)
		closers = append(closers, func() { db.Close() })
	}
	return sinks, closeAll, nil
}

func printFunctions(w io.Writer, cfg *config.Config) error {
	reg, err := loadFunctions(cfg.FunctionsPath)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(reg.Describe(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(b))
	infoColor.Fprintf(w, "%d functions, ~%d tokens\n", len(reg.Names()), reg.EstimateTokenLength(registry.ApproxTokenizer))
	return nil
}

func printSessions(ctx context.Context, w io.Writer, cfg *config.Config) error {
	if cfg.DBPath == "" {
		return errors.New("no audit database configured (set --db or FUNCCHAT_DB_PATH)")
	}
	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	sessions, err := db.Sessions(ctx, 50)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		fmt.Fprintf(w, "%s  %s  %d messages\n", s.ID, s.CreatedAt.Format("2006-01-02 15:04:05"), s.MessageCount)
	}
	return nil
}

func doctor(w io.Writer, cfg *config.Config) error {
	checks := health.NewRegistry()
	checks.Register("interpreter", health.Command("interpreter", cfg.Interpreter, true))
	checks.Register("linter", health.Command("linter", cfg.Linter, false))
	checks.Register("formatter", health.Command("formatter", cfg.Formatter, false))
	checks.Register("api_key", health.Secret(cfg.Provider+" api key", cfg.APIKey()))
	checks.Register("functions", health.CheckerFunc(func() health.ComponentHealth {
		reg, err := loadFunctions(cfg.FunctionsPath)
		if err != nil {
			return health.ComponentHealth{Name: "functions", Status: health.StatusError, Message: err.Error()}
		}
		return health.ComponentHealth{Name: "functions", Status: health.StatusOK, Message: strings.Join(reg.Names(), ", ")}
	}))

	report := checks.Check()
	for _, c := range report.Components {
		line := fmt.Sprintf("%-20s %-8s %s\n", c.Name, c.Status, c.Message)
		switch c.Status {
		case health.StatusOK:
			fmt.Fprint(w, line)
		case health.StatusDegraded:
			color.New(color.FgYellow).Fprint(w, line)
		default:
			errorColor.Fprint(w, line)
		}
	}
	if report.Status() == health.StatusError {
		return errors.New("some required components are unavailable")
	}
	return nil
}
