package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/cbt/internal/engine"
	"github.com/pavelanni/cbt/internal/handler"
	appI18n "github.com/pavelanni/cbt/internal/i18n"
	"github.com/pavelanni/cbt/internal/llm"
	"github.com/pavelanni/cbt/internal/llm/prompts"
	"github.com/pavelanni/cbt/internal/model"
	"github.com/pavelanni/cbt/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cbt",
		Short: "Computer-based testing server",
	}

	serve := serveCmd()
	root.AddCommand(serve, sweepCmd(), importCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `cbt --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// engineFlags registers the flags every command that builds an engine needs.
func engineFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db", "cbt.db", "SQLite database path")
	f.String("timezone", "Local", "Time zone of schedule dates and times (IANA name)")
	f.Bool("persist-question-order", true, "Fix question and option order per attempt")
	f.Duration("race-window", 2*time.Second, "Log answer saves closer together than this")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP exam server",
		RunE:  runServe,
	}
	engineFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringP("lang", "l", "en", "Default message language (en, fr)")
	f.String("sweep-schedule", "@every 1m", "Cron spec of the schedule and timer sweep")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("admin-password", "", "Initial admin password (or set CBT_ADMIN_PASSWORD)")
	f.String("llm-url", "", "OpenAI-compatible API base URL (empty disables the grading assistant)")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("prompt-variant", string(prompts.PromptStandard), "Grading prompt variant (strict, standard, lenient)")
	return cmd
}

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one schedule and timer sweep and exit",
		RunE:  runSweep,
	}
	engineFlags(cmd)
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import users, classrooms, questions, exams and schedules from JSON fixtures",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}
	engineFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export schedule results as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "cbt.db", "SQLite database path")
	f.Int64("schedule-id", 0, "Schedule to export (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	_ = cmd.MarkFlagRequired("schedule-id")

	return cmd
}

func setupLogging(v *viper.Viper) {
	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("CBT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("cbt")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/cbt")
	v.AddConfigPath("/etc/cbt")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// openEngine opens the database and builds the engine from the bound flags.
// The caller closes the store.
func openEngine(v *viper.Viper) (*store.Store, *engine.Engine, error) {
	loc, err := time.LoadLocation(v.GetString("timezone"))
	if err != nil {
		return nil, nil, fmt.Errorf("load timezone: %w", err)
	}
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	e := engine.New(db, engine.Config{
		Location:             loc,
		PersistQuestionOrder: v.GetBool("persist-question-order"),
		RaceWindow:           v.GetDuration("race-window"),
	})
	return db, e, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, e, err := openEngine(v)
	if err != nil {
		return err
	}
	defer db.Close()

	// Seed default admin user if no users exist.
	if err := seedAdmin(ctx, db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if n, err := db.QuestionCount(ctx); err != nil {
		return fmt.Errorf("count questions: %w", err)
	} else if n == 0 {
		slog.Warn("question bank is empty; load questions with `cbt import`")
	}
	if n, err := db.CleanupExpiredSessions(ctx); err != nil {
		slog.Warn("failed to clean up sessions", "error", err)
	} else if n > 0 {
		slog.Info("removed expired sessions", "count", n)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	llmClient, err := newLLMClient(ctx, v)
	if err != nil {
		return err
	}

	h := handler.New(e, db, llmClient, model.ServerConfig{
		SecureCookies: v.GetBool("secure-cookies"),
		DefaultLang:   lang,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware())
	h.Routes(r)

	sweeper := engine.NewSweeper(e, v.GetString("sweep-schedule"))
	if err := sweeper.Start(ctx); err != nil {
		return err
	}
	defer sweeper.Stop()

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	slog.Info("starting server",
		"addr", addr,
		"db", v.GetString("db"),
		"lang", lang,
		"timezone", e.Config().Location.String(),
		"persist_question_order", e.Config().PersistQuestionOrder,
		"sweep_schedule", v.GetString("sweep-schedule"),
		"assistant", llmClient != nil,
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newLLMClient creates the grading assistant client, or nil when no
// endpoint is configured. An unreachable endpoint is logged, not fatal.
func newLLMClient(ctx context.Context, v *viper.Viper) (*llm.Client, error) {
	url := v.GetString("llm-url")
	if url == "" {
		slog.Info("grading assistant disabled")
		return nil, nil
	}

	promptVariant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
	if !prompts.IsValidVariant(promptVariant) {
		slog.Warn("invalid prompt-variant, using standard", "variant", promptVariant)
		promptVariant = string(prompts.PromptStandard)
	}
	client, err := llm.New(url, v.GetString("llm-key"), v.GetString("llm-model"), promptVariant)
	if err != nil {
		return nil, fmt.Errorf("create LLM client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		slog.Warn("LLM health check failed", "url", url, "error", err)
	} else {
		slog.Info("LLM endpoint OK", "url", url, "model", v.GetString("llm-model"))
	}
	return client, nil
}

func runSweep(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	db, e, err := openEngine(v)
	if err != nil {
		return err
	}
	defer db.Close()

	rep, err := e.Sweep(cmd.Context())
	slog.Info("sweep finished",
		"schedules_started", rep.SchedulesStarted,
		"schedules_completed", rep.SchedulesCompleted,
		"attempts_expired", rep.AttemptsExpired,
	)
	return err
}

func runImport(cmd *cobra.Command, args []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	db, e, err := openEngine(v)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		storedHash, err := db.GetImportedFileHash(ctx, path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}
		if storedHash == hash {
			slog.Info("fixture unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" {
			slog.Warn("fixture changed since last import, skipping to avoid duplicating records",
				"path", path)
			continue
		}

		var fx model.Fixture
		if err := json.Unmarshal(data, &fx); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		sum, err := importFixture(ctx, db, e, fx)
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}

		if err := db.SetImportedFileHash(ctx, path, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported fixture", "path", path,
			"users", sum.Users, "classrooms", sum.Classrooms, "questions", sum.Questions,
			"exams", sum.Exams, "schedules", sum.Schedules)
	}
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportSchedule(cmd.Context(), v.GetInt64("schedule-id"))
	if err != nil {
		return fmt.Errorf("export schedule: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func seedAdmin(ctx context.Context, db *store.Store, password string) error {
	count, err := db.UserCount(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return errors.New("admin password is required: set --admin-password flag or CBT_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser(ctx, model.User{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin")
	return nil
}
