package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"
	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"deepsearch/internal/answer"
	"deepsearch/internal/channel"
	"deepsearch/internal/config"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
	envFile    string
)

func main() {
	logger = newLogger("info", "console")

	root := &cobra.Command{
		Use:   "deepsearch",
		Short: "DeepSearch: multi-provider AI answer engine",
		Long:  "DeepSearch fans a question out to several AI providers and a web search backend and merges the results into one markdown answer.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv(envFile)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.deepsearch/config.json)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(askCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(configCmd())
	root.AddCommand(backupCmd())
	root.AddCommand(restoreCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the process logger: zerolog output behind the slog API.
func newLogger(level, format string) *slog.Logger {
	var zl zerolog.Logger
	if format == "json" {
		zl = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp}
		zl = zerolog.New(output).With().Timestamp().Logger()
	}
	return slog.New(zeroslog.NewHandler(zl, &zeroslog.HandlerOptions{Level: parseLevel(level)}))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// loadConfig reads the config file, falling back to defaults when it does
// not exist, then applies environment overrides and reconfigures logging.
func loadConfig() (*config.Config, error) {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		if _, statErr := os.Stat(config.ExpandPath(cfgPath)); statErr == nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		logger.Debug("config not found, using defaults", "path", cfgPath)
		cfg = config.Defaults()
		cfg.Storage.DBPath = config.ExpandPath(cfg.Storage.DBPath)
	}
	if err := config.ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	logger = newLogger(cfg.General.LogLevel, cfg.General.LogFormat)
	return cfg, nil
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "db", config.ExpandPath(cfg.Storage.DBPath))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  "Serves /search, /search/stream, /health, /agent and /conversations. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, p := range a.registry.All() {
		logger.Info("provider", "name", p.Name(), "configured", p.Configured())
	}
	logger.Info("search backend", "name", a.searcher.BackendName())

	web := channel.NewWeb(channel.WebConfig{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		Logger:  logger,
		Config:  cfg,
		Answers: a.answers,
		Agent:   a.agent,
		Store:   a.conversations(),
		Emitter: a.emitter,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- web.Start(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down...")
	const shutdownTimeout = 10 * time.Second
	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		logger.Info("shutdown complete")
		return nil
	case <-time.After(shutdownTimeout):
		logger.Warn("shutdown timed out, forcing exit")
		web.Stop()
		return fmt.Errorf("shutdown timed out")
	}
}

func askCmd() *cobra.Command {
	var (
		raw            bool
		save           bool
		conversationID string
	)
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question in the terminal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			if strings.TrimSpace(query) == "" {
				return fmt.Errorf("query is required")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ans, cached := a.answers.Answer(ctx, query)
			if save && conversationID == "" {
				id, err := uuid.NewV7()
				if err != nil {
					return err
				}
				conversationID = id.String()
			}
			a.answers.Record(ctx, conversationID, query, ans)

			out := ans.Content
			if !raw {
				r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
				if err == nil {
					if rendered, err := r.Render(ans.Content); err == nil {
						out = rendered
					}
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)

			if !raw {
				fmt.Fprintln(cmd.OutOrStdout(), "Related questions:")
				for _, q := range answer.RelatedQuestions(query) {
					fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", q)
				}
			}
			logger.Debug("answered",
				"cached", cached,
				"fallback", ans.Metadata.FallbackUsed,
				"conversation", conversationID,
			)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print markdown without terminal rendering")
	cmd.Flags().BoolVar(&save, "save", false, "record the exchange in a new conversation")
	cmd.Flags().StringVar(&conversationID, "conversation", "", "append the exchange to this conversation")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. general.searchResults)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(config.Sanitize(cfg), args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. cache.ttlSeconds 600)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			paths := config.ListPaths(config.Sanitize(cfg))
			data, _ := json.MarshalIndent(paths, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}
