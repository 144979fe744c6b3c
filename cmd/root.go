package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/satprep/internal/app"
	"github.com/abhisek/satprep/internal/config"
	"github.com/abhisek/satprep/internal/store"
)

// cfg is loaded once per invocation by loadConfig.
var cfg = config.DefaultConfig()

var rootCmd = &cobra.Command{
	Use:   "satprep",
	Short: "SAT and PSAT practice in the terminal",
	Long: `satprep serves questions from the public SAT question bank in timed
practice sessions, keeps the session you are in across restarts and
records how every answer went.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd, app.Options{})
	},
}

// Execute runs the root command until ctx is cancelled.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides SATPREP_DB env var)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("env-file", "", "Load environment variables from this file (default ./.env)")
	rootCmd.PersistentFlags().String("bank-file", "", "Serve questions from a JSON file instead of the online question bank")

	rootCmd.AddCommand(practiceCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the env file and environment, then applies flag
// overrides.
func loadConfig(cmd *cobra.Command, _ []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadEnvFile(envFile); err != nil {
		return err
	}

	c := config.ConfigFromEnv()
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		c.Log.Level = lvl
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg = c
	return nil
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then SATPREP_DB env var, then the default XDG path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	if cfg.DBPath != "" {
		return cfg.DBPath, store.EnsureDir(cfg.DBPath)
	}
	return store.DefaultDBPath()
}

// openStore opens the database selected for cmd.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return st, nil
}

// newLogger builds the configured logger. While the TUI owns the terminal
// logs only go to SATPREP_LOG_FILE.
func newLogger(tui bool) (*slog.Logger, func() error, error) {
	var fallback io.Writer = os.Stderr
	if tui {
		fallback = io.Discard
	}
	w, closeFn, err := config.OpenLogOutput(cfg.Log, fallback)
	if err != nil {
		return nil, nil, err
	}
	logger, err := config.NewLogger(cfg.Log, w)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return logger, closeFn, nil
}
