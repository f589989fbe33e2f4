package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lkml/mergetrace/internal/config"
	"lkml/mergetrace/internal/db"
	"lkml/mergetrace/internal/logging"
)

var (
	dbPath     string
	configPath string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:           "mergetrace",
	Short:         "Trace LKML patch discussions to their merge outcome",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.Logging.Level = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			loaded.Logging.Format = logFormat
		}
		l, err := logging.New(loaded.Logging.Level, loaded.Logging.Format)
		if err != nil {
			return err
		}
		cfg, logger = loaded, l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the archive SQLite database")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "Log format: console or json")
}

// DiscoverDB finds the database path using priority: env > flag > config
func DiscoverDB() (string, error) {
	if envPath := os.Getenv(config.EnvPrefix + "DB"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	if dbPath != "" {
		if _, err := os.Stat(dbPath); err == nil {
			return dbPath, nil
		}
		return "", fmt.Errorf("database not found at --db path: %s", dbPath)
	}

	if cfg != nil && cfg.DB.Path != "" {
		if _, err := os.Stat(cfg.DB.Path); err == nil {
			return cfg.DB.Path, nil
		}
		return "", fmt.Errorf("database not found at db.path: %s", cfg.DB.Path)
	}

	return "", fmt.Errorf("no database configured (set %sDB, use --db, or set db.path in the config file)", config.EnvPrefix)
}

// OpenDatabase discovers and opens the database
func OpenDatabase() (*db.DB, error) {
	path, err := DiscoverDB()
	if err != nil {
		return nil, err
	}
	logger.Debug("opening database", zap.String("path", path))
	return db.OpenDB(path)
}
