// Package cli implements the loam command line interface.
package cli

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/loamdb/loam"
	"github.com/loamdb/loam/internal/config"
	"github.com/loamdb/loam/internal/logging"
	"github.com/loamdb/loam/schema"
)

var (
	cfgFile  string
	logLevel string
	version  = "dev"
	commit   = "none"
	date     = "unknown"
)

// logger is rebuilt from flags and config before every command runs.
var logger = slog.Default()

var rootCmd = &cobra.Command{
	Use:   "loam",
	Short: "loam — SQLite schema migrations from a declared schema",
	Long: `Loam keeps a SQLite database in step with the schema a project
declares: inspect what a database actually has, diff it against the
declared schema, and generate and run the migrations that close the gap.

Running without a subcommand in a fresh directory launches project setup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !config.Exists(configPath()) {
			fmt.Println("No project config found. Starting setup...")
			return runWizard()
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Project: %s\n", configPath())
		fmt.Printf("  database:   %s\n", cfg.Database)
		fmt.Printf("  schema:     %s\n", cfg.Schema)
		if cfg.Migrations != "" {
			fmt.Printf("  migrations: %s\n", cfg.Migrations)
		} else {
			fmt.Println("  mode:       auto-apply")
		}
		if target, err := schema.LoadYAML(cfg.Schema); err == nil {
			fmt.Printf("  declared:   %s\n", target.Summary())
		}
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  loam status    — migration history and pending work")
		fmt.Println("  loam diff      — drift between database and declared schema")
		fmt.Println("  loam serve     — dashboard in the browser")
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Set here rather than in the composite literal: the closure refers
	// to rootCmd, which would otherwise be an initialization cycle.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level := logLevel
		file := ""
		if config.Exists(configPath()) {
			if cfg, err := config.Load(configPath()); err == nil {
				if !rootCmd.PersistentFlags().Changed("log-level") && cfg.Logging.Level != "" {
					level = cfg.Logging.Level
				}
				file = cfg.Logging.File
			}
		}
		l, err := logging.Setup(level, file)
		if err != nil {
			return err
		}
		logger = l
		return nil
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: loam.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultPath
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := loam.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}
