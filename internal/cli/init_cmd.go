package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loamdb/loam/internal/config"
	"github.com/loamdb/loam/internal/wizard"
	"github.com/loamdb/loam/schema"
)

var initInteractive bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Set up a loam project in the current directory",
	Long: `Write a loam.yaml config, a starter declared-schema file, and an
empty migrations directory. With --interactive, walk through the setup
form instead, which can also seed the declared schema from an existing
database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if config.Exists(configPath()) {
			return fmt.Errorf("config already exists at %s", configPath())
		}
		if initInteractive {
			return runWizard()
		}

		cfg := &config.Config{
			Version:    config.CurrentVersion,
			Database:   "loam.db",
			Schema:     "schema.yaml",
			Migrations: "migrations",
			Logging:    config.LogConfig{Level: "info"},
		}
		return writeProject(cfg, nil)
	},
}

func init() {
	initCmd.Flags().BoolVar(&initInteractive, "interactive", false, "walk through the setup form")
	rootCmd.AddCommand(initCmd)
}

func runWizard() error {
	res, err := wizard.RunInit()
	if err != nil {
		return err
	}
	if res == nil {
		fmt.Println("Setup cancelled.")
		return nil
	}
	return writeProject(res.Config, res.Snapshot)
}

func writeProject(cfg *config.Config, seeded schema.Snapshot) error {
	path := configPath()
	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("Config written to %s\n", path)

	if _, err := os.Stat(cfg.Schema); os.IsNotExist(err) {
		snap := seeded
		if snap == nil {
			snap = schema.Snapshot{}
		}
		if err := snap.WriteYAML(cfg.Schema); err != nil {
			return fmt.Errorf("writing declared schema: %w", err)
		}
		if len(snap) > 0 {
			fmt.Printf("Declared schema seeded from %s (%s)\n", cfg.Database, snap.Summary())
		} else {
			fmt.Printf("Declared schema written to %s\n", cfg.Schema)
		}
	}

	if cfg.Migrations != "" {
		if err := os.MkdirAll(cfg.Migrations, 0o755); err != nil {
			return fmt.Errorf("creating migrations directory: %w", err)
		}
	}

	fmt.Println()
	fmt.Printf("Declare tables in %s, then:\n", cfg.Schema)
	fmt.Println("  loam diff       — see what would change")
	fmt.Println("  loam generate   — write the migration that closes the gap")
	fmt.Println("  loam migrate    — apply pending migrations")
	return nil
}
