package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/loamdb/loam/internal/catalog"
	"github.com/loamdb/loam/internal/lock"
	"github.com/loamdb/loam/migrate"
	"github.com/loamdb/loam/schema"
)

var generateMessage string

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a migration that closes the current drift",
	Long: `Diff the database against the declared schema and persist the
resulting operations as a migration artifact in the migrations
directory. Does nothing when the database is already in step.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Migrations == "" {
			return fmt.Errorf("no migrations directory configured; set `migrations:` in %s", configPath())
		}

		lockPath := lock.PathFor(cfg.Database)
		if err := lock.Acquire(lockPath); err != nil {
			return err
		}
		defer lock.Release(lockPath)

		db, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		current, err := catalog.Read(context.Background(), db)
		if err != nil {
			return fmt.Errorf("reading database schema: %w", err)
		}
		target, err := schema.LoadYAML(cfg.Schema)
		if err != nil {
			return fmt.Errorf("loading declared schema: %w", err)
		}

		d := schema.Compare(current, target)
		if d.Empty() {
			fmt.Println("No schema changes.")
			return nil
		}

		art, err := migrate.Writer{Dir: cfg.Migrations}.Write(d, generateMessage)
		if err != nil {
			return err
		}

		fmt.Printf("Wrote %s\n", filepath.Join(cfg.Migrations, art.Filename()))
		for _, line := range d.Describe() {
			fmt.Printf("  %s\n", line)
		}
		fmt.Println("\nRun `loam migrate` to apply it.")
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVarP(&generateMessage, "message", "m", "schema changes", "description for the migration")
	rootCmd.AddCommand(generateCmd)
}
