package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loamdb/loam/internal/lock"
	"github.com/loamdb/loam/migrate"
)

var migrateDryRun bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations",
	Long: `Apply, in order, every migration artifact the database has not
recorded yet. Each artifact runs in its own transaction; on failure the
failed artifact rolls back, earlier ones stay applied, and the command
exits non-zero naming the artifact.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Migrations == "" {
			return fmt.Errorf("no migrations directory configured; set `migrations:` in %s", configPath())
		}

		artifacts, err := migrate.DirSource{Dir: cfg.Migrations}.List()
		if err != nil {
			return err
		}

		db, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if migrateDryRun {
			records, err := migrate.AppliedRecords(context.Background(), db)
			if err != nil {
				return err
			}
			applied := make(map[string]bool, len(records))
			for _, rec := range records {
				applied[rec.Identifier] = true
			}
			pending := 0
			for _, a := range artifacts {
				if !applied[a.Identifier] {
					fmt.Printf("  %s %s\n", a.Identifier, a.Description)
					pending++
				}
			}
			if pending == 0 {
				fmt.Println("Database is up to date.")
			} else {
				fmt.Printf("%d migration(s) would be applied.\n", pending)
			}
			return nil
		}

		lockPath := lock.PathFor(cfg.Database)
		if err := lock.Acquire(lockPath); err != nil {
			return err
		}
		defer lock.Release(lockPath)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runner := &migrate.Runner{DB: db, Logger: logger}
		n, err := runner.Run(ctx, artifacts)
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Println("Database is up to date.")
		} else {
			fmt.Printf("Applied %d migration(s).\n", n)
		}
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "list pending migrations without applying them")
	rootCmd.AddCommand(migrateCmd)
}
