package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/loamdb/loam/internal/catalog"
	"github.com/loamdb/loam/migrate"
	"github.com/loamdb/loam/schema"
)

var (
	statusOKStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	statusPendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	statusMissingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusDimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration history and pending work",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		fmt.Printf("Database: %s\n", cfg.Database)

		if cfg.Migrations == "" {
			fmt.Println("Mode: auto-apply (no migrations directory)")
		} else {
			records, err := migrate.AppliedRecords(ctx, db)
			if err != nil {
				return err
			}
			recorded := make(map[string]migrate.Record, len(records))
			for _, rec := range records {
				recorded[rec.Identifier] = rec
			}

			artifacts, err := migrate.DirSource{Dir: cfg.Migrations}.List()
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}

			fmt.Println()
			applied, pending := 0, 0
			onDisk := make(map[string]bool, len(artifacts))
			for _, a := range artifacts {
				onDisk[a.Identifier] = true
				if rec, ok := recorded[a.Identifier]; ok {
					applied++
					ts := ""
					if !rec.AppliedAt.IsZero() {
						ts = statusDimStyle.Render(rec.AppliedAt.UTC().Format(time.RFC3339))
					}
					fmt.Printf("  %s %s  %-28s %s\n", statusOKStyle.Render("[ok]"), a.Identifier, a.Description, ts)
				} else {
					pending++
					fmt.Printf("  %s %s  %s\n", statusPendingStyle.Render("[..]"), a.Identifier, a.Description)
				}
			}
			for _, rec := range records {
				if !onDisk[rec.Identifier] {
					fmt.Printf("  %s %s  %s\n", statusMissingStyle.Render("[??]"), rec.Identifier,
						statusDimStyle.Render("applied but missing from "+cfg.Migrations))
				}
			}
			if len(artifacts) == 0 && len(records) == 0 {
				fmt.Println(statusDimStyle.Render("  no migrations yet"))
			}
			fmt.Println()
			fmt.Printf("%d applied, %d pending.\n", applied, pending)
		}

		target, err := schema.LoadYAML(cfg.Schema)
		if err != nil {
			// No declared schema file is fine; drift just cannot be shown.
			return nil
		}
		current, err := catalog.Read(ctx, db)
		if err != nil {
			return fmt.Errorf("reading database schema: %w", err)
		}
		d := schema.Compare(current, target)
		fmt.Println()
		if d.Empty() {
			fmt.Println(statusOKStyle.Render("Schema: in sync"))
		} else {
			fmt.Println(statusPendingStyle.Render(
				fmt.Sprintf("Schema drift: %d operation(s); run `loam diff`", len(d.Operations))))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
