package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loamdb/loam/migrate"
)

var newCmd = &cobra.Command{
	Use:   "new <description>",
	Short: "Create an empty migration for hand-written SQL",
	Long: `Write a skeleton migration artifact with no operations and a
placeholder statements list. Fill in the statements by hand for changes
the differ cannot express, such as data backfills; an unedited skeleton
refuses to apply.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Migrations == "" {
			return fmt.Errorf("no migrations directory configured; set `migrations:` in %s", configPath())
		}

		description := strings.Join(args, " ")
		art, err := migrate.Writer{Dir: cfg.Migrations}.WriteSkeleton(description)
		if err != nil {
			return err
		}

		fmt.Printf("Wrote %s\n", filepath.Join(cfg.Migrations, art.Filename()))
		fmt.Println("Edit the statements list, then run `loam migrate`.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(newCmd)
}
