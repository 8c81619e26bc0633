package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loamdb/loam/internal/catalog"
	"github.com/loamdb/loam/internal/ddl"
	"github.com/loamdb/loam/schema"
)

var diffSQL bool

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show drift between the database and the declared schema",
	Long: `Introspect the database, compare it against the declared schema
file, and print the operations that would bring the database in step.
Informational only: nothing is written or applied.`,
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
			fmt.Println("Database matches the declared schema.")
			return nil
		}

		if diffSQL {
			statements, err := ddl.RenderAll(d)
			if err != nil {
				return err
			}
			for _, stmt := range statements {
				fmt.Printf("%s;\n", stmt)
			}
			return nil
		}

		for _, line := range d.Describe() {
			fmt.Println(line)
		}
		fmt.Printf("\n%d operation(s); run `loam generate` to write a migration.\n", len(d.Operations))
		return nil
	},
}

func init() {
	diffCmd.Flags().BoolVar(&diffSQL, "sql", false, "print the DDL statements instead of a summary")
	rootCmd.AddCommand(diffCmd)
}
