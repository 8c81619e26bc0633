package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loamdb/loam/internal/catalog"
)

var inspectOutput string

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Introspect the live database schema",
	Long: `Read the database's actual schema and print it as YAML. With
--out, write it to a file instead, which is how an existing database
becomes a declared schema for a new loam project.`,
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

		snap, err := catalog.Read(context.Background(), db)
		if err != nil {
			return fmt.Errorf("reading database schema: %w", err)
		}

		if inspectOutput != "" {
			fmt.Println(snap.Summary())
			if err := snap.WriteYAML(inspectOutput); err != nil {
				return fmt.Errorf("writing schema: %w", err)
			}
			fmt.Printf("\nSchema written to %s\n", inspectOutput)
			return nil
		}

		data, err := snap.ToYAML()
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectOutput, "out", "o", "", "write snapshot YAML to a file instead of stdout")
	rootCmd.AddCommand(inspectCmd)
}
