package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/datachat/datachat/internal/inference"
	"github.com/datachat/datachat/internal/schema"
)

var (
	inferOutput string
	inferJSON   bool
)

var inferCmd = &cobra.Command{
	Use:   "infer <file>",
	Short: "Infer the schema and sample of a file",
	Long: `Infer the schema of a CSV, JSON, SQLite (.db, .sqlite) or SQL dump (.sql)
file and sample up to 1000 rows per table.

Prints a summary by default. --json prints the {schema, data} document the
API returns; -o writes the schema as YAML.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		res, err := inferFile(cmd.Context(), path)
		if err != nil {
			return err
		}

		if inferJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		fmt.Fprintln(cmd.OutOrStdout(), res.Summary())
		for _, t := range res.AllTables() {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d columns, %d sampled rows\n", t.Name, len(t.Columns), len(res.SampleFor(t.Name)))
		}

		if inferOutput != "" {
			if err := res.Document(filepath.Base(path)).WriteYAML(inferOutput); err != nil {
				return fmt.Errorf("writing schema: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema written to %s\n", inferOutput)
		}
		return nil
	},
}

// inferFile runs inference on a local file. SQLite files are opened in place.
func inferFile(ctx context.Context, path string) (*schema.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	name := filepath.Base(path)
	format, err := inference.DetectFormat(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var opts []inference.Option
	if format == inference.FormatRelational {
		opts = append(opts, inference.WithDatabasePath(path))
	}
	return inference.Infer(ctx, data, name, opts...)
}

func init() {
	inferCmd.Flags().StringVarP(&inferOutput, "output", "o", "", "write the schema as YAML to this file")
	inferCmd.Flags().BoolVar(&inferJSON, "json", false, "print the {schema, data} JSON document")
	rootCmd.AddCommand(inferCmd)
}
