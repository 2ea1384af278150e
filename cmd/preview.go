package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/datachat/datachat/internal/preview"
	"github.com/datachat/datachat/internal/schema"
)

var previewCmd = &cobra.Command{
	Use:   "preview <file>",
	Short: "Browse the inferred tables, columns and sample rows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		m := preview.New(path, func(ctx context.Context) (*schema.Result, error) {
			return inferFile(ctx, path)
		})
		if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
			return fmt.Errorf("running preview: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(previewCmd)
}
