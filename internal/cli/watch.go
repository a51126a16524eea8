package cli

import (
	"github.com/spf13/cobra"

	"mover-report/internal/app"
)

var watchKind string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Generate reports on a schedule until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.WatchOptions{
			Kind: watchKind,
		}
		return getApp().Watch(cmd.Context(), opts)
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchKind, "kind", "intraday", "Report kind: afterhours, session, or intraday")
}
