package cli

import (
	"github.com/spf13/cobra"

	"mover-report/internal/app"
)

var reportKind string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a single movement report",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ReportOptions{
			Kind: reportKind,
		}
		return getApp().Report(cmd.Context(), opts)
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportKind, "kind", "afterhours", "Report kind: afterhours, session, or intraday")
}
