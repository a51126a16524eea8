package cli

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulateSymbol string
	simulatePct    float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Simulate an extreme mover and trigger the alert pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		symbol := strings.ToUpper(strings.TrimSpace(simulateSymbol))
		if symbol == "" {
			return errors.New("--symbol is required")
		}
		if simulatePct == 0 {
			return errors.New("--pct must be non-zero")
		}

		return getApp().SimulateAlert(cmd.Context(), symbol, decimal.NewFromFloat(simulatePct))
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateSymbol, "symbol", "", "Ticker symbol to simulate")
	simulateCmd.Flags().Float64Var(&simulatePct, "pct", 0, "Previous-close-to-now move in percent")
}
