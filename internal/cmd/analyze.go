package cmd

import (
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze SYMBOL",
	Short: "Latest SMA(20) and RSI(14) on daily closes (two provider calls)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cfg, nil, true)
		if err != nil {
			return err
		}
		defer rt.Close()

		ta, err := rt.enricher.TechnicalAnalysis(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput() {
			return printJSON(cmd.OutOrStdout(), ta)
		}
		renderAnalysis(cmd.OutOrStdout(), ta)
		return nil
	},
}

var overviewCmd = &cobra.Command{
	Use:   "overview SYMBOL",
	Short: "Quote, company overview and daily series, stopping early when throttled",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cfg, nil, true)
		if err != nil {
			return err
		}
		defer rt.Close()

		data, err := rt.enricher.StockData(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput() {
			return printJSON(cmd.OutOrStdout(), data)
		}
		renderStockData(cmd.OutOrStdout(), data)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(overviewCmd)
}
