package cmd

import (
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted call budget without calling the provider",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cfg, nil, false)
		if err != nil {
			return err
		}
		defer rt.Close()

		snap := rt.tracker.Snapshot()
		if jsonOutput() {
			return printJSON(cmd.OutOrStdout(), snap)
		}
		renderStatus(cmd.OutOrStdout(), snap)
		return nil
	},
}

var preflightCmd = &cobra.Command{
	Use:   "preflight OPERATION [SYMBOL]",
	Short: "Check whether an operation fits the current budget",
	Long: `Compare the estimated call cost of an operation against the calls available
now. OPERATION is a provider function (GLOBAL_QUOTE, OVERVIEW, ...) or one of
stock_data, technical_analysis, trending. The answer is advisory.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cfg, nil, false)
		if err != nil {
			return err
		}
		defer rt.Close()

		symbol := ""
		if len(args) == 2 {
			symbol = args[1]
		}
		res := rt.tracker.Preflight(args[0], symbol)
		if jsonOutput() {
			return printJSON(cmd.OutOrStdout(), res)
		}
		renderPreflight(cmd.OutOrStdout(), res)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(preflightCmd)
}
