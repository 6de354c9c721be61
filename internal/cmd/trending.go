package cmd

import (
	"github.com/spf13/cobra"
)

var (
	trendingLimit   int
	trendingExclude []string
)

var trendingCmd = &cobra.Command{
	Use:   "trending",
	Short: "List trending NSE/BSE stocks within the call budget",
	Long: `Scan the curated candidate list with GLOBAL_QUOTE calls, at most twice the
requested limit, and pad with static fallback entries when the budget runs out.
Fallback rows are marked in the Source column.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cfg, nil, true)
		if err != nil {
			return err
		}
		defer rt.Close()

		limit := trendingLimit
		if !cmd.Flags().Changed("limit") {
			limit = cfg.Trending.DefaultLimit
		}
		entries := rt.trending.TrendingExcluding(cmd.Context(), limit, trendingExclude)
		if jsonOutput() {
			return printJSON(cmd.OutOrStdout(), entries)
		}
		renderTrending(cmd.OutOrStdout(), entries)
		return nil
	},
}

func init() {
	trendingCmd.Flags().IntVarP(&trendingLimit, "limit", "n", 10, "number of entries")
	trendingCmd.Flags().StringSliceVar(&trendingExclude, "exclude", nil, "symbols to leave out (EXCHANGE:TICKER)")
	rootCmd.AddCommand(trendingCmd)
}
