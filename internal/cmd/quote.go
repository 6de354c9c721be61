package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Rajchodisetti/stock-insights/internal/adapters"
)

var quoteCmd = &cobra.Command{
	Use:   "quote SYMBOL",
	Short: "Fetch the latest quote for a symbol (one provider call)",
	Example: `  stockcore quote RELIANCE
  stockcore quote BSE:500325`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cfg, nil, true)
		if err != nil {
			return err
		}
		defer rt.Close()

		payload, err := rt.client.Call(cmd.Context(), adapters.FnGlobalQuote, args[0], nil)
		if err != nil {
			return err
		}
		if jsonOutput() {
			return printJSON(cmd.OutOrStdout(), payload)
		}
		q, err := adapters.ParseGlobalQuote(payload)
		if err != nil {
			return err
		}
		renderQuote(cmd.OutOrStdout(), q)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(quoteCmd)
}
