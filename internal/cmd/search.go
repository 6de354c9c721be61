package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search KEYWORDS...",
	Short: "Search Indian listings by name or ticker",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cfg, nil, true)
		if err != nil {
			return err
		}
		defer rt.Close()

		matches, err := rt.enricher.SearchSymbols(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		if jsonOutput() {
			return printJSON(cmd.OutOrStdout(), matches)
		}
		renderMatches(cmd.OutOrStdout(), matches)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
}
