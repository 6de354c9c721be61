package cmd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

var fetchParams []string

var fetchCmd = &cobra.Command{
	Use:   "fetch FUNCTION [SYMBOL]",
	Short: "Run any provider function through the budgeted client and print the payload",
	Example: `  stockcore fetch OVERVIEW INFY
  stockcore fetch SMA TCS --param interval=daily --param time_period=20 --param series_type=close
  stockcore fetch SYMBOL_SEARCH --param keywords=tata`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseParams(fetchParams)
		if err != nil {
			return err
		}
		symbol := ""
		if len(args) == 2 {
			symbol = args[1]
		}

		rt, err := newRuntime(cfg, nil, true)
		if err != nil {
			return err
		}
		defer rt.Close()

		payload, err := rt.client.Call(cmd.Context(), args[0], symbol, params)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), payload)
	},
}

// parseParams turns repeated key=value flags into query values.
func parseParams(raw []string) (url.Values, error) {
	params := url.Values{}
	for _, kv := range raw {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --param %q, want key=value", kv)
		}
		if strings.EqualFold(k, "apikey") {
			return nil, fmt.Errorf("apikey cannot be passed as a parameter")
		}
		params.Add(k, strings.TrimSpace(v))
	}
	return params, nil
}

func init() {
	fetchCmd.Flags().StringArrayVarP(&fetchParams, "param", "p", nil, "extra query parameter key=value (repeatable)")
	rootCmd.AddCommand(fetchCmd)
}
