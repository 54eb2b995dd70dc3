package main

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	usageProvider string
	usageDays     int
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show provider usage stats and cost analysis",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initReadEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		out := map[string]any{}

		if usageProvider != "" {
			stats, err := st.ProviderStats(cmd.Context(), usageProvider, usageDays)
			if err != nil {
				return err
			}
			out["provider_stats"] = stats
		}

		analysis, err := st.CostAnalysis(cmd.Context(), usageDays)
		if err != nil {
			return err
		}
		out["cost_analysis"] = analysis

		return printJSON(out)
	},
}

func parseSnapshotID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid snapshot id %q", raw)
	}
	return id, nil
}

func init() {
	usageCmd.Flags().StringVarP(&usageProvider, "provider", "p", "", "provider to show call stats for")
	usageCmd.Flags().IntVar(&usageDays, "days", 30, "analysis window in days")
	rootCmd.AddCommand(usageCmd)
}
