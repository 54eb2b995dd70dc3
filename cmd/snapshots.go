package main

import (
	"github.com/spf13/cobra"

	"github.com/searchlens/visibility-cli/internal/store"
)

var (
	snapshotsQuery  string
	snapshotsDays   int
	snapshotsLimit  int
	snapshotsOffset int
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List stored snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initReadEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		snaps, err := st.ListSnapshots(cmd.Context(), store.SnapshotFilter{
			Query:  snapshotsQuery,
			Days:   snapshotsDays,
			Limit:  snapshotsLimit,
			Offset: snapshotsOffset,
		})
		if err != nil {
			return err
		}

		return printJSON(snaps)
	},
}

var snapshotGetCmd = &cobra.Command{
	Use:   "snapshot [id]",
	Short: "Show one snapshot with citations, positions, and execution log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseSnapshotID(args[0])
		if err != nil {
			return err
		}

		st, err := initReadEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		record, err := st.GetSnapshot(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printJSON(record)
	},
}

func init() {
	snapshotsCmd.Flags().StringVarP(&snapshotsQuery, "query", "q", "", "filter by exact query")
	snapshotsCmd.Flags().IntVar(&snapshotsDays, "days", 0, "only snapshots from the last N days")
	snapshotsCmd.Flags().IntVar(&snapshotsLimit, "limit", 20, "max snapshots to return")
	snapshotsCmd.Flags().IntVar(&snapshotsOffset, "offset", 0, "pagination offset")
	rootCmd.AddCommand(snapshotsCmd)
	rootCmd.AddCommand(snapshotGetCmd)
}
