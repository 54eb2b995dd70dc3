package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/searchlens/visibility-cli/internal/model"
	"github.com/searchlens/visibility-cli/internal/store"
)

var (
	exportOut   string
	exportQuery string
	exportDays  int
	exportLimit int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recent snapshots to an xlsx report",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initReadEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		snaps, err := st.ListSnapshots(cmd.Context(), store.SnapshotFilter{
			Query: exportQuery,
			Days:  exportDays,
			Limit: exportLimit,
		})
		if err != nil {
			return err
		}

		if err := writeSnapshotReport(exportOut, snaps); err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("file", exportOut),
			zap.Int("snapshots", len(snaps)),
		)
		return nil
	},
}

var snapshotHeader = []string{
	"ID", "Query", "Created At", "Country", "Language", "Intent",
	"Visibility", "Intensity", "Share of Voice %", "Brand Mentioned",
	"Citations", "Brand Citations", "Organic Results", "Brand Organic",
	"AI Overview", "Answer Box", "Knowledge Graph", "Category",
}

func writeSnapshotReport(path string, snaps []model.Snapshot) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Snapshots")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range snapshotHeader {
		header.AddCell().SetString(h)
	}

	for _, s := range snaps {
		row := sheet.AddRow()
		row.AddCell().SetInt64(s.ID)
		row.AddCell().SetString(s.Query)
		row.AddCell().SetString(s.CreatedAt.Format("2006-01-02 15:04:05"))
		row.AddCell().SetString(s.Country)
		row.AddCell().SetString(s.Language)
		row.AddCell().SetString(string(s.IntentType))
		row.AddCell().SetFloat(s.VisibilityScore)
		row.AddCell().SetFloat(s.IntensityScore)
		row.AddCell().SetFloat(s.ShareOfVoicePct)
		row.AddCell().SetBool(s.BrandMentioned)
		row.AddCell().SetInt(s.TotalCitations)
		row.AddCell().SetInt(s.BrandCitations)
		row.AddCell().SetInt(s.TotalOrganicResults)
		row.AddCell().SetInt(s.BrandOrganicPositions)
		row.AddCell().SetBool(s.HasAIOverview)
		row.AddCell().SetBool(s.HasAnswerBox)
		row.AddCell().SetBool(s.HasKnowledgeGraph)
		row.AddCell().SetString(s.Category)
	}

	return eris.Wrap(f.Save(path), "export: save file")
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "snapshots.xlsx", "output file path")
	exportCmd.Flags().StringVarP(&exportQuery, "query", "q", "", "filter by exact query")
	exportCmd.Flags().IntVar(&exportDays, "days", 30, "only snapshots from the last N days")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 500, "max snapshots to export")
	rootCmd.AddCommand(exportCmd)
}
