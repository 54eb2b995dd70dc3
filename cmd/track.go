package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/searchlens/visibility-cli/internal/model"
)

var (
	trackQuery    string
	trackBrands   []string
	trackCountry  string
	trackLanguage string
	trackDomain   string
	trackAIOnly   bool
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Collect one visibility snapshot for a query",
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := "track"
		if trackAIOnly {
			mode = "track-ai"
		}

		env, err := initCollectEnv(cmd.Context(), mode)
		if err != nil {
			return err
		}
		defer env.Close()

		req := model.TrackingRequest{
			Query:        trackQuery,
			BrandDomains: trackBrands,
			Country:      trackCountry,
			Language:     trackLanguage,
			SearchDomain: trackDomain,
		}
		if err := req.Normalize(); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(),
			time.Duration(cfg.Collector.TimeoutSecs)*time.Second)
		defer cancel()

		var result *model.CollectionResult
		if trackAIOnly {
			result, err = env.TextOnly.Collect(ctx, req)
		} else {
			result, err = env.Collector.Collect(ctx, req)
		}
		if err != nil {
			zap.L().Error("collection failed",
				zap.String("query", req.Query),
				zap.Error(err),
			)
			if result != nil {
				// The failure result still carries status and timing.
				printJSON(result)
			}
			return err
		}

		zap.L().Info("collection complete",
			zap.String("query", req.Query),
			zap.Int64("snapshot_id", result.SnapshotID),
			zap.Int64("execution_time_ms", result.ExecutionTimeMS),
		)
		return printJSON(result)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	trackCmd.Flags().StringVarP(&trackQuery, "query", "q", "", "search query to track (required)")
	trackCmd.Flags().StringSliceVarP(&trackBrands, "brand", "b", nil, "brand domains to match (repeatable)")
	trackCmd.Flags().StringVar(&trackCountry, "country", "us", "search country code")
	trackCmd.Flags().StringVar(&trackLanguage, "language", "en", "search language code")
	trackCmd.Flags().StringVar(&trackDomain, "search-domain", "google.com", "search engine domain")
	trackCmd.Flags().BoolVar(&trackAIOnly, "ai-only", false, "skip search, analyze generated text only")
	trackCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(trackCmd)
}
