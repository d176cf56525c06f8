package main

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leadflow-pro/leadflow/internal/enrich"
	"github.com/leadflow-pro/leadflow/internal/model"
)

var (
	enrichName    string
	enrichRating  float64
	enrichReviews int
)

var enrichCmd = &cobra.Command{
	Use:   "enrich <website>",
	Short: "Enrich and score a business website",
	Long:  "Runs tech detection, domain lookup, and scoring for a website. Completed enrichments are cached; repeat runs serve the cached result.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		lead := model.Lead{
			Website:      args[0],
			BusinessName: enrichName,
		}
		if cmd.Flags().Changed("rating") {
			lead.GoogleRating = &enrichRating
		}
		if cmd.Flags().Changed("reviews") {
			lead.ReviewCount = &enrichReviews
		}

		scored, err := env.Enricher.Enrich(ctx, lead)
		if errors.Is(err, enrich.ErrInProgress) {
			zap.L().Info("enrichment already in progress", zap.String("website", args[0]))
			return nil
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(scored)
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichName, "name", "", "business name for scoring and pitch")
	enrichCmd.Flags().Float64Var(&enrichRating, "rating", 0, "Google rating for reputation scoring")
	enrichCmd.Flags().IntVar(&enrichReviews, "reviews", 0, "Google review count for reputation scoring")
	rootCmd.AddCommand(enrichCmd)
}
