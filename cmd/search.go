package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leadflow-pro/leadflow/internal/discovery"
)

var (
	searchMinRating float64
	searchJSON      bool
)

var searchCmd = &cobra.Command{
	Use:   "search <category> <location>",
	Short: "Search for business leads",
	Long:  "Searches for businesses in a category and location. Repeat searches are served from the cache, shuffled.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		leads, fromCache, err := env.Searcher.Search(ctx, args[0], args[1],
			discovery.SearchOptions{MinRating: searchMinRating})
		if err != nil {
			return err
		}

		if searchJSON {
			return json.NewEncoder(os.Stdout).Encode(map[string]any{
				"leads":      leads,
				"lead_count": len(leads),
				"from_cache": fromCache,
			})
		}

		source := "provider"
		if fromCache {
			source = "cache"
		}
		zap.L().Info("search complete",
			zap.Int("leads", len(leads)), zap.String("source", source))

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "BUSINESS\tCATEGORY\tCITY\tRATING\tREVIEWS\tWEBSITE")
		for _, lead := range leads {
			rating, reviews := "-", "-"
			if lead.GoogleRating != nil {
				rating = fmt.Sprintf("%.1f", *lead.GoogleRating)
			}
			if lead.ReviewCount != nil {
				reviews = fmt.Sprintf("%d", *lead.ReviewCount)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				lead.BusinessName, lead.Category, lead.City, rating, reviews, lead.Website)
		}
		return w.Flush()
	},
}

func init() {
	searchCmd.Flags().Float64Var(&searchMinRating, "min-rating", 0, "only include leads rated at least this")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "emit JSON instead of a table")
	rootCmd.AddCommand(searchCmd)
}
