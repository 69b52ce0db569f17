package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rushteam/tourkit/catalog"
	"github.com/rushteam/tourkit/pkg/logging"
)

func NewIngestCmd() *cobra.Command {
	var (
		businessesPath string
		reviewsPath    string
		toursOut       string
		reviewsOut     string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Extract tours and their reviews from raw business/review dumps",
		Long: `Read raw business and review JSON lines, keep businesses matching the
catalog policy as tours, and write the processed tour and review files used by train.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			policy, err := catalog.NewPolicy(cfg.Catalog.Policy)
			if err != nil {
				return err
			}

			businesses, err := os.Open(businessesPath)
			if err != nil {
				return fmt.Errorf("open businesses: %w", err)
			}
			defer businesses.Close()
			reviews, err := os.Open(reviewsPath)
			if err != nil {
				return fmt.Errorf("open reviews: %w", err)
			}
			defer reviews.Close()

			tw, err := os.Create(toursOut)
			if err != nil {
				return fmt.Errorf("create tours output: %w", err)
			}
			defer tw.Close()
			rw, err := os.Create(reviewsOut)
			if err != nil {
				return fmt.Errorf("create reviews output: %w", err)
			}
			defer rw.Close()

			stats, err := catalog.Ingest(cmd.Context(), policy, businesses, reviews, tw, rw)
			if err != nil {
				return err
			}
			if err := tw.Sync(); err != nil {
				return err
			}
			if err := rw.Sync(); err != nil {
				return err
			}

			logging.Info().
				Int("businesses", stats.Businesses).
				Int("tours", stats.Tours).
				Int("reviews", stats.Reviews).
				Int("kept_reviews", stats.KeptReviews).
				Msg("ingest finished")
			fmt.Fprintf(cmd.OutOrStdout(), "%d tours, %d reviews written\n", stats.Tours, stats.KeptReviews)
			return nil
		},
	}

	cmd.Flags().StringVar(&businessesPath, "businesses", "", "Raw business JSON lines file")
	cmd.Flags().StringVar(&reviewsPath, "reviews", "", "Raw review JSON lines file")
	cmd.Flags().StringVar(&toursOut, "tours-out", "tours.jsonl", "Processed tours output")
	cmd.Flags().StringVar(&reviewsOut, "reviews-out", "reviews.jsonl", "Processed reviews output")
	_ = cmd.MarkFlagRequired("businesses")
	_ = cmd.MarkFlagRequired("reviews")
	return cmd
}
