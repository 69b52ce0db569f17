package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rushteam/tourkit/catalog"
	"github.com/rushteam/tourkit/pkg/logging"
	"github.com/rushteam/tourkit/snapshot"
	"github.com/rushteam/tourkit/store"
	"github.com/rushteam/tourkit/train"
)

func NewTrainCmd() *cobra.Command {
	var (
		toursPath   string
		reviewsPath string
		activate    bool
		keep        int
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Build a model snapshot and save it to the store",
		Long: `Train every model component from processed tours and reviews, save the
snapshot to the configured store and, unless --activate=false, mark it active.
With --keep N older snapshots beyond the newest N are deleted afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			tours, err := catalog.LoadTours(toursPath)
			if err != nil {
				return err
			}
			interactions, err := catalog.LoadInteractions(reviewsPath)
			if err != nil {
				return err
			}

			snap, err := train.New(train.FromAppConfig(cfg)).Build(ctx, tours, interactions)
			if err != nil {
				return err
			}

			s, err := store.Open(ctx, cfg.Store)
			if err != nil {
				return err
			}
			defer s.Close()

			repo := snapshot.NewRepository(s, cfg.Store.KeyPrefix)
			m, err := repo.Save(ctx, snap)
			if err != nil {
				return err
			}
			if activate {
				if err := repo.Activate(ctx, m.ID); err != nil {
					return err
				}
			}

			logging.Info().
				Str("snapshot_id", m.ID).
				Str("store", s.Name()).
				Bool("active", activate).
				Msg("snapshot saved")
			if keep > 0 {
				removed, err := repo.Prune(ctx, keep)
				if err != nil {
					return err
				}
				logging.Info().Strs("removed", removed).Msg("old snapshots pruned")
			}
			fmt.Fprintln(cmd.OutOrStdout(), m.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&toursPath, "tours", "tours.jsonl", "Processed tours file")
	cmd.Flags().StringVar(&reviewsPath, "reviews", "reviews.jsonl", "Processed reviews file")
	cmd.Flags().BoolVar(&activate, "activate", true, "Mark the new snapshot active")
	cmd.Flags().IntVar(&keep, "keep", 0, "Prune to the newest N snapshots after saving (0 keeps all)")
	return cmd
}
