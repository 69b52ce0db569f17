package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rushteam/tourkit/pkg/logging"
	"github.com/rushteam/tourkit/snapshot"
	"github.com/rushteam/tourkit/store"
)

func NewSnapshotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List, delete and prune saved snapshots",
	}
	cmd.AddCommand(newSnapshotsListCmd())
	cmd.AddCommand(newSnapshotsDeleteCmd())
	cmd.AddCommand(newSnapshotsPruneCmd())
	return cmd
}

// withRepository 打开配置的存储并在其上执行 fn
func withRepository(ctx context.Context, fn func(*snapshot.Repository) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(snapshot.NewRepository(s, cfg.Store.KeyPrefix))
}

func newSnapshotsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withRepository(ctx, func(repo *snapshot.Repository) error {
				all, err := repo.List(ctx)
				if err != nil {
					return err
				}
				active, _ := repo.ActiveID(ctx)
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tBUILT\tTOURS\tRANKER\tACTIVE")
				for _, m := range all {
					mark := ""
					if m.ID == active {
						mark = "*"
					}
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", m.ID, m.BuiltAt.Format(time.RFC3339), m.TourCount, m.RankerTag(), mark)
				}
				return w.Flush()
			})
		},
	}
}

func newSnapshotsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a snapshot that is not active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withRepository(ctx, func(repo *snapshot.Repository) error {
				if err := repo.Delete(ctx, args[0]); err != nil {
					return err
				}
				logging.Info().Str("snapshot_id", args[0]).Msg("snapshot deleted")
				return nil
			})
		},
	}
}

func newSnapshotsPruneCmd() *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest snapshots",
		Long: `Keep the newest --keep snapshots and delete the rest. The active snapshot
is never deleted. Removed ids are printed one per line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withRepository(ctx, func(repo *snapshot.Repository) error {
				removed, err := repo.Prune(ctx, keep)
				for _, id := range removed {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				if err != nil {
					return err
				}
				logging.Info().Int("removed", len(removed)).Int("keep", keep).Msg("snapshots pruned")
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 3, "Number of newest snapshots to keep")
	return cmd
}
