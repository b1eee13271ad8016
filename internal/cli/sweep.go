package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mapthepast/mapthepast/internal/game"
	"github.com/mapthepast/mapthepast/internal/store"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Finalize sessions that were never closed",
	Long: `Finalize sessions still open after --older-than.

Sessions with at least one result are completed with best-per-event
totals. Sessions without results are marked abandoned. Do not run this
with a cutoff shorter than the server's idle timeout while it is serving.`,
	RunE: runSweep,
}

var olderThanFlag time.Duration

func init() {
	sweepCmd.Flags().DurationVar(&olderThanFlag, "older-than", 24*time.Hour, "Minimum session age to finalize")
}

func runSweep(cmd *cobra.Command, args []string) error {
	if olderThanFlag <= 0 {
		return fmt.Errorf("--older-than must be positive")
	}
	db, logger, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	now := time.Now().UTC()
	rep, err := game.Sweep(cmd.Context(), logger, store.New(db), now.Add(-olderThanFlag), now, nil)
	fmt.Fprintf(cmd.OutOrStdout(), "completed %d, abandoned %d, skipped %d, failed %d\n",
		rep.Completed, rep.Abandoned, rep.Skipped, rep.Failed)
	return err
}
