package slots

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/slotwise/adapter/cli"
)

var cleanupBefore string

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete FREE slots that started before a date",
	Long: `Delete FREE slots that started before --before. Held, booked and
canceled slots are kept for history.

Examples:
  slotwise slots cleanup --before 2026-05-01
  slotwise slots cleanup --before 2026-05-01T12:00:00Z`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		before, err := parseBefore(cleanupBefore)
		if err != nil {
			return err
		}

		deleted, err := app.CleanupSlotsHandler.Handle(cmd.Context(), before)
		if err != nil {
			return fmt.Errorf("failed to clean up slots: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d stale slots.\n", deleted)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().StringVar(&cleanupBefore, "before", "", "cutoff date (2006-01-02) or RFC 3339 time")
	_ = cleanupCmd.MarkFlagRequired("before")
}

func parseBefore(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --before %q: use 2006-01-02 or RFC 3339", v)
	}
	return t, nil
}

func parseID(v string) (int64, error) {
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", v)
	}
	return id, nil
}
