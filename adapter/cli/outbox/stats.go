package outbox

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/slotwise/adapter/cli"
	"github.com/felixgeelhaar/slotwise/internal/notifications/domain"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show outbox row counts by status",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		counts, err := app.Operator.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to count notifications: %w", err)
		}

		out := cmd.OutOrStdout()
		for _, status := range []domain.Status{domain.StatusPending, domain.StatusSent, domain.StatusFailed} {
			fmt.Fprintf(out, "%-8s %d\n", status, counts[status])
		}
		return nil
	},
}
