package outbox

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/slotwise/adapter/cli"
)

var retryCmd = &cobra.Command{
	Use:   "retry <notification-id>",
	Short: "Re-arm a failed notification",
	Long: `Reset a failed notification to pending with zero attempts so the
dispatch worker picks it up on its next cycle.

Examples:
  slotwise outbox retry 42`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid notification id %q", args[0])
		}

		n, err := app.Operator.RetryFailed(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to retry notification %d: %w", id, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Notification %d re-armed (%s).\n", n.ID(), n.Status())
		return nil
	},
}
