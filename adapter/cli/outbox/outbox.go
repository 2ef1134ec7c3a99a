package outbox

import (
	"github.com/spf13/cobra"
)

// Cmd is the outbox command group
var Cmd = &cobra.Command{
	Use:   "outbox",
	Short: "Inspect and repair the notification outbox",
	Long: `List failed notifications, re-arm them for delivery and show
outbox counts by status.`,
}

func init() {
	Cmd.AddCommand(failedCmd)
	Cmd.AddCommand(retryCmd)
	Cmd.AddCommand(statsCmd)
}
