package slots

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/slotwise/adapter/cli"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/queries"
)

var listDays int

var listCmd = &cobra.Command{
	Use:   "list <owner-id>",
	Short: "List an owner's FREE slots",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		owner, err := parseID(args[0])
		if err != nil {
			return err
		}

		from := time.Now().UTC()
		views, err := app.ListAvailableSlotsHandler.Handle(cmd.Context(), queries.ListAvailableSlotsQuery{
			OwnerID: owner,
			From:    from,
			To:      from.AddDate(0, 0, listDays),
		})
		if err != nil {
			return fmt.Errorf("failed to list slots: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(views) == 0 {
			fmt.Fprintln(out, "No free slots.")
			return nil
		}
		fmt.Fprintf(out, "%-8s %-22s %-6s %-10s %s\n", "ID", "START (UTC)", "MIN", "PURPOSE", "TIMEZONE")
		fmt.Fprintln(out, strings.Repeat("-", 64))
		for _, v := range views {
			fmt.Fprintf(out, "%-8d %-22s %-6d %-10s %s\n", v.ID, v.Start.Format("2006-01-02 15:04"), v.DurationMin, v.Purpose, v.Timezone)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().IntVar(&listDays, "days", 14, "how many days ahead to list")
}
