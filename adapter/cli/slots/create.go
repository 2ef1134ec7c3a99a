package slots

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/slotwise/adapter/cli"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
)

var (
	ownerID    int64
	locationID int64
	startAt    string
	duration   time.Duration
	timezone   string
	purpose    string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Publish a FREE slot",
	Long: `Publish a FREE slot for an owner.

--start is a wall-clock time in --timezone, formatted 2006-01-02T15:04.

Examples:
  slotwise slots create --owner 7 --location 3 --start 2026-05-05T10:00 --timezone Europe/Berlin
  slotwise slots create --owner 7 --location 3 --start 2026-05-05T13:00 --duration 8h --purpose intro_day`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}

		loc, err := domain.LoadTimezone(timezone)
		if err != nil {
			return err
		}
		start, err := time.ParseInLocation("2006-01-02T15:04", startAt, loc)
		if err != nil {
			return fmt.Errorf("invalid start %q: %w", startAt, err)
		}

		slot, err := app.CreateSlotHandler.Handle(cmd.Context(), commands.CreateSlotCommand{
			OwnerID:    ownerID,
			LocationID: locationID,
			Start:      start,
			Duration:   duration,
			Timezone:   timezone,
			Purpose:    domain.Purpose(purpose),
		})
		if err != nil {
			return fmt.Errorf("failed to create slot: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Slot created!")
		fmt.Fprintf(out, "  ID:    %d\n", slot.ID())
		fmt.Fprintf(out, "  Start: %s\n", slot.Start().In(loc).Format("Mon 2006-01-02 15:04 MST"))
		fmt.Fprintf(out, "  End:   %s\n", slot.End().In(loc).Format("15:04"))
		return nil
	},
}

func init() {
	createCmd.Flags().Int64Var(&ownerID, "owner", 0, "owner (recruiter) id")
	createCmd.Flags().Int64Var(&locationID, "location", 0, "location id")
	createCmd.Flags().StringVar(&startAt, "start", "", "local start time, 2006-01-02T15:04")
	createCmd.Flags().DurationVar(&duration, "duration", 30*time.Minute, "slot length")
	createCmd.Flags().StringVar(&timezone, "timezone", "UTC", "IANA timezone of the slot")
	createCmd.Flags().StringVar(&purpose, "purpose", string(domain.PurposeInterview), "interview or intro_day")
	_ = createCmd.MarkFlagRequired("owner")
	_ = createCmd.MarkFlagRequired("location")
	_ = createCmd.MarkFlagRequired("start")
}
