package tokens

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/slotwise/adapter/cli"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
)

var ttl time.Duration

// Cmd is the tokens command group
var Cmd = &cobra.Command{
	Use:   "tokens",
	Short: "Manage one-time action tokens",
}

var issueCmd = &cobra.Command{
	Use:   "issue <action> <assignment-id>",
	Short: "Issue a single-use token for a candidate action",
	Long: `Issue a single-use token that authorizes one candidate action on an
assignment. Actions: confirm_assignment, reject_assignment,
request_reschedule.

Examples:
  slotwise tokens issue confirm_assignment 12 --ttl 72h`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		action := domain.TokenAction(args[0])
		if !action.IsValid() {
			return fmt.Errorf("unknown action %q", args[0])
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid assignment id %q", args[1])
		}

		token, err := app.Tokens.Issue(cmd.Context(), action, id, ttl)
		if err != nil {
			return fmt.Errorf("failed to issue token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	issueCmd.Flags().DurationVar(&ttl, "ttl", 72*time.Hour, "token lifetime")
	Cmd.AddCommand(issueCmd)
}
