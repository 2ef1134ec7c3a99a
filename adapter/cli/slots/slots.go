package slots

import (
	"github.com/spf13/cobra"
)

// Cmd is the slots command group
var Cmd = &cobra.Command{
	Use:   "slots",
	Short: "Manage slots",
	Long:  `Publish, list and clean up recruiter availability slots.`,
}

func init() {
	Cmd.AddCommand(createCmd)
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(cleanupCmd)
}
