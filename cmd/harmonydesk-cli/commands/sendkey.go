package commands

import (
	"fmt"

	"github.com/shadowmesh/harmonydesk/pkg/embed"
	"github.com/spf13/cobra"
)

var sendKeyCmd = &cobra.Command{
	Use:   "send-key <key-code>",
	Short: "Send a key event to the first live session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var key uint32
		var pressed bool
		if _, err := fmt.Sscanf(args[0], "%d", &key); err != nil {
			return fmt.Errorf("invalid key code %q", args[0])
		}
		pressed, _ = cmd.Flags().GetBool("pressed")
		embed.SendKeyEvent(key, pressed)
		return nil
	},
}

func init() {
	sendKeyCmd.Flags().Bool("pressed", true, "key press (true) or release (false)")
}
