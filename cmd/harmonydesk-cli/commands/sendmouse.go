package commands

import (
	"github.com/shadowmesh/harmonydesk/pkg/embed"
	"github.com/spf13/cobra"
)

var (
	mouseX, mouseY   int32
	mouseButton      uint32
	mouseClick       bool
	mouseClickPress  bool
)

var sendMouseCmd = &cobra.Command{
	Use:   "send-mouse",
	Short: "Send a mouse move or click to the first live session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if mouseClick {
			embed.SendMouseClick(mouseButton, mouseClickPress)
			return nil
		}
		embed.SendMouseMove(mouseX, mouseY)
		return nil
	},
}

func init() {
	sendMouseCmd.Flags().Int32Var(&mouseX, "x", 0, "absolute x position")
	sendMouseCmd.Flags().Int32Var(&mouseY, "y", 0, "absolute y position")
	sendMouseCmd.Flags().BoolVar(&mouseClick, "click", false, "send a button click instead of a move")
	sendMouseCmd.Flags().Uint32Var(&mouseButton, "button", 0, "button code (click mode)")
	sendMouseCmd.Flags().BoolVar(&mouseClickPress, "pressed", true, "button press (true) or release (false) (click mode)")
}
