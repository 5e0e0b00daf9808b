package commands

import (
	"fmt"

	"github.com/shadowmesh/harmonydesk/pkg/embed"
	"github.com/spf13/cobra"
)

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Tear down every live session",
	RunE: func(cmd *cobra.Command, args []string) error {
		embed.Disconnect()
		fmt.Println("disconnected all sessions")
		return nil
	},
}
