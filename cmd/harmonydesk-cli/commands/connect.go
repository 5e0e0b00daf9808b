package commands

import (
	"fmt"

	"github.com/shadowmesh/harmonydesk/pkg/embed"
	"github.com/spf13/cobra"
)

var connectSecret string

var connectCmd = &cobra.Command{
	Use:   "connect <session-id>",
	Short: "Connect to a remote session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID := args[0]
		if embed.Connect(sessionID, connectSecret) != 0 {
			reason := embed.GetLastError()
			if reason == "" {
				reason = "unknown failure"
			}
			return fmt.Errorf("connect %s failed: %s", sessionID, reason)
		}
		fmt.Printf("connected to %s\n", sessionID)
		return nil
	},
}

func init() {
	connectCmd.Flags().StringVar(&connectSecret, "secret", "", "pre-shared secret for the handshake")
}
