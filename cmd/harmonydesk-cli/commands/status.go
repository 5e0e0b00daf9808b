package commands

import (
	"fmt"

	"github.com/shadowmesh/harmonydesk/pkg/embed"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the count of live sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("live sessions: %d\n", embed.ConnectionStatus())
		if reason := embed.GetLastError(); reason != "" {
			fmt.Printf("last error: %s\n", reason)
		}
		return nil
	},
}
