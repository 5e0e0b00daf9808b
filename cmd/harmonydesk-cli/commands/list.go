package commands

import (
	"fmt"

	"github.com/shadowmesh/harmonydesk/pkg/embed"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List live sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions := embed.List()
		if len(sessions) == 0 {
			fmt.Println("no live sessions")
			return nil
		}
		for _, s := range sessions {
			fmt.Printf("%-24s connected=%-5t screen=%dx%d\n", s.ID, s.Connected, s.ScreenWidth, s.ScreenHeight)
		}
		return nil
	},
}
