package commands

import (
	"fmt"

	"github.com/shadowmesh/harmonydesk/pkg/embed"
	"github.com/spf13/cobra"
)

var frameCmd = &cobra.Command{
	Use:   "frame",
	Short: "Report the latest decoded video frame's shape",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := embed.GetVideoFrame()
		if f == nil {
			fmt.Println("no frame available")
			return nil
		}
		fmt.Printf("frame %dx%d, %d bytes, timestamp=%d\n", f.Width, f.Height, len(f.Data), f.Timestamp)
		return nil
	},
}
