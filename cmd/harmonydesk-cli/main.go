// Command harmonydesk-cli is the minimal real host this module ships: a
// cobra command tree that drives pkg/embed's facade end to end, standing
// in for the foreign-language embedding boundary the core itself never
// assumes exists.
package main

import (
	"fmt"
	"os"

	"github.com/shadowmesh/harmonydesk/cmd/harmonydesk-cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
