package commands

import (
	"fmt"

	"github.com/shadowmesh/harmonydesk/pkg/embed"
	"github.com/spf13/cobra"
)

var (
	cfgIDServer    string
	cfgRelayServer string
	cfgForceRelay  bool
	cfgKey         string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Set and print the server configuration",
	Long: `Set applies any non-empty flag to the process-wide server
configuration, then prints the resulting effective configuration.
Because this configuration lives only in process memory, it must be
set again on every invocation,
typically alongside a startup config file passed via --config on the
root command.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		embed.SetServerConfig(cfgIDServer, cfgRelayServer, cfgForceRelay, cfgKey)
		cfg, ok := embed.GetServerConfig()
		if !ok {
			return fmt.Errorf("embedding core not initialized")
		}
		fmt.Printf("directory_addr: %s\n", cfg.DirectoryAddr)
		fmt.Printf("relay_addr:     %s\n", cfg.RelayAddr)
		fmt.Printf("force_relay:    %t\n", cfg.ForceRelay)
		keySet := "no"
		if cfg.Key != "" {
			keySet = "yes"
		}
		fmt.Printf("key configured: %s\n", keySet)
		return nil
	},
}

func init() {
	configCmd.Flags().StringVar(&cfgIDServer, "id-server", "", "directory (ID) server address")
	configCmd.Flags().StringVar(&cfgRelayServer, "relay-server", "", "relay server address")
	configCmd.Flags().BoolVar(&cfgForceRelay, "force-relay", false, "store the force-relay flag in the server configuration (connect attempts do not consult it; the relay fallback runs whenever a relay address is set)")
	configCmd.Flags().StringVar(&cfgKey, "key", "", "pre-shared session key")
}
