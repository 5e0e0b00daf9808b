// Package commands implements the harmonydesk-cli command tree.
package commands

import (
	"log/slog"

	"github.com/shadowmesh/harmonydesk/pkg/config"
	"github.com/shadowmesh/harmonydesk/pkg/embed"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "harmonydesk-cli",
	Short:         "harmonydesk-cli drives the harmonydesk remote-desktop core",
	Long:          `harmonydesk-cli is a minimal host for the harmonydesk embedding core: it loads an optional startup config file and issues connect, input, and frame-polling calls against pkg/embed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		opts := embed.Options{LogLevel: slog.LevelInfo}
		if cfgFile != "" {
			b, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			opts = embed.OptionsFromBootstrap(b)
		}
		embed.InitWithOptions(opts)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		embed.Cleanup()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "optional startup config file (YAML)")

	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(sendKeyCmd)
	rootCmd.AddCommand(sendMouseCmd)
	rootCmd.AddCommand(frameCmd)
	rootCmd.AddCommand(configCmd)
}
