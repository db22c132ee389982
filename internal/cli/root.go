package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	port       string
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	envConfig := os.Getenv("PROMPTATHON_CONFIG")

	cmd := &cobra.Command{
		Use:   "promptathon",
		Short: "Prompt-a-thon leaderboard over Redis",
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", envConfig, "path to the YAML event config (optional)")
	cmd.AddCommand(NewConsoleCmd(&configPath))
	cmd.AddCommand(NewServeCmd(&configPath, &port))
	cmd.AddCommand(NewCredentialsCmd(&configPath))
	cmd.AddCommand(NewExportCmd(&configPath))
	return cmd
}
