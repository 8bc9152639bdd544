package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// flag names
const (
	flagEnvFile = "env-file"
	flagType    = "type"
	flagName    = "name"
	flagField   = "field"
	flagOutput  = "output"
)

const defaultEnvFile = ".env"

// NewRootCmd builds the installer command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "installer",
		Short: "Plugin installer worker",
		Long: `installer consumes plugin install/uninstall jobs from RabbitMQ, runs their
provisioning pipeline and reports progress on the notification queue.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadEnvFile(cmd)
		},
	}

	root.PersistentFlags().String(flagEnvFile, defaultEnvFile, "Env file to load before reading configuration")

	root.AddCommand(GetWorkerCmd())
	root.AddCommand(GetEnqueueCmd())
	root.AddCommand(GetPipelineCmd())
	return root
}

func Execute() error {
	return NewRootCmd().Execute()
}

// loadEnvFile loads the env file without overriding variables already set.
// A missing default file is not an error; a missing explicit one is.
func loadEnvFile(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString(flagEnvFile)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if cmd.Flags().Changed(flagEnvFile) {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
		fmt.Fprintln(os.Stderr, "No .env file found, continuing with environment variables")
	}
	return nil
}
