package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "gomarket-admin",
		Short: "Admin product editor service",
		Long: `gomarket-admin hosts product editor sessions for the admin dashboard.

It tracks unsaved changes per section, saves sections to the catalog backend,
guards navigation away from unsaved work and pushes notifications over WebSocket.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env необязателен
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file name or path to a yaml file")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newMigrateCmd(opts))

	return cmd
}
