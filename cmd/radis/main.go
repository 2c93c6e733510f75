package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "radis",
		Short:         "Radiology information API and bulk importer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: search ., ./config, /etc/radis)")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(importCmd(&configPath))
	rootCmd.AddCommand(eventsCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
