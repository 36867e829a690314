package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/caesar-terminal/synthbook/internal/bootstrap"
	"github.com/caesar-terminal/synthbook/internal/config"
)

var configFile string

func main() {
	root := &cobra.Command{
		Use:           "synthbook",
		Short:         "Synthetic cross-exchange order books",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml, json or toml)")

	root.AddCommand(newServeCmd(), newComposeCmd(), newPresetsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "synthbook: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads config and configures logging; every subcommand starts
// with it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := bootstrap.SetupLogging(cfg.Log, os.Stderr); err != nil {
		return nil, err
	}
	return cfg, nil
}
