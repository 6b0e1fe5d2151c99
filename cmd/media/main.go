package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tendant/simple-media/pkg/simplemedia/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadFunc loads the configuration from .env files and the environment,
// then applies extra on top.
type loadFunc func(extra ...config.Option) (*config.ServerConfig, error)

func NewRootCommand() *cobra.Command {
	var envFiles []string

	rootCmd := &cobra.Command{
		Use:   "media",
		Short: "On-demand media derivation service",
		Long: `Serves resized and re-encoded derivatives of uploaded media through
signed URLs. Configuration is read from MEDIA_* environment variables,
optionally loaded from .env files first.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load (default .env)")

	load := func(extra ...config.Option) (*config.ServerConfig, error) {
		opts := []config.Option{config.WithDotEnv(envFiles...), config.WithEnv()}
		return config.Load(append(opts, extra...)...)
	}

	rootCmd.AddCommand(NewServeCommand(load))
	rootCmd.AddCommand(NewSignCommand(load))
	rootCmd.AddCommand(NewTokenCommand(load))
	rootCmd.AddCommand(NewEnvCommand())

	return rootCmd
}
