package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/memohai/nextplot/internal/config"
	"github.com/memohai/nextplot/internal/version"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "nextplot",
		Short: "NextPlot LINE webhook relay",
		Long:  "NextPlot receives LINE Official Account webhooks, checks plot details in chat text, stores attachments and replies with what is still missing.",
		RunE: func(cmd *cobra.Command, args []string) error {
			runServe(resolveConfigPath())
			return nil
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: config.toml or $CONFIG_PATH)")

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(signCmd())
	root.AddCommand(configCmd())
	root.AddCommand(versionCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		Run: func(cmd *cobra.Command, args []string) {
			runServe(resolveConfigPath())
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nextplot %s\n", version.GetInfo())
		},
	}
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return config.DefaultConfigPath
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
