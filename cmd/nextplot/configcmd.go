package main

import (
	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/memohai/nextplot/internal/config"
)

const redacted = "********"

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(redact(cfg))
		},
	}
}

func redact(cfg config.Config) config.Config {
	for _, s := range []*string{
		&cfg.LINE.ChannelSecret,
		&cfg.LINE.ChannelAccessToken,
		&cfg.Supabase.PublishableKey,
		&cfg.Supabase.SecretKey,
		&cfg.Records.DatabaseURL,
		&cfg.Media.SigningKey,
	} {
		if *s != "" {
			*s = redacted
		}
	}
	return cfg
}
