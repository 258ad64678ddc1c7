package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"github.com/memohai/nextplot/internal/config"
	"github.com/memohai/nextplot/internal/signature"
)

func signCmd() *cobra.Command {
	var (
		secret string
		postTo string
	)

	cmd := &cobra.Command{
		Use:   "sign [file]",
		Short: "Sign a webhook body with the channel secret",
		Long:  "Reads a webhook body from file (or stdin) and prints its X-Line-Signature. With --post the signed body is sent to the given URL.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readBody(cmd, args)
			if err != nil {
				return err
			}
			if secret == "" {
				cfg, err := config.Load(resolveConfigPath())
				if err != nil {
					return err
				}
				secret = cfg.LINE.ChannelSecret
			}
			if secret == "" {
				return errors.New("no channel secret; pass --secret or set line.channel_secret")
			}

			sig := signature.Sign(body, secret)
			if postTo == "" {
				fmt.Fprintln(cmd.OutOrStdout(), sig)
				return nil
			}

			resp, err := resty.New().
				SetTimeout(30*time.Second).
				R().
				SetContext(cmd.Context()).
				SetHeader("Content-Type", "application/json").
				SetHeader(signature.Header, sig).
				SetBody(body).
				Post(postTo)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", resp.Status(), resp.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "channel secret (default: line.channel_secret)")
	cmd.Flags().StringVar(&postTo, "post", "", "send the signed body to this URL")
	return cmd
}

func readBody(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}
