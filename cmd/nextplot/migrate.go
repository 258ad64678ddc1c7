package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memohai/nextplot/internal/config"
	"github.com/memohai/nextplot/internal/db"
)

func migrateCmd() *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres message table schema",
	}
	cmd.PersistentFlags().StringVar(&dsn, "dsn", "", "database URL (default: records.database_url)")

	resolve := func() (string, error) {
		if dsn != "" {
			return dsn, nil
		}
		cfg, err := config.Load(resolveConfigPath())
		if err != nil {
			return "", err
		}
		if cfg.Records.DatabaseURL == "" {
			return "", errors.New("records.database_url is not set; pass --dsn")
		}
		return cfg.Records.DatabaseURL, nil
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := resolve()
			if err != nil {
				return err
			}
			v, err := db.MigrateUp(url)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", v)
			return nil
		},
	}

	var steps int
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := resolve()
			if err != nil {
				return err
			}
			v, err := db.MigrateDown(url, steps)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", v)
			return nil
		},
	}
	downCmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	schemaVersionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := resolve()
			if err != nil {
				return err
			}
			v, dirty, err := db.Version(url)
			if err != nil {
				return err
			}
			if dirty {
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty)\n", v)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d\n", v)
			return nil
		},
	}

	cmd.AddCommand(upCmd, downCmd, schemaVersionCmd)
	return cmd
}
