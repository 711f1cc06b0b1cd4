package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"collegepay/internal/app"
	"collegepay/internal/config"
)

var Version = "dev"

// opener connects to the configured backends.
type opener func(ctx context.Context) (*app.App, error)

func main() {
	cfg := config.Load()
	slog.SetDefault(cfg.NewLogger())

	open := func(ctx context.Context) (*app.App, error) {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if cfg.StoreBackend != "postgres" {
			return nil, fmt.Errorf("paycli needs STORE_BACKEND=postgres, got %q", cfg.StoreBackend)
		}
		return app.Open(ctx, cfg)
	}

	if err := newRootCmd(open).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(open opener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "paycli",
		Short:         "paycli - operator tools for college event payments",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd(open))
	rootCmd.AddCommand(adminCmd(open))
	rootCmd.AddCommand(eventCmd(open))
	rootCmd.AddCommand(reportCmd(open))
	return rootCmd
}

func migrateCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}
