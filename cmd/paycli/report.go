package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"collegepay/internal/report"
)

func reportCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Payment reports",
	}

	var status, search, out string
	export := &cobra.Command{
		Use:   "export",
		Short: "Export payments as CSV",
		Long: `Export payments joined with student and event details as CSV.

Examples:
  paycli report export --status pending
  paycli report export --search "tech fest" --out payments.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			users, err := a.Users.List(ctx)
			if err != nil {
				return err
			}
			events, err := a.Records.ListEvents(ctx)
			if err != nil {
				return err
			}
			payments, err := a.Records.ListPayments(ctx)
			if err != nil {
				return err
			}
			views := report.Filter{Status: status, Search: search}.Apply(report.Join(users, events, payments))

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			if err := report.WriteCSV(w, views); err != nil {
				return err
			}
			if out != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d payments written to %s\n", len(views), out)
			}
			return nil
		},
	}
	export.Flags().StringVar(&status, "status", "all", "pending, completed, rejected or all")
	export.Flags().StringVar(&search, "search", "", "match student name, phone or event name")
	export.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")

	cmd.AddCommand(export)
	return cmd
}
