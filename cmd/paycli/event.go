package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"collegepay/internal/model"
)

func eventCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Manage the event catalogue",
	}
	cmd.AddCommand(eventAddCmd(open))
	cmd.AddCommand(eventListCmd(open))
	return cmd
}

func eventAddCmd(open opener) *cobra.Command {
	var name, date, fee, description, image string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an event",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("--name must not be empty")
			}
			day, err := time.Parse("2006-01-02", date)
			if err != nil {
				return fmt.Errorf("--date must look like 2026-03-14: %w", err)
			}
			amount, err := decimal.NewFromString(fee)
			if err != nil || amount.IsNegative() {
				return fmt.Errorf("--fee must be a non-negative amount, got %q", fee)
			}

			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			e, err := a.Records.CreateEvent(cmd.Context(), model.Event{
				Name:        strings.TrimSpace(name),
				Description: description,
				Date:        day,
				Fee:         amount.Round(2),
				ImageURL:    image,
			})
			if err != nil {
				return fmt.Errorf("add event: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "event %d added: %s\n", e.ID, e.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "event name")
	cmd.Flags().StringVar(&date, "date", "", "event date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&fee, "fee", "0", "registration fee in rupees")
	cmd.Flags().StringVar(&description, "description", "", "short description")
	cmd.Flags().StringVar(&image, "image", "", "poster image URL")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func eventListCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List events",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			events, err := a.Records.ListEvents(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tDATE\tFEE")
			for _, e := range events {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", e.ID, e.Name, e.Date.Format("2006-01-02"), e.Fee.StringFixed(2))
			}
			return w.Flush()
		},
	}
}
