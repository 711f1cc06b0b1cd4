package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"collegepay/internal/model"
)

func adminCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrators",
	}

	var phone, name string
	add := &cobra.Command{
		Use:   "add",
		Short: "Register an administrator",
		Long: `Register an administrator record. Admin sign-in only succeeds for phone
numbers added here.

Examples:
  paycli admin add --phone 1112223333 --name "Dean of Students"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			u, err := a.Users.Create(cmd.Context(), model.User{Name: name, PhoneNumber: phone, Role: model.RoleAdmin})
			if err != nil {
				return fmt.Errorf("add admin: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %d added for %s\n", u.ID, u.PhoneNumber)
			return nil
		},
	}
	add.Flags().StringVar(&phone, "phone", "", "admin phone number")
	add.Flags().StringVar(&name, "name", "", "admin display name")
	_ = add.MarkFlagRequired("phone")
	_ = add.MarkFlagRequired("name")

	cmd.AddCommand(add)
	return cmd
}
