package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/rescueranger/rescueranger/modules/core/domain/aggregates/user"
	"github.com/rescueranger/rescueranger/pkg/composables"
)

// newCreateAdminCmd bootstraps the first administrator of a tenant. It
// writes through the repository directly: there is nobody inside the tenant
// yet who could issue the invitation.
func newCreateAdminCmd() *cobra.Command {
	var (
		tenantID  string
		email     string
		password  string
		firstName string
		lastName  string
	)

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create the first admin user of a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			tid, err := uuid.Parse(tenantID)
			if err != nil {
				return fmt.Errorf("invalid --tenant: %w", err)
			}

			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()
			ctx := rt.operatorContext(cmd.Context())

			if _, err := rt.tenants.GetByID(ctx, tid); err != nil {
				return err
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}

			var created *user.User
			err = composables.InTx(ctx, func(txCtx context.Context) error {
				created, err = rt.users.Create(txCtx, user.New(
					firstName,
					lastName,
					email,
					user.WithTenantID(tid),
					user.WithRole(user.RoleAdmin),
					user.WithPasswordHash(string(hash)),
				))
				return err
			})
			if err != nil {
				return err
			}

			return writeJSON(map[string]string{
				"id":     created.ID().String(),
				"tenant": created.TenantID().String(),
				"email":  created.Email(),
				"role":   string(created.Role()),
			})
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant UUID")
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.Flags().StringVar(&firstName, "first-name", "Admin", "first name")
	cmd.Flags().StringVar(&lastName, "last-name", "User", "last name")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
