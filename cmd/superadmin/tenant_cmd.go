package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rescueranger/rescueranger/modules/core/domain/entities/tenant"
)

type tenantOutput struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Subdomain    string    `json:"subdomain"`
	Status       string    `json:"status"`
	StatusReason string    `json:"status_reason,omitempty"`
	ContactEmail string    `json:"contact_email,omitempty"`
}

func toTenantOutput(t *tenant.Tenant) tenantOutput {
	return tenantOutput{
		ID:           t.ID(),
		Name:         t.Name(),
		Subdomain:    t.Subdomain(),
		Status:       t.Status().String(),
		StatusReason: t.StatusReason(),
		ContactEmail: t.ContactEmail(),
	}
}

func newProvisionCmd() *cobra.Command {
	var (
		name      string
		subdomain string
		email     string
		activate  bool
	)

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create a tenant and optionally activate it",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()
			ctx := rt.operatorContext(cmd.Context())

			created, err := rt.tenants.Create(ctx, tenant.New(
				name,
				subdomain,
				tenant.WithContactEmail(email),
			))
			if err != nil {
				return err
			}
			if activate {
				created, err = rt.tenants.SetStatus(ctx, created.ID(), tenant.StatusActive, "")
				if err != nil {
					return err
				}
			}
			return writeJSON(toTenantOutput(created))
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&subdomain, "subdomain", "", "unique subdomain label")
	cmd.Flags().StringVar(&email, "email", "", "contact email")
	cmd.Flags().BoolVar(&activate, "activate", false, "activate immediately after provisioning")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("subdomain")
	return cmd
}

func newSetStatusCmd() *cobra.Command {
	var (
		tenantID string
		status   string
		reason   string
	)

	cmd := &cobra.Command{
		Use:   "set-status",
		Short: "Move a tenant through its lifecycle (active, suspended, pending_deletion)",
		RunE: func(cmd *cobra.Command, args []string) error {
			tid, err := uuid.Parse(tenantID)
			if err != nil {
				return fmt.Errorf("invalid --tenant: %w", err)
			}
			target := tenant.Status(status)
			if !target.IsValid() {
				return fmt.Errorf("unknown status %q", status)
			}

			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			updated, err := rt.tenants.SetStatus(rt.operatorContext(cmd.Context()), tid, target, reason)
			if err != nil {
				return err
			}
			return writeJSON(toTenantOutput(updated))
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant UUID")
	cmd.Flags().StringVar(&status, "status", "", "target status")
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded on the tenant")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			tenants, err := rt.tenants.List(rt.operatorContext(cmd.Context()))
			if err != nil {
				return err
			}
			out := make([]tenantOutput, 0, len(tenants))
			for _, t := range tenants {
				out = append(out, toTenantOutput(t))
			}
			return writeJSON(out)
		},
	}
	return cmd
}
