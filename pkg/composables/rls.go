package composables

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rescueranger/rescueranger/pkg/configuration"
)

// ApplyTenantRLS pins the transaction to the active tenant for Postgres
// row-level security policies. A second line of defense behind the
// query-level scoping in pkg/isolation.
func ApplyTenantRLS(ctx context.Context, tx pgx.Tx) error {
	if configuration.Use().RLSEnforce != "enforce" {
		return nil
	}
	tenantID, err := UseTenantID(ctx)
	if err != nil {
		// Tenantless transactions (provisioning, audit of failed
		// resolutions) leave app.current_tenant unset; RLS policies then
		// deny access to tenant-owned rows.
		return nil
	}
	_, err = tx.Exec(ctx, "SELECT set_config('app.current_tenant', $1, true)", tenantID.String())
	if err != nil {
		return fmt.Errorf("failed to set rls tenant context: %w", err)
	}
	return nil
}
