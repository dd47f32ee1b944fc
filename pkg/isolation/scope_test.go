package isolation_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescueranger/rescueranger/modules/core/domain/entities/tenant"
	"github.com/rescueranger/rescueranger/pkg/composables"
	"github.com/rescueranger/rescueranger/pkg/isolation"
	"github.com/rescueranger/rescueranger/pkg/serrors"
)

type fakeEntity struct {
	tenantID uuid.UUID
}

func (f *fakeEntity) TenantID() uuid.UUID {
	return f.tenantID
}

func (f *fakeEntity) SetTenantID(id uuid.UUID) {
	f.tenantID = id
}

type capturingAuditor struct {
	operations []string
}

func (c *capturingAuditor) RecordAllTenantsQuery(_ context.Context, operation string) {
	c.operations = append(c.operations, operation)
}

func newEnforcer(t *testing.T, auditor isolation.Auditor) *isolation.Enforcer {
	t.Helper()
	registry := isolation.NewRegistry()
	require.NoError(t, registry.Register(isolation.Kind{Name: "horse", Table: "horses"}))
	return isolation.NewEnforcer(registry, auditor)
}

func scopedCtx(t *testing.T, tenantID uuid.UUID) context.Context {
	t.Helper()
	ctx, err := composables.WithTenant(context.Background(), &composables.Tenant{
		ID:        tenantID,
		Name:      "Acme Rescue",
		Subdomain: "acme",
		Status:    tenant.StatusActive,
	})
	require.NoError(t, err)
	return ctx
}

func TestScope_Where(t *testing.T) {
	tenantID := uuid.New()
	enforcer := newEnforcer(t, nil)

	scope, err := enforcer.Scope(scopedCtx(t, tenantID), "horse")
	require.NoError(t, err)

	where, args := scope.Where(3)
	assert.Equal(t, "tenant_id = $3", where)
	require.Len(t, args, 1)
	assert.Equal(t, tenantID, args[0])
}

func TestScope_RequiresTenantContext(t *testing.T) {
	enforcer := newEnforcer(t, nil)
	_, err := enforcer.Scope(context.Background(), "horse")
	assert.ErrorIs(t, err, composables.ErrNoTenant)
}

func TestScope_RejectsInaccessibleTenant(t *testing.T) {
	enforcer := newEnforcer(t, nil)
	ctx, err := composables.WithTenant(context.Background(), &composables.Tenant{
		ID:        uuid.New(),
		Subdomain: "acme",
		Status:    tenant.StatusSuspended,
	})
	require.NoError(t, err)

	_, err = enforcer.Scope(ctx, "horse")
	var base *serrors.BaseError
	require.ErrorAs(t, err, &base)
	assert.Equal(t, serrors.CodeTenantAccessDenied, base.Code)
}

func TestScope_UnregisteredKind(t *testing.T) {
	enforcer := newEnforcer(t, nil)
	_, err := enforcer.Scope(scopedCtx(t, uuid.New()), "unicorn")
	assert.Error(t, err)
}

func TestStamp(t *testing.T) {
	tenantID := uuid.New()
	enforcer := newEnforcer(t, nil)
	scope, err := enforcer.Scope(scopedCtx(t, tenantID), "horse")
	require.NoError(t, err)

	t.Run("Unset_TenantID_Is_Stamped", func(t *testing.T) {
		e := &fakeEntity{}
		require.NoError(t, scope.Stamp(e, false))
		assert.Equal(t, tenantID, e.TenantID())
	})

	t.Run("Matching_TenantID_Passes", func(t *testing.T) {
		e := &fakeEntity{tenantID: tenantID}
		assert.NoError(t, scope.Stamp(e, false))
	})

	t.Run("Foreign_TenantID_Rejected_Hard", func(t *testing.T) {
		e := &fakeEntity{tenantID: uuid.New()}
		err := scope.Stamp(e, false)
		var base *serrors.BaseError
		require.ErrorAs(t, err, &base)
		assert.Equal(t, serrors.CodeCrossTenantBlocked, base.Code)
	})

	t.Run("Foreign_TenantID_Allowed_With_Admin_Flag", func(t *testing.T) {
		e := &fakeEntity{tenantID: uuid.New()}
		assert.NoError(t, scope.Stamp(e, true))
	})
}

func TestAllTenants(t *testing.T) {
	auditor := &capturingAuditor{}
	enforcer := newEnforcer(t, auditor)

	scope, err := enforcer.AllTenants(context.Background(), "horse", "reporting.horse-census")
	require.NoError(t, err)

	where, args := scope.Where(1)
	assert.Equal(t, "TRUE", where)
	assert.Empty(t, args)
	assert.True(t, scope.IsAllTenants())
	assert.Equal(t, []string{"reporting.horse-census"}, auditor.operations, "every escape use is audited")

	t.Run("Create_Without_Explicit_Tenant_Rejected", func(t *testing.T) {
		assert.Error(t, scope.Stamp(&fakeEntity{}, true))
	})
}

func TestOwns(t *testing.T) {
	tenantID := uuid.New()
	enforcer := newEnforcer(t, nil)
	scope, err := enforcer.Scope(scopedCtx(t, tenantID), "horse")
	require.NoError(t, err)

	assert.True(t, scope.Owns(&fakeEntity{tenantID: tenantID}))
	assert.False(t, scope.Owns(&fakeEntity{tenantID: uuid.New()}))
}

func TestRegistry_DuplicateMismatch(t *testing.T) {
	registry := isolation.NewRegistry()
	require.NoError(t, registry.Register(isolation.Kind{Name: "horse", Table: "horses"}))
	require.NoError(t, registry.Register(isolation.Kind{Name: "horse", Table: "horses", TenantColumn: "tenant_id"}))
	assert.Error(t, registry.Register(isolation.Kind{Name: "horse", Table: "equines"}))
}
