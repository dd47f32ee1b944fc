package authz_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescueranger/rescueranger/modules/core/domain/aggregates/user"
	"github.com/rescueranger/rescueranger/modules/core/domain/entities/tenant"
	"github.com/rescueranger/rescueranger/pkg/authz"
	"github.com/rescueranger/rescueranger/pkg/composables"
	"github.com/rescueranger/rescueranger/pkg/serrors"
)

type recordingAudit struct {
	denied   []string
	bypassed []string
}

func (r *recordingAudit) RecordPolicyDenied(_ context.Context, policy string, _ *authz.Principal, _ error) {
	r.denied = append(r.denied, policy)
}

func (r *recordingAudit) RecordAdminBypass(_ context.Context, policy string, _ *authz.Principal) {
	r.bypassed = append(r.bypassed, policy)
}

func tenantCtx(t *testing.T, tenantID uuid.UUID) context.Context {
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

func member(tenantID uuid.UUID, role user.Role) *authz.Principal {
	return &authz.Principal{
		UserID:    uuid.New(),
		Email:     "rider@acme.org",
		TenantID:  tenantID,
		Role:      role,
		Resources: map[string]bool{},
	}
}

func sysAdmin() *authz.Principal {
	return &authz.Principal{
		UserID:        uuid.New(),
		Email:         "root@rescueranger.com",
		TenantID:      uuid.New(),
		Role:          user.RoleAdmin,
		IsSystemAdmin: true,
		Resources:     map[string]bool{},
	}
}

func newEngine(rec authz.Recorder) *authz.Engine {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return authz.NewEngine(logger, rec)
}

func TestTenantMembership(t *testing.T) {
	tenantID := uuid.New()
	ctx := tenantCtx(t, tenantID)

	engine := newEngine(nil)
	engine.Register(authz.NewPolicy("horse.view", authz.TenantMembership{}))

	t.Run("Member_Allowed", func(t *testing.T) {
		assert.NoError(t, engine.Authorize(ctx, "horse.view", member(tenantID, user.RoleMember)))
	})

	t.Run("Non_Member_Denied", func(t *testing.T) {
		err := engine.Authorize(ctx, "horse.view", member(uuid.New(), user.RoleAdmin))
		var base *serrors.BaseError
		require.ErrorAs(t, err, &base)
		assert.Equal(t, serrors.CodeTenantAccessDenied, base.Code)
	})

	t.Run("Anonymous_Denied", func(t *testing.T) {
		assert.Error(t, engine.Authorize(ctx, "horse.view", nil))
	})

	t.Run("No_Tenant_Context_Denied", func(t *testing.T) {
		assert.Error(t, engine.Authorize(context.Background(), "horse.view", member(tenantID, user.RoleAdmin)))
	})
}

func TestTenantMembership_MinRoleAndResource(t *testing.T) {
	tenantID := uuid.New()
	ctx := tenantCtx(t, tenantID)

	engine := newEngine(nil)
	engine.Register(authz.NewPolicy("horse.manage", authz.TenantMembership{
		MinRole:  user.RoleManager,
		Resource: "Horse",
	}))

	t.Run("Member_Below_MinRole_Denied", func(t *testing.T) {
		p := member(tenantID, user.RoleMember)
		p.Resources["Horse"] = true
		assert.Error(t, engine.Authorize(ctx, "horse.manage", p))
	})

	t.Run("Manager_Without_Resource_Denied", func(t *testing.T) {
		assert.Error(t, engine.Authorize(ctx, "horse.manage", member(tenantID, user.RoleManager)))
	})

	t.Run("Manager_With_Resource_Allowed", func(t *testing.T) {
		p := member(tenantID, user.RoleManager)
		p.Resources["Horse"] = true
		assert.NoError(t, engine.Authorize(ctx, "horse.manage", p))
	})
}

func TestTenantMembership_SystemAdminBypass(t *testing.T) {
	tenantID := uuid.New()
	ctx := tenantCtx(t, tenantID)
	rec := &recordingAudit{}
	engine := newEngine(rec)

	engine.Register(
		authz.NewPolicy("horse.report", authz.TenantMembership{MinRole: user.RoleAdmin, AllowSystemAdminBypass: true}),
		authz.NewPolicy("horse.strict", authz.TenantMembership{MinRole: user.RoleAdmin}),
	)

	t.Run("Bypass_Allowed_Skips_Role_And_Resource", func(t *testing.T) {
		require.NoError(t, engine.Authorize(ctx, "horse.report", sysAdmin()))
		assert.Contains(t, rec.bypassed, "horse.report")
	})

	t.Run("Bypass_Not_Permitted_By_Requirement", func(t *testing.T) {
		assert.Error(t, engine.Authorize(ctx, "horse.strict", sysAdmin()))
		assert.Contains(t, rec.denied, "horse.strict")
	})
}

func TestCrossTenant(t *testing.T) {
	engine := newEngine(nil)
	engine.Register(authz.NewPolicy("tenant.switch", authz.CrossTenant{AllowTenantSwitch: true}))

	t.Run("System_Admin_Allowed", func(t *testing.T) {
		assert.NoError(t, engine.Authorize(context.Background(), "tenant.switch", sysAdmin()))
	})

	t.Run("Tenant_Admin_Denied", func(t *testing.T) {
		err := engine.Authorize(context.Background(), "tenant.switch", member(uuid.New(), user.RoleAdmin))
		var base *serrors.BaseError
		require.ErrorAs(t, err, &base)
		assert.Equal(t, serrors.CodeCrossTenantBlocked, base.Code)
	})
}

func TestUserManagement(t *testing.T) {
	engine := newEngine(nil)
	engine.Register(
		authz.NewPolicy("users.view", authz.UserManagement{Action: authz.UserView}),
		authz.NewPolicy("users.remove", authz.UserManagement{Action: authz.UserRemove}),
	)

	t.Run("Manager_Can_View", func(t *testing.T) {
		assert.NoError(t, engine.Authorize(context.Background(), "users.view", member(uuid.New(), user.RoleManager)))
	})

	t.Run("Manager_Cannot_Remove", func(t *testing.T) {
		assert.Error(t, engine.Authorize(context.Background(), "users.remove", member(uuid.New(), user.RoleManager)))
	})

	t.Run("Admin_Can_Remove", func(t *testing.T) {
		assert.NoError(t, engine.Authorize(context.Background(), "users.remove", member(uuid.New(), user.RoleAdmin)))
	})
}

func TestPolicy_ComposesWithAND(t *testing.T) {
	tenantID := uuid.New()
	ctx := tenantCtx(t, tenantID)
	engine := newEngine(nil)
	engine.Register(authz.NewPolicy("users.invite",
		authz.UserManagement{Action: authz.UserInvite},
		authz.TenantMembership{MinRole: user.RoleManager},
	))

	t.Run("Both_Pass", func(t *testing.T) {
		assert.NoError(t, engine.Authorize(ctx, "users.invite", member(tenantID, user.RoleManager)))
	})

	t.Run("Membership_Fails_First", func(t *testing.T) {
		// Manager of another tenant: user-management alone would pass, the
		// policy still denies on membership.
		err := engine.Authorize(ctx, "users.invite", member(uuid.New(), user.RoleManager))
		var base *serrors.BaseError
		require.ErrorAs(t, err, &base)
		assert.Equal(t, serrors.CodeTenantAccessDenied, base.Code)
	})
}

func TestAuthorize_UnknownPolicy(t *testing.T) {
	engine := newEngine(nil)
	assert.Error(t, engine.Authorize(context.Background(), "nope", sysAdmin()))
}
