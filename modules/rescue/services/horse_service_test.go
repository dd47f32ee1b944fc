package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	userAggregate "github.com/rescueranger/rescueranger/modules/core/domain/aggregates/user"
	"github.com/rescueranger/rescueranger/modules/core/domain/entities/tenant"
	"github.com/rescueranger/rescueranger/modules/rescue/domain/entities/horse"
	"github.com/rescueranger/rescueranger/pkg/authz"
	"github.com/rescueranger/rescueranger/pkg/composables"
	"github.com/rescueranger/rescueranger/pkg/eventbus"
	"github.com/rescueranger/rescueranger/pkg/logging"
	"github.com/rescueranger/rescueranger/pkg/serrors"
)

type fakeHorseRepo struct {
	horses          []*horse.Horse
	allTenantsCalls []string
}

func (r *fakeHorseRepo) GetByID(_ context.Context, id uuid.UUID) (*horse.Horse, error) {
	for _, h := range r.horses {
		if h.ID() == id {
			return h, nil
		}
	}
	return nil, context.Canceled
}

func (r *fakeHorseRepo) List(_ context.Context) ([]*horse.Horse, error) {
	return r.horses, nil
}

func (r *fakeHorseRepo) ListAllTenants(_ context.Context, operation string) ([]*horse.Horse, error) {
	r.allTenantsCalls = append(r.allTenantsCalls, operation)
	return r.horses, nil
}

func (r *fakeHorseRepo) Count(_ context.Context) (int64, error) {
	return int64(len(r.horses)), nil
}

func (r *fakeHorseRepo) Create(_ context.Context, h *horse.Horse) (*horse.Horse, error) {
	r.horses = append(r.horses, h)
	return h, nil
}

func (r *fakeHorseRepo) Update(_ context.Context, h *horse.Horse) (*horse.Horse, error) {
	return h, nil
}

func (r *fakeHorseRepo) Delete(_ context.Context, _ uuid.UUID) error {
	return nil
}

func newTestHorseService(repo horse.Repository) *HorseService {
	logger := logging.ConsoleLogger(logrus.ErrorLevel)
	engine := authz.NewEngine(logger, nil)
	engine.Register(
		authz.NewPolicy(PolicyHorsesView, authz.TenantMembership{MinRole: userAggregate.RoleMember}),
		authz.NewPolicy(PolicyHorsesManage, authz.TenantMembership{MinRole: userAggregate.RoleManager}),
		authz.NewPolicy(PolicyHorsesReport, authz.CrossTenant{}),
	)
	return NewHorseService(repo, eventbus.NewEventPublisher(logger), engine)
}

func tenantContext(t *testing.T, tenantID uuid.UUID) context.Context {
	t.Helper()
	ctx, err := composables.WithTenant(context.Background(), &composables.Tenant{
		ID:        tenantID,
		Name:      "Meadow Haven",
		Subdomain: "meadow",
		Status:    tenant.StatusActive,
		Config:    tenant.DefaultConfig(),
	})
	require.NoError(t, err)
	return ctx
}

func memberContext(t *testing.T, tenantID uuid.UUID, role userAggregate.Role) context.Context {
	t.Helper()
	u := userAggregate.New("Sam", "Harper", "sam@meadow.test",
		userAggregate.WithTenantID(tenantID),
		userAggregate.WithRole(role),
	)
	return composables.WithUser(tenantContext(t, tenantID), u)
}

func TestHorseService_ListRequiresMembership(t *testing.T) {
	tenantID := uuid.New()
	repo := &fakeHorseRepo{horses: []*horse.Horse{horse.New("Clover", horse.WithTenantID(tenantID))}}
	svc := newTestHorseService(repo)

	horses, err := svc.List(memberContext(t, tenantID, userAggregate.RoleMember))
	require.NoError(t, err)
	require.Len(t, horses, 1)
}

func TestHorseService_ListDeniesAnonymous(t *testing.T) {
	svc := newTestHorseService(&fakeHorseRepo{})

	_, err := svc.List(tenantContext(t, uuid.New()))
	require.Error(t, err)

	var base *serrors.BaseError
	require.ErrorAs(t, err, &base)
	require.Equal(t, serrors.CodePermissionDenied, base.Code)
}

func TestHorseService_ListDeniesForeignMember(t *testing.T) {
	tenantID := uuid.New()
	svc := newTestHorseService(&fakeHorseRepo{})

	// User whose home tenant differs from the active one.
	u := userAggregate.New("Alex", "Reed", "alex@other.test",
		userAggregate.WithTenantID(uuid.New()),
		userAggregate.WithRole(userAggregate.RoleAdmin),
	)
	ctx := composables.WithUser(tenantContext(t, tenantID), u)

	_, err := svc.List(ctx)
	require.Error(t, err)

	var base *serrors.BaseError
	require.ErrorAs(t, err, &base)
	require.Equal(t, serrors.CodeTenantAccessDenied, base.Code)
}

func TestHorseService_ManageRequiresManagerRole(t *testing.T) {
	tenantID := uuid.New()
	svc := newTestHorseService(&fakeHorseRepo{})

	err := svc.Delete(memberContext(t, tenantID, userAggregate.RoleMember), uuid.New())
	require.Error(t, err)

	var base *serrors.BaseError
	require.ErrorAs(t, err, &base)
	require.Equal(t, serrors.CodePermissionDenied, base.Code)
}

func TestHorseService_ReportRequiresSystemAdmin(t *testing.T) {
	tenantID := uuid.New()
	repo := &fakeHorseRepo{}
	svc := newTestHorseService(repo)

	_, err := svc.ListAllTenants(memberContext(t, tenantID, userAggregate.RoleAdmin))
	require.Error(t, err)

	var base *serrors.BaseError
	require.ErrorAs(t, err, &base)
	require.Equal(t, serrors.CodeCrossTenantBlocked, base.Code)
	require.Empty(t, repo.allTenantsCalls)
}

func TestHorseService_ReportAllowedForSystemAdmin(t *testing.T) {
	tenantID := uuid.New()
	repo := &fakeHorseRepo{}
	svc := newTestHorseService(repo)

	admin := userAggregate.New("Ops", "Admin", "ops@rescueranger.test",
		userAggregate.WithTenantID(tenantID),
		userAggregate.WithSystemAdmin(true),
	)
	ctx := composables.WithUser(tenantContext(t, tenantID), admin)

	_, err := svc.ListAllTenants(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"horses.report"}, repo.allTenantsCalls)
}
