package composables

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/rescueranger/rescueranger/modules/core/domain/entities/tenant"
	"github.com/rescueranger/rescueranger/pkg/constants"
	"github.com/rescueranger/rescueranger/pkg/serrors"
)

var (
	ErrNoTenant      = errors.New("no tenant found in context")
	ErrInvalidTenant = errors.New("tenant is missing id or subdomain")
)

// Tenant is the request-scoped projection of a tenant record. It exists for
// at most one request, is never persisted, and is the only channel through
// which downstream code learns which tenant a request belongs to.
type Tenant struct {
	ID        uuid.UUID
	Name      string
	Subdomain string
	Status    tenant.Status
	IsSystem  bool
	Config    tenant.Config
}

// NewTenant projects a tenant entity into its request-scoped form.
func NewTenant(entity *tenant.Tenant) *Tenant {
	return &Tenant{
		ID:        entity.ID(),
		Name:      entity.Name(),
		Subdomain: entity.Subdomain(),
		Status:    entity.Status(),
		IsSystem:  entity.IsSystem(),
		Config:    entity.Config(),
	}
}

func (t *Tenant) IsValid() bool {
	return t != nil && t.ID != uuid.Nil && t.Subdomain != ""
}

func (t *Tenant) CanAccess() bool {
	return t.IsValid() && t.Status.CanAccess()
}

// ValidateAccess re-checks accessibility of the held tenant. Downstream
// layers call this defensively instead of trusting that the resolver already
// did.
func (t *Tenant) ValidateAccess() error {
	if !t.IsValid() {
		return ErrNoTenant
	}
	if !t.Status.CanAccess() {
		return serrors.NewTenantAccessDeniedError(t.Subdomain, t.Status.String())
	}
	return nil
}

// WithTenant attaches a validated tenant to the context. Tenants missing an
// ID or subdomain are rejected rather than silently carried.
func WithTenant(ctx context.Context, t *Tenant) (context.Context, error) {
	if !t.IsValid() {
		return ctx, ErrInvalidTenant
	}
	return context.WithValue(ctx, constants.TenantKey, t), nil
}

// ClearTenant shadows any tenant held by the context. Reject paths call this
// before writing a response so no handler further down can observe a tenant
// that failed validation.
func ClearTenant(ctx context.Context) context.Context {
	return context.WithValue(ctx, constants.TenantKey, (*Tenant)(nil))
}

// UseTenant returns the tenant from the context, or ErrNoTenant when the
// request is unresolved.
func UseTenant(ctx context.Context) (*Tenant, error) {
	t, ok := ctx.Value(constants.TenantKey).(*Tenant)
	if !ok || !t.IsValid() {
		return nil, ErrNoTenant
	}
	return t, nil
}

// UseTenantID returns the active tenant's ID from the context.
func UseTenantID(ctx context.Context) (uuid.UUID, error) {
	t, err := UseTenant(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	return t.ID, nil
}
