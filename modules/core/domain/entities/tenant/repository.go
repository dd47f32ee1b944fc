package tenant

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*Tenant, error)
	Create(ctx context.Context, t *Tenant) (*Tenant, error)
	Update(ctx context.Context, t *Tenant) (*Tenant, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, reason string) (*Tenant, error)
	// IsSubdomainAvailable checks uniqueness against durable storage, never
	// the cache. excludeID skips the tenant being updated.
	IsSubdomainAvailable(ctx context.Context, subdomain string, excludeID uuid.UUID) (bool, error)
	List(ctx context.Context) ([]*Tenant, error)
	// Delete soft-deletes by moving the tenant to PendingDeletion.
	Delete(ctx context.Context, id uuid.UUID) error
}
