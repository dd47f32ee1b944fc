package horse

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Horse, error)
	List(ctx context.Context) ([]*Horse, error)
	// ListAllTenants is the audited reporting escape; only system-admin
	// paths may reach it.
	ListAllTenants(ctx context.Context, operation string) ([]*Horse, error)
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, h *Horse) (*Horse, error)
	Update(ctx context.Context, h *Horse) (*Horse, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
