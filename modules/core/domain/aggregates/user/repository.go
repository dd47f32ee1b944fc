package user

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, u *User) (*User, error)
	Update(ctx context.Context, u *User) (*User, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// CountByTenant reads durable storage; used to re-check the max-users
	// limit inside the creating transaction.
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*User, error)
}
