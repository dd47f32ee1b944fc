package authz

import (
	"context"

	"github.com/google/uuid"

	"github.com/rescueranger/rescueranger/modules/core/domain/aggregates/user"
	"github.com/rescueranger/rescueranger/pkg/composables"
)

// Principal is the caller identity evaluated against policies. It is derived
// from the authenticated user; an absent principal means anonymous.
type Principal struct {
	UserID        uuid.UUID
	Email         string
	TenantID      uuid.UUID
	Role          user.Role
	IsSystemAdmin bool
	// Resources are the named resource categories granted to the caller,
	// e.g. "Horse" or "Volunteer".
	Resources map[string]bool
}

func (p *Principal) HasResource(category string) bool {
	if p == nil {
		return false
	}
	return p.Resources[category]
}

// PrincipalFromUser projects a user aggregate into a principal. Resource
// grants default to allowing everything for admins and nothing extra for
// other roles; callers add grants explicitly.
func PrincipalFromUser(u *user.User) *Principal {
	if u == nil {
		return nil
	}
	return &Principal{
		UserID:        u.ID(),
		Email:         u.Email(),
		TenantID:      u.TenantID(),
		Role:          u.Role(),
		IsSystemAdmin: u.IsSystemAdmin(),
		Resources:     map[string]bool{},
	}
}

// UsePrincipal builds the principal for the authenticated user on the
// context, or nil for anonymous requests.
func UsePrincipal(ctx context.Context) *Principal {
	u, err := composables.UseUser(ctx)
	if err != nil {
		return nil
	}
	return PrincipalFromUser(u)
}
