package services

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"github.com/rescueranger/rescueranger/modules/core/domain/aggregates/user"
	"github.com/rescueranger/rescueranger/pkg/authz"
	"github.com/rescueranger/rescueranger/pkg/composables"
	"github.com/rescueranger/rescueranger/pkg/eventbus"
	"github.com/rescueranger/rescueranger/pkg/serrors"
)

// User management policies. Invite, manage and view require Manager;
// role assignment and removal require Admin.
const (
	PolicyUsersView   = "users.view"
	PolicyUsersInvite = "users.invite"
	PolicyUsersManage = "users.manage"
	PolicyUsersRoles  = "users.assign-role"
	PolicyUsersRemove = "users.remove"
)

type UserService struct {
	repo      user.Repository
	publisher eventbus.EventBus
	engine    *authz.Engine
}

func NewUserService(repo user.Repository, publisher eventbus.EventBus, engine *authz.Engine) *UserService {
	return &UserService{
		repo:      repo,
		publisher: publisher,
		engine:    engine,
	}
}

func (s *UserService) authorize(ctx context.Context, policy string) error {
	return s.engine.Authorize(ctx, policy, authz.UsePrincipal(ctx))
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	if err := s.authorize(ctx, PolicyUsersView); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *UserService) List(ctx context.Context) ([]*user.User, error) {
	if err := s.authorize(ctx, PolicyUsersView); err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByTenant(ctx, tenantID)
}

// Invite creates a user in the active tenant. The tenant's max-users limit
// is re-checked against durable storage inside the creating transaction so
// a stale cached tenant record can never admit one user too many.
func (s *UserService) Invite(ctx context.Context, data *user.User) (*user.User, error) {
	if err := s.authorize(ctx, PolicyUsersInvite); err != nil {
		return nil, err
	}
	t, err := composables.UseTenant(ctx)
	if err != nil {
		return nil, err
	}

	data = user.New(
		data.FirstName(),
		data.LastName(),
		data.Email(),
		user.WithID(data.ID()),
		user.WithTenantID(t.ID),
		user.WithRole(data.Role()),
		user.WithPasswordHash(data.PasswordHash()),
	)

	var created *user.User
	err = composables.InTx(ctx, func(txCtx context.Context) error {
		count, err := s.repo.CountByTenant(txCtx, t.ID)
		if err != nil {
			return err
		}
		if limit := t.Config.MaxUsers; limit > 0 && count >= int64(limit) {
			return serrors.NewTenantLimitExceededError("max_users").WithTemplateData(map[string]string{
				"limit": strconv.Itoa(limit),
			})
		}
		created, err = s.repo.Create(txCtx, data)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(user.NewCreatedEvent(ctx, created))
	return created, nil
}

func (s *UserService) Update(ctx context.Context, data *user.User) (*user.User, error) {
	if err := s.authorize(ctx, PolicyUsersManage); err != nil {
		return nil, err
	}
	if err := s.ensureSameTenant(ctx, data.TenantID()); err != nil {
		return nil, err
	}

	var updated *user.User
	err := composables.InTx(ctx, func(txCtx context.Context) error {
		var err error
		updated, err = s.repo.Update(txCtx, data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *UserService) AssignRole(ctx context.Context, id uuid.UUID, role user.Role) (*user.User, error) {
	if err := s.authorize(ctx, PolicyUsersRoles); err != nil {
		return nil, err
	}
	if !role.IsValid() {
		return nil, serrors.NewError(serrors.CodeInternal, "unknown role "+string(role))
	}

	var updated *user.User
	err := composables.InTx(ctx, func(txCtx context.Context) error {
		u, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if err := s.ensureSameTenant(ctx, u.TenantID()); err != nil {
			return err
		}
		u.SetRole(role)
		updated, err = s.repo.Update(txCtx, u)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *UserService) Remove(ctx context.Context, id uuid.UUID) error {
	if err := s.authorize(ctx, PolicyUsersRemove); err != nil {
		return err
	}
	return composables.InTx(ctx, func(txCtx context.Context) error {
		u, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if err := s.ensureSameTenant(ctx, u.TenantID()); err != nil {
			return err
		}
		return s.repo.Delete(txCtx, id)
	})
}

func (s *UserService) ensureSameTenant(ctx context.Context, tenantID uuid.UUID) error {
	active, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	if tenantID != active {
		return serrors.NewCrossTenantViolationError("users.manage")
	}
	return nil
}
