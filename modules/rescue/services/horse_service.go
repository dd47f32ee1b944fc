package services

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"github.com/rescueranger/rescueranger/modules/rescue/domain/entities/horse"
	"github.com/rescueranger/rescueranger/pkg/authz"
	"github.com/rescueranger/rescueranger/pkg/composables"
	"github.com/rescueranger/rescueranger/pkg/eventbus"
	"github.com/rescueranger/rescueranger/pkg/serrors"
)

const (
	PolicyHorsesView   = "horses.view"
	PolicyHorsesManage = "horses.manage"
	PolicyHorsesReport = "horses.report"
)

type HorseService struct {
	repo      horse.Repository
	publisher eventbus.EventBus
	engine    *authz.Engine
}

func NewHorseService(repo horse.Repository, publisher eventbus.EventBus, engine *authz.Engine) *HorseService {
	return &HorseService{
		repo:      repo,
		publisher: publisher,
		engine:    engine,
	}
}

func (s *HorseService) authorize(ctx context.Context, policy string) error {
	return s.engine.Authorize(ctx, policy, authz.UsePrincipal(ctx))
}

func (s *HorseService) GetByID(ctx context.Context, id uuid.UUID) (*horse.Horse, error) {
	if err := s.authorize(ctx, PolicyHorsesView); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *HorseService) List(ctx context.Context) ([]*horse.Horse, error) {
	if err := s.authorize(ctx, PolicyHorsesView); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

// ListAllTenants is the cross-tenant reporting surface. The repository
// audits the escape; the policy restricts it to system administrators.
func (s *HorseService) ListAllTenants(ctx context.Context) ([]*horse.Horse, error) {
	if err := s.authorize(ctx, PolicyHorsesReport); err != nil {
		return nil, err
	}
	return s.repo.ListAllTenants(ctx, "horses.report")
}

// Intake registers a horse in the active tenant. The tenant's max-horses
// limit is advisory in the cached record and binding here: the count is
// re-read from durable storage inside the creating transaction.
func (s *HorseService) Intake(ctx context.Context, data *horse.Horse) (*horse.Horse, error) {
	if err := s.authorize(ctx, PolicyHorsesManage); err != nil {
		return nil, err
	}
	t, err := composables.UseTenant(ctx)
	if err != nil {
		return nil, err
	}

	var created *horse.Horse
	err = composables.InTx(ctx, func(txCtx context.Context) error {
		count, err := s.repo.Count(txCtx)
		if err != nil {
			return err
		}
		if limit := t.Config.MaxHorses; limit > 0 && count >= int64(limit) {
			return serrors.NewTenantLimitExceededError("max_horses").WithTemplateData(map[string]string{
				"limit": strconv.Itoa(limit),
			})
		}
		created, err = s.repo.Create(txCtx, data)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(horse.NewIntakeEvent(ctx, created))
	return created, nil
}

func (s *HorseService) Update(ctx context.Context, data *horse.Horse) (*horse.Horse, error) {
	if err := s.authorize(ctx, PolicyHorsesManage); err != nil {
		return nil, err
	}

	var updated *horse.Horse
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

func (s *HorseService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.authorize(ctx, PolicyHorsesManage); err != nil {
		return err
	}
	return composables.InTx(ctx, func(txCtx context.Context) error {
		return s.repo.Delete(txCtx, id)
	})
}
