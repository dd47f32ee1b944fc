package rescue

import (
	"github.com/rescueranger/rescueranger/modules/core/domain/aggregates/user"
	"github.com/rescueranger/rescueranger/modules/rescue/infrastructure/persistence"
	"github.com/rescueranger/rescueranger/modules/rescue/presentation/controllers"
	"github.com/rescueranger/rescueranger/modules/rescue/services"
	"github.com/rescueranger/rescueranger/pkg/application"
	"github.com/rescueranger/rescueranger/pkg/authz"
	"github.com/rescueranger/rescueranger/pkg/isolation"
)

func NewModule() application.Module {
	return &Module{}
}

type Module struct{}

func (m *Module) Name() string {
	return "rescue"
}

func (m *Module) Register(app application.Application) error {
	engine := app.Service(authz.Engine{}).(*authz.Engine)
	enforcer := app.Service(isolation.Enforcer{}).(*isolation.Enforcer)

	engine.Register(
		authz.NewPolicy(services.PolicyHorsesView, authz.TenantMembership{MinRole: user.RoleMember}),
		authz.NewPolicy(services.PolicyHorsesManage, authz.TenantMembership{MinRole: user.RoleManager}),
		authz.NewPolicy(services.PolicyHorsesReport, authz.CrossTenant{}),
	)

	horseRepo, err := persistence.NewHorseRepository(enforcer)
	if err != nil {
		return err
	}

	app.RegisterServices(
		services.NewHorseService(horseRepo, app.EventPublisher(), engine),
	)
	app.RegisterControllers(
		controllers.NewHorsesController(app),
	)
	return nil
}
