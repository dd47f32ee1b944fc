package core

import (
	"github.com/redis/go-redis/v9"

	"github.com/rescueranger/rescueranger/modules/core/infrastructure/cache"
	"github.com/rescueranger/rescueranger/modules/core/infrastructure/persistence"
	"github.com/rescueranger/rescueranger/modules/core/presentation/controllers"
	"github.com/rescueranger/rescueranger/modules/core/services"
	"github.com/rescueranger/rescueranger/pkg/application"
	"github.com/rescueranger/rescueranger/pkg/authz"
	"github.com/rescueranger/rescueranger/pkg/configuration"
	"github.com/rescueranger/rescueranger/pkg/isolation"
)

type ModuleOptions struct {
	// Redis backs the tenant directory cache.
	Redis *redis.Client
}

func NewModule(opts *ModuleOptions) application.Module {
	if opts == nil {
		opts = &ModuleOptions{}
	}
	return &Module{options: opts}
}

type Module struct {
	options *ModuleOptions
}

func (m *Module) Name() string {
	return "core"
}

func (m *Module) Register(app application.Application) error {
	conf := configuration.Use()
	logger := app.Logger()

	tenantRepo := persistence.NewTenantRepository()
	userRepo := persistence.NewUserRepository()
	sessionRepo := persistence.NewSessionRepository()
	auditRepo := persistence.NewAuditRepository()

	auditService := services.NewAuditService(auditRepo, logger, conf.Audit)

	engine := authz.NewEngine(logger, auditService)
	engine.Register(
		authz.NewPolicy(services.PolicyTenantsManage, authz.CrossTenant{}),
		authz.NewPolicy(services.PolicyTenantSwitch, authz.CrossTenant{AllowTenantSwitch: true}),
		authz.NewPolicy(services.PolicyUsersView, authz.UserManagement{Action: authz.UserView}),
		authz.NewPolicy(services.PolicyUsersInvite, authz.UserManagement{Action: authz.UserInvite}),
		authz.NewPolicy(services.PolicyUsersManage, authz.UserManagement{Action: authz.UserManage}),
		authz.NewPolicy(services.PolicyUsersRoles, authz.UserManagement{Action: authz.UserAssignRole}),
		authz.NewPolicy(services.PolicyUsersRemove, authz.UserManagement{Action: authz.UserRemove}),
	)

	enforcer := isolation.NewEnforcer(isolation.NewRegistry(), auditService)

	redisCache := cache.NewRedisCache(m.options.Redis, "rescueranger")
	tenantService := services.NewTenantService(
		tenantRepo,
		redisCache,
		app.EventPublisher(),
		engine,
		logger,
		conf.Tenant,
	)
	authService := services.NewAuthService(
		userRepo,
		sessionRepo,
		tenantService,
		auditService,
		engine,
		logger,
	)

	app.RegisterServices(
		engine,
		enforcer,
		auditService,
		tenantService,
		authService,
		services.NewUserService(userRepo, app.EventPublisher(), engine),
	)

	app.RegisterControllers(
		controllers.NewHealthController(app, redisCache),
		controllers.NewAuthController(app),
		controllers.NewTenantsController(app),
		controllers.NewUsersController(app),
	)
	return nil
}
