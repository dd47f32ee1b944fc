package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/rescueranger/rescueranger/modules/core/domain/aggregates/user"
	"github.com/rescueranger/rescueranger/modules/core/infrastructure/cache"
	"github.com/rescueranger/rescueranger/modules/core/infrastructure/persistence"
	"github.com/rescueranger/rescueranger/modules/core/services"
	"github.com/rescueranger/rescueranger/pkg/authz"
	"github.com/rescueranger/rescueranger/pkg/composables"
	"github.com/rescueranger/rescueranger/pkg/configuration"
	"github.com/rescueranger/rescueranger/pkg/eventbus"
)

// runtime wires just enough of the application for offline administration:
// the tenant directory, the user service, and the policies they enforce.
type runtime struct {
	pool    *pgxpool.Pool
	tenants *services.TenantService
	users   user.Repository
}

func newRuntime(ctx context.Context) (*runtime, error) {
	conf := configuration.Use()
	logger := conf.Logger()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(connectCtx, conf.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("db connect failed: %w", err)
	}

	auditService := services.NewAuditService(persistence.NewAuditRepository(), logger, conf.Audit)
	engine := authz.NewEngine(logger, auditService)
	engine.Register(
		authz.NewPolicy(services.PolicyTenantsManage, authz.CrossTenant{}),
	)

	redisClient := redis.NewClient(&redis.Options{Addr: conf.RedisURL})
	if opts, parseErr := redis.ParseURL(conf.RedisURL); parseErr == nil {
		redisClient = redis.NewClient(opts)
	}

	tenantService := services.NewTenantService(
		persistence.NewTenantRepository(),
		cache.NewRedisCache(redisClient, "rescueranger"),
		eventbus.NewEventPublisher(logger),
		engine,
		logger,
		conf.Tenant,
	)

	return &runtime{
		pool:    pool,
		tenants: tenantService,
		users:   persistence.NewUserRepository(),
	}, nil
}

func (rt *runtime) Close() {
	rt.pool.Close()
}

// operatorContext impersonates the offline operator: a system administrator
// outside any tenant, the same shape policies see for cross-tenant callers.
func (rt *runtime) operatorContext(ctx context.Context) context.Context {
	ctx = composables.WithPool(ctx, rt.pool)
	operator := user.New(
		"System", "Operator", "superadmin@localhost",
		user.WithRole(user.RoleAdmin),
		user.WithSystemAdmin(true),
	)
	return composables.WithUser(ctx, operator)
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
