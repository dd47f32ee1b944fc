package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"

	"github.com/rescueranger/rescueranger/modules/core/services"
	"github.com/rescueranger/rescueranger/pkg/application"
	"github.com/rescueranger/rescueranger/pkg/configuration"
	"github.com/rescueranger/rescueranger/pkg/constants"
	"github.com/rescueranger/rescueranger/pkg/httpapi"
	"github.com/rescueranger/rescueranger/pkg/metrics"
	"github.com/rescueranger/rescueranger/pkg/middleware"
	"github.com/rescueranger/rescueranger/pkg/server"
)

type DefaultOptions struct {
	Logger        *logrus.Logger
	Configuration *configuration.Configuration
	Application   application.Application
	Pool          *pgxpool.Pool
}

// Default assembles the middleware stack. Order matters: logging first so
// every later stage has a request logger and span, then authentication,
// then tenant resolution, then access auditing around the handlers.
func Default(options *DefaultOptions) (*server.HTTPServer, error) {
	app := options.Application
	conf := options.Configuration

	tenantService := app.Service(services.TenantService{}).(*services.TenantService)
	authService := app.Service(services.AuthService{}).(*services.AuthService)
	auditService := app.Service(services.AuditService{}).(*services.AuditService)

	exemptPaths := []string{"/health"}
	if conf.Prometheus.Enabled {
		exemptPaths = append(exemptPaths, conf.Prometheus.Path)
		app.RegisterControllers(metrics.NewPrometheusController(conf.Prometheus.Path))
	}

	middlewares := []mux.MiddlewareFunc{
		middleware.WithLogger(options.Logger),

		middleware.TracedMiddleware("provide"),
		middleware.Provide(constants.AppKey, app),
		middleware.Provide(constants.PoolKey, options.Pool),

		middleware.TracedMiddleware("cors"),
		middleware.Cors("http://localhost:3000", "ws://localhost:3000"),
	}

	if conf.RateLimit.Enabled {
		var store limiter.Store
		var err error
		switch conf.RateLimit.Storage {
		case "redis":
			store, err = middleware.NewRedisStore(conf.RateLimit.RedisURL)
			if err != nil {
				options.Logger.WithError(err).Warn("redis rate limit store unavailable, falling back to memory")
				store = middleware.NewMemoryStore()
			}
		default:
			store = middleware.NewMemoryStore()
		}
		middlewares = append(middlewares,
			middleware.TracedMiddleware("rateLimit"),
			middleware.RateLimit(middleware.RateLimitConfig{
				RequestsPerPeriod: conf.RateLimit.GlobalRPS,
				Store:             store,
			}),
		)
	}

	middlewares = append(middlewares,
		middleware.TracedMiddleware("requestParams"),
		middleware.RequestParams(),

		middleware.TracedMiddleware("tenantResolver"),
		middleware.TenantResolver(middleware.TenantResolverOptions{
			Directory:   tenantService,
			Audit:       auditService,
			Logger:      options.Logger,
			Tenant:      conf.Tenant,
			ExemptPaths: exemptPaths,
			Production:  conf.IsProduction(),
		}),

		middleware.TracedMiddleware("authorize"),
		middleware.Authorize(authService),

		middleware.TracedMiddleware("auditAccess"),
		middleware.AuditAccess(auditService),
	)

	app.RegisterMiddleware(middlewares...)

	return server.NewHTTPServer(app, notFound(), methodNotAllowed()), nil
}

func notFound() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = httpapi.WriteError(w, http.StatusNotFound, "NOT_FOUND", "no such endpoint")
	})
}

func methodNotAllowed() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = httpapi.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed for this endpoint")
	})
}
