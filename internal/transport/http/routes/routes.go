package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/domain"
	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/config"
	"github.com/Marcin-Purol/Payment-Gateway/internal/transport/http/handlers"
	"github.com/Marcin-Purol/Payment-Gateway/internal/transport/http/middleware"
)

// AuthService verifies credentials and access tokens.
type AuthService interface {
	middleware.Authenticator
	handlers.Authenticator
}

// AuthorizationService resolves roles and owning merchants.
type AuthorizationService interface {
	middleware.RoleAuthorizer
	handlers.RoleResolver
}

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth          AuthService
	Authorization AuthorizationService
	Provisioning  handlers.AccountScheduler
	Staff         handlers.StaffManager
	Transactions  handlers.TransactionManager
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config   *config.AppConfig
	Logger   *zap.Logger
	Metrics  *middleware.HTTPMetrics
	Gatherer prometheus.Gatherer
	Services ServiceSet
	Database DatabaseChecker
	Cache    HealthChecker
	Broker   HealthChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// HealthChecker exposes readiness behaviour for the cache and the message broker.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.AppConfig{}
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	production := cfg.App.IsProduction()
	if production {
		gin.SetMode(gin.ReleaseMode)
	}
	handlers.UseJSONFieldNames()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(deps.Metrics.Handler())
	r.Use(middleware.CORS(cfg.App.AllowedOrigins))

	healthOptions := []handlers.HealthOption{handlers.WithHealthLogger(log)}
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	if deps.Broker != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("rabbitmq", deps.Broker.HealthCheck))
	}
	handlers.NewHealthHandler(cfg.App.Env, cfg.App.Version, healthOptions...).RegisterRoutes(r)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	errs := handlers.NewErrorTranslator(production, log)
	svc := deps.Services
	session := middleware.Session(svc.Auth, log)

	api := r.Group("/api")
	{
		merchantHandler := handlers.NewMerchantHandler(
			svc.Auth,
			svc.Authorization,
			svc.Provisioning,
			svc.Staff,
			handlers.NewCredentialTransport(cfg.Auth.Mode, production),
			errs,
		)
		merchantHandler.RegisterRoutes(api.Group("/merchant"),
			session,
			middleware.Authorize(svc.Authorization, log, domain.RoleRepresentative),
		)

		transactionHandler := handlers.NewTransactionHandler(svc.Transactions, errs)
		transactionHandler.RegisterRoutes(api.Group("/transaction"),
			session,
			middleware.Authorize(svc.Authorization, log, domain.RoleRepresentative, domain.RoleFinancial),
		)
	}

	if !production {
		handlers.RegisterSwagger(r)
	}

	return r
}
