package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/config"
	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/rabbitmq"
	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/security"
	transportgrpc "github.com/Marcin-Purol/Payment-Gateway/internal/transport/grpc"
	grpcinterceptors "github.com/Marcin-Purol/Payment-Gateway/internal/transport/grpc/interceptors"
	"github.com/Marcin-Purol/Payment-Gateway/internal/transport/http/middleware"
	"github.com/Marcin-Purol/Payment-Gateway/internal/transport/http/routes"
	"github.com/Marcin-Purol/Payment-Gateway/internal/usecase"
)

// Application is the API process: HTTP, the gRPC operations surface and the provisioning producer.
type Application struct {
	cfg        *config.AppConfig
	infra      *infrastructure
	engine     *gin.Engine
	logger     *zap.Logger
	producer   *rabbitmq.Producer
	grpcServer *transportgrpc.Server
	grpcAddr   string
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	infra, err := newInfrastructure(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log := infra.logger
	repos := infra.repos

	tokens, err := security.NewTokenIssuer(security.TokenIssuerConfig{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		Issuer:        cfg.JWT.Issuer,
		AccessTTL:     cfg.JWT.AccessTokenTTL,
		RefreshTTL:    cfg.JWT.RefreshTokenTTL,
	})
	if err != nil {
		infra.close(context.Background())
		return nil, fmt.Errorf("init token issuer: %w", err)
	}

	producer := rabbitmq.NewProducer(infra.broker, cfg.RabbitMQ, infra.metrics, log)

	authService := usecase.NewAuthService(repos.Merchants, repos.Users, repos.Roles, infra.hasher, tokens, log)
	authorizationService := usecase.NewAuthorizationService(repos.Users, repos.Roles)
	provisioningService := usecase.NewProvisioningService(
		repos.Merchants,
		repos.Users,
		infra.claims,
		producer,
		cfg.Redis.ProvisioningPending,
		log,
	)
	staffService := usecase.NewStaffService(repos.Users, repos.Roles, authorizationService, infra.hasher, log)
	transactionService := usecase.NewTransactionService(
		repos.Store,
		repos.Shops,
		repos.Transactions,
		authorizationService,
		infra.events,
		cfg.Payments.LinkBaseURL,
		log,
	)

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: infra.registry})
	if err != nil {
		infra.close(context.Background())
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:   cfg,
		Logger:   log,
		Metrics:  httpMetrics,
		Gatherer: infra.registry,
		Database: infra.pool,
		Cache:    infra.redis,
		Broker:   infra.broker,
		Services: routes.ServiceSet{
			Auth:          authService,
			Authorization: authorizationService,
			Provisioning:  provisioningService,
			Staff:         staffService,
			Transactions:  transactionService,
		},
	})

	application := &Application{
		cfg:      cfg,
		infra:    infra,
		engine:   engine,
		logger:   log,
		producer: producer,
	}

	if cfg.GRPC.Enabled {
		grpcMetrics, err := grpcinterceptors.NewGRPCMetrics(grpcinterceptors.GRPCMetricsOptions{Registerer: infra.registry})
		if err != nil {
			infra.close(context.Background())
			return nil, fmt.Errorf("init grpc metrics: %w", err)
		}
		application.grpcServer = transportgrpc.NewServer(transportgrpc.ServerDependencies{
			Logger:         log,
			Metrics:        grpcMetrics,
			TracerProvider: infra.tracer.Provider(),
			Probes: map[string]transportgrpc.Probe{
				"database": infra.pool.Ping,
				"redis":    infra.redis.HealthCheck,
				"rabbitmq": infra.broker.HealthCheck,
			},
		})
		application.grpcAddr = fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
	}

	return application, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer a.infra.close(context.Background())
	defer func() {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("failed to close provisioning producer", zap.Error(err))
		}
	}()

	grpcErrCh := make(chan error, 1)
	if a.grpcServer != nil {
		lis, err := net.Listen("tcp", a.grpcAddr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		a.logger.Info("starting gRPC server", zap.String("address", a.grpcAddr))
		go func() {
			defer func() {
				if r := recover(); r != nil {
					a.logger.Error("gRPC server panicked", zap.Any("panic", r))
					grpcErrCh <- fmt.Errorf("grpc server panicked: %v", r)
				}
			}()
			if err := a.grpcServer.Serve(ctx, lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				a.logger.Error("gRPC server error", zap.Error(err))
				grpcErrCh <- fmt.Errorf("run grpc server: %w", err)
			}
		}()
		defer a.grpcServer.GracefulStop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting payment gateway API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return shutdownHTTP(srv)
	case err := <-serverErrCh:
		return err
	case err := <-grpcErrCh:
		_ = shutdownHTTP(srv)
		return err
	}
}

func shutdownHTTP(srv *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}
