package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/config"
	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/rabbitmq"
	"github.com/Marcin-Purol/Payment-Gateway/internal/transport/http/handlers"
	"github.com/Marcin-Purol/Payment-Gateway/internal/usecase"
)

// WorkerApplication is the provisioning consumer process. Besides the queue it serves
// health and metrics endpoints for the orchestrator.
type WorkerApplication struct {
	cfg    *config.AppConfig
	infra  *infrastructure
	worker *rabbitmq.Worker
	ops    *gin.Engine
	logger *zap.Logger
}

func NewWorker(ctx context.Context, cfg *config.AppConfig) (*WorkerApplication, error) {
	infra, err := newInfrastructure(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log := infra.logger

	handler := usecase.NewProvisioningHandler(
		infra.hasher,
		infra.repos.Accounts,
		infra.claims,
		infra.events,
		cfg.Provisioning.DefaultShopName,
		log,
	)
	worker := rabbitmq.NewWorker(infra.broker, cfg.RabbitMQ, handler, infra.metrics, log)

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	ops := gin.New()
	ops.Use(gin.Recovery())
	handlers.NewHealthHandler(cfg.App.Env, cfg.App.Version,
		handlers.WithHealthLogger(log),
		handlers.WithReadinessCheck("database", infra.pool.Ping),
		handlers.WithReadinessCheck("redis", infra.redis.HealthCheck),
		handlers.WithReadinessCheck("rabbitmq", infra.broker.HealthCheck),
	).RegisterRoutes(ops)
	ops.GET("/metrics", gin.WrapH(promhttp.HandlerFor(infra.registry, promhttp.HandlerOpts{})))

	return &WorkerApplication{
		cfg:    cfg,
		infra:  infra,
		worker: worker,
		ops:    ops,
		logger: log,
	}, nil
}

// Run consumes until ctx ends. In-flight messages are settled before the connections close.
func (w *WorkerApplication) Run(ctx context.Context) error {
	defer w.infra.close(context.Background())

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", w.cfg.Worker.Host, w.cfg.Worker.Port),
		Handler:           w.ops,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.logger.Error("worker ops server error", zap.Error(err))
		}
	}()
	defer func() { _ = shutdownHTTP(srv) }()

	w.logger.Info("starting provisioning worker",
		zap.String("env", w.cfg.App.Env),
		zap.String("queue", w.cfg.RabbitMQ.Queue),
		zap.Int("consumers", w.cfg.RabbitMQ.Consumers),
		zap.String("ops_address", srv.Addr),
	)

	if err := w.worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run worker: %w", err)
	}
	return nil
}
