package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/port"
	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/config"
	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/database"
	kafkainfra "github.com/Marcin-Purol/Payment-Gateway/internal/infra/kafka"
	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/logger"
	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/rabbitmq"
	redisinfra "github.com/Marcin-Purol/Payment-Gateway/internal/infra/redis"
	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/security"
	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/telemetry"
	postgresrepo "github.com/Marcin-Purol/Payment-Gateway/internal/repository/postgres"
	redisrepo "github.com/Marcin-Purol/Payment-Gateway/internal/repository/redis"
)

// infrastructure holds the connections shared by the API and worker processes.
type infrastructure struct {
	logger   *zap.Logger
	tracer   *telemetry.TracerProvider
	registry *prometheus.Registry
	metrics  *telemetry.ProvisioningMetrics

	pool   *pgxpool.Pool
	repos  *postgresrepo.Repositories
	redis  *redisinfra.Client
	claims *redisrepo.ProvisioningClaimRepository
	broker *rabbitmq.ConnectionManager
	kafka  *kafkainfra.Producer
	events port.EventPublisher
	hasher *security.Argon2Hasher
}

func newInfrastructure(ctx context.Context, cfg *config.AppConfig) (_ *infrastructure, err error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	infra := &infrastructure{logger: log}
	defer func() {
		if err != nil {
			infra.close(context.Background())
		}
	}()

	infra.tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, cfg.App.Version, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	infra.registry = prometheus.NewRegistry()
	infra.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	infra.metrics, err = telemetry.NewProvisioningMetrics(infra.registry)
	if err != nil {
		return nil, fmt.Errorf("init provisioning metrics: %w", err)
	}

	infra.pool, err = database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	infra.repos = postgresrepo.NewRepositories(infra.pool)

	infra.redis, err = redisinfra.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}
	infra.claims = redisrepo.NewProvisioningClaimRepository(infra.redis.Client(), cfg.Redis.ProvisioningPrefix)
	if err = infra.registry.Register(redisinfra.NewPoolCollector(infra.redis)); err != nil {
		return nil, fmt.Errorf("register redis pool collector: %w", err)
	}

	infra.broker = rabbitmq.NewConnectionManager(cfg.RabbitMQ, log)
	if err = infra.broker.Open(ctx); err != nil {
		return nil, fmt.Errorf("init rabbitmq: %w", err)
	}

	infra.events, infra.kafka = newEventPublisher(cfg, infra.registry, log)

	argonCfg := security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}
	if argonCfg == (security.Argon2Config{}) {
		argonCfg = security.DefaultArgon2Config()
	}
	infra.hasher, err = security.NewArgon2Hasher(argonCfg, cfg.Password.HashWorkers)
	if err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	return infra, nil
}

func newEventPublisher(cfg *config.AppConfig, reg prometheus.Registerer, log *zap.Logger) (port.EventPublisher, *kafkainfra.Producer) {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Info("kafka brokers not configured, using stub publisher")
		return kafkainfra.NewStubPublisher(log), nil
	}

	producer, err := kafkainfra.NewProducer(cfg.Kafka, reg, log)
	if err != nil {
		log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(log), nil
	}
	log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, cfg.App, log), producer
}

// close releases connections in reverse order of acquisition.
func (i *infrastructure) close(ctx context.Context) {
	if i.kafka != nil {
		if err := i.kafka.Close(); err != nil {
			i.logger.Warn("failed to close kafka producer", zap.Error(err))
		}
	}
	if i.broker != nil {
		if err := i.broker.Close(); err != nil {
			i.logger.Warn("failed to close rabbitmq connection", zap.Error(err))
		}
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.pool != nil {
		i.pool.Close()
	}
	if err := i.tracer.Shutdown(ctx); err != nil {
		i.logger.Warn("failed to shut down tracer provider", zap.Error(err))
	}
	_ = i.logger.Sync()
}
