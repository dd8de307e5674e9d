package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingSetting marks a required setting that was not provided.
var ErrMissingSetting = errors.New("config: required setting missing")

const (
	AuthModeCookie = "cookie"
	AuthModeBearer = "bearer"
)

type AppConfig struct {
	App          AppSettings          `mapstructure:"app"`
	Postgres     PostgresSettings     `mapstructure:"postgres"`
	Redis        RedisSettings        `mapstructure:"redis"`
	RabbitMQ     RabbitMQSettings     `mapstructure:"rabbitmq"`
	Kafka        KafkaSettings        `mapstructure:"kafka"`
	JWT          JWTSettings          `mapstructure:"jwt"`
	Auth         AuthSettings         `mapstructure:"auth"`
	GRPC         GRPCSettings         `mapstructure:"grpc"`
	Worker       WorkerSettings       `mapstructure:"worker"`
	Telemetry    TelemetrySettings    `mapstructure:"telemetry"`
	Argon2       Argon2Settings       `mapstructure:"argon2"`
	Password     PasswordSettings     `mapstructure:"password"`
	Provisioning ProvisioningSettings `mapstructure:"provisioning"`
	Payments     PaymentSettings      `mapstructure:"payments"`
}

type AppSettings struct {
	Name           string   `mapstructure:"name"`
	Env            string   `mapstructure:"env"`
	Version        string   `mapstructure:"version"`
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// IsProduction reports whether the service runs with production semantics.
func (s AppSettings) IsProduction() bool {
	return strings.EqualFold(s.Env, "production")
}

type GRPCSettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// WorkerSettings configures the operations listener of the provisioning worker process.
type WorkerSettings struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	Schema            string        `mapstructure:"schema"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures Redis connection and key layout.
type RedisSettings struct {
	Host                string        `mapstructure:"host"`
	Port                int           `mapstructure:"port"`
	DB                  int           `mapstructure:"db"`
	Password            string        `mapstructure:"password"`
	TLSEnabled          bool          `mapstructure:"tls_enabled"`
	ProvisioningPrefix  string        `mapstructure:"provisioning_prefix"`
	ProvisioningPending time.Duration `mapstructure:"provisioning_pending_ttl"`
}

// RabbitMQSettings configures the broker used by the provisioning pipeline.
type RabbitMQSettings struct {
	URL             string        `mapstructure:"url"`
	Exchange        string        `mapstructure:"exchange"`
	Queue           string        `mapstructure:"queue"`
	RoutingKey      string        `mapstructure:"routing_key"`
	DeadLetterQueue string        `mapstructure:"dead_letter_queue"`
	Delay           time.Duration `mapstructure:"delay"`
	ConnectAttempts int           `mapstructure:"connect_attempts"`
	ConnectDelay    time.Duration `mapstructure:"connect_delay"`
	PublishConfirm  bool          `mapstructure:"publish_confirm"`
	Consumers       int           `mapstructure:"consumers"`
}

// KafkaSettings configures the domain event producer.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

// Argon2Settings configures Argon2id password hashing parameters.
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

// PasswordSettings bounds concurrent password hashing.
type PasswordSettings struct {
	HashWorkers int64 `mapstructure:"hash_workers"`
}

type JWTSettings struct {
	AccessSecret    string        `mapstructure:"access_secret"`
	RefreshSecret   string        `mapstructure:"refresh_secret"`
	Issuer          string        `mapstructure:"issuer"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

// AuthSettings selects how credentials travel between client and API.
type AuthSettings struct {
	Mode string `mapstructure:"mode"`
}

type TelemetrySettings struct {
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// ProvisioningSettings describes the default shop created for new merchants.
type ProvisioningSettings struct {
	DefaultShopName string `mapstructure:"default_shop_name"`
}

// PaymentSettings configures payer-facing URLs.
type PaymentSettings struct {
	LinkBaseURL string `mapstructure:"link_base_url"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("PGW")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.version",
		"app.host",
		"app.port",
		"app.allowed_origins",
		"grpc.enabled",
		"grpc.host",
		"grpc.port",
		"worker.host",
		"worker.port",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.schema",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.connect_timeout",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.provisioning_prefix",
		"redis.provisioning_pending_ttl",
		"rabbitmq.url",
		"rabbitmq.exchange",
		"rabbitmq.queue",
		"rabbitmq.routing_key",
		"rabbitmq.dead_letter_queue",
		"rabbitmq.delay",
		"rabbitmq.connect_attempts",
		"rabbitmq.connect_delay",
		"rabbitmq.publish_confirm",
		"rabbitmq.consumers",
		"kafka.brokers",
		"kafka.topic_prefix",
		"jwt.access_secret",
		"jwt.refresh_secret",
		"jwt.issuer",
		"jwt.access_token_ttl",
		"jwt.refresh_token_ttl",
		"auth.mode",
		"telemetry.tracing_enabled",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"argon2.memory",
		"argon2.iterations",
		"argon2.parallelism",
		"argon2.salt_length",
		"argon2.key_length",
		"password.hash_workers",
		"provisioning.default_shop_name",
		"payments.link_base_url",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate reports every required setting that is absent. Callers treat a non-nil result as fatal.
func (c *AppConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrMissingSetting)
	}

	var missing []string
	if strings.TrimSpace(c.JWT.AccessSecret) == "" {
		missing = append(missing, "JWT_ACCESS_SECRET")
	}
	if strings.TrimSpace(c.JWT.RefreshSecret) == "" {
		missing = append(missing, "JWT_REFRESH_SECRET")
	}
	if strings.TrimSpace(c.Postgres.Host) == "" {
		missing = append(missing, "POSTGRES_HOST")
	}
	if strings.TrimSpace(c.Postgres.User) == "" {
		missing = append(missing, "POSTGRES_USER")
	}
	if strings.TrimSpace(c.Postgres.Database) == "" {
		missing = append(missing, "POSTGRES_DATABASE")
	}
	if strings.TrimSpace(c.RabbitMQ.URL) == "" {
		missing = append(missing, "RABBITMQ_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingSetting, strings.Join(missing, ", "))
	}

	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		return errors.New("config: access and refresh secrets must differ")
	}

	switch c.Auth.Mode {
	case AuthModeCookie, AuthModeBearer:
	default:
		return fmt.Errorf("config: unsupported auth mode %q", c.Auth.Mode)
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "payment-gateway")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 3000)
	v.SetDefault("app.allowed_origins", []string{"http://localhost:8080"})

	v.SetDefault("grpc.enabled", true)
	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50051)

	v.SetDefault("worker.host", "0.0.0.0")
	v.SetDefault("worker.port", 9100)

	// Connection parameters are required and intentionally have no defaults.
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.schema", "public")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.connect_timeout", "10s")
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.provisioning_prefix", "pgw:provisioning:pending")
	v.SetDefault("redis.provisioning_pending_ttl", "10m")

	v.SetDefault("rabbitmq.exchange", "user_creation_exchange")
	v.SetDefault("rabbitmq.queue", "user_creation_queue")
	v.SetDefault("rabbitmq.routing_key", "user_creation")
	v.SetDefault("rabbitmq.dead_letter_queue", "user_creation_dlq")
	v.SetDefault("rabbitmq.delay", "60s")
	v.SetDefault("rabbitmq.connect_attempts", 10)
	v.SetDefault("rabbitmq.connect_delay", "3s")
	v.SetDefault("rabbitmq.publish_confirm", true)
	v.SetDefault("rabbitmq.consumers", 1)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "pgw")

	v.SetDefault("jwt.issuer", "payment-gateway")
	v.SetDefault("jwt.access_token_ttl", "15m")
	v.SetDefault("jwt.refresh_token_ttl", "168h")

	v.SetDefault("auth.mode", AuthModeCookie)

	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	v.SetDefault("telemetry.service_name", "payment-gateway")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 2)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("password.hash_workers", 4)

	v.SetDefault("provisioning.default_shop_name", "Test Shop")

	v.SetDefault("payments.link_base_url", "http://localhost:8080/pay")
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "PGW_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
