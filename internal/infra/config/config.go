package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
	DriverRedis    = "redis"

	NotifierLog   = "log"
	NotifierSMTP  = "smtp"
	NotifierKafka = "kafka"
)

type AppConfig struct {
	App          AppSettings          `mapstructure:"app"`
	Storage      StorageSettings      `mapstructure:"storage"`
	Postgres     PostgresSettings     `mapstructure:"postgres"`
	Mongo        MongoSettings        `mapstructure:"mongo"`
	Redis        RedisSettings        `mapstructure:"redis"`
	Kafka        KafkaSettings        `mapstructure:"kafka"`
	JWT          JWTSettings          `mapstructure:"jwt"`
	Password     PasswordSettings     `mapstructure:"password"`
	Argon2       Argon2Settings       `mapstructure:"argon2"`
	Notification NotificationSettings `mapstructure:"notification"`
	CORS         CORSSettings         `mapstructure:"cors"`
	Telemetry    TelemetrySettings    `mapstructure:"telemetry"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// StorageSettings selects the account and recovery token backends.
// An empty TokenDriver follows Driver.
type StorageSettings struct {
	Driver      string `mapstructure:"driver"`
	TokenDriver string `mapstructure:"token_driver"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// DSN renders the pgx connection string.
func (p PostgresSettings) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.Database,
		p.SSLMode,
	)
}

type MongoSettings struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	DB          int    `mapstructure:"db"`
	Password    string `mapstructure:"password"`
	TLSEnabled  bool   `mapstructure:"tls_enabled"`
	TokenPrefix string `mapstructure:"token_prefix"`
}

// KafkaSettings configures Kafka producer
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

// JWTSettings holds the session token signing material.
type JWTSettings struct {
	Key      string `mapstructure:"key"`
	Issuer   string `mapstructure:"issuer"`
	Audience string `mapstructure:"audience"`
}

// PasswordSettings selects the algorithm used for new credentials.
type PasswordSettings struct {
	Algorithm string `mapstructure:"algorithm"`
}

// Argon2Settings configures Argon2id password hashing parameters
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

type NotificationSettings struct {
	Driver          string       `mapstructure:"driver"`
	VerificationURL string       `mapstructure:"verification_url"`
	ResetURL        string       `mapstructure:"reset_url"`
	SMTP            SMTPSettings `mapstructure:"smtp"`
}

type SMTPSettings struct {
	Server      string        `mapstructure:"server"`
	Port        int           `mapstructure:"port"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	FromAddress string        `mapstructure:"from_address"`
	FromName    string        `mapstructure:"from_name"`
	EnableSSL   bool          `mapstructure:"enable_ssl"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// TelemetrySettings controls OTLP trace export. Trace context propagation is
// always on; spans are only exported when Enabled.
type TelemetrySettings struct {
	Enabled      bool    `mapstructure:"enabled"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	Insecure     bool    `mapstructure:"insecure"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

type CORSSettings struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// envAliases maps config keys to the legacy variable names still set by
// existing deployments.
var envAliases = map[string][]string{
	"mongo.uri":                      {"MONGODB_CONNECTION_STRING"},
	"mongo.database":                 {"MONGODB_DATABASE_NAME"},
	"notification.smtp.server":       {"EMAIL_SMTP_SERVER"},
	"notification.smtp.port":         {"EMAIL_SMTP_PORT"},
	"notification.smtp.username":     {"EMAIL_SMTP_USERNAME"},
	"notification.smtp.password":     {"EMAIL_SMTP_PASSWORD"},
	"notification.smtp.from_address": {"EMAIL_FROM_ADDRESS"},
	"notification.smtp.from_name":    {"EMAIL_FROM_NAME"},
	"notification.smtp.enable_ssl":   {"EMAIL_ENABLE_SSL"},
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("IAM")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"storage.driver",
		"storage.token_driver",
		"storage.auto_migrate",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"mongo.uri",
		"mongo.database",
		"mongo.connect_timeout",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.token_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"jwt.key",
		"jwt.issuer",
		"jwt.audience",
		"password.algorithm",
		"argon2.memory",
		"argon2.iterations",
		"argon2.parallelism",
		"argon2.salt_length",
		"argon2.key_length",
		"notification.driver",
		"notification.verification_url",
		"notification.reset_url",
		"notification.smtp.server",
		"notification.smtp.port",
		"notification.smtp.username",
		"notification.smtp.password",
		"notification.smtp.from_address",
		"notification.smtp.from_name",
		"notification.smtp.enable_ssl",
		"notification.smtp.timeout",
		"cors.allowed_origins",
		"telemetry.enabled",
		"telemetry.otlp_endpoint",
		"telemetry.insecure",
		"telemetry.service_name",
		"telemetry.sampling_rate",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Storage.TokenDriver == "" {
		cfg.Storage.TokenDriver = cfg.Storage.Driver
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate fails when a setting required by the selected drivers is missing.
func (c *AppConfig) Validate() error {
	var errs []error

	if strings.TrimSpace(c.JWT.Key) == "" {
		errs = append(errs, errors.New("jwt.key (JWT_KEY) is required"))
	}
	if strings.TrimSpace(c.JWT.Issuer) == "" {
		errs = append(errs, errors.New("jwt.issuer (JWT_ISSUER) is required"))
	}
	if strings.TrimSpace(c.JWT.Audience) == "" {
		errs = append(errs, errors.New("jwt.audience (JWT_AUDIENCE) is required"))
	}

	switch c.Storage.Driver {
	case DriverPostgres, DriverMemory:
	case DriverMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			errs = append(errs, errors.New("mongo.uri and mongo.database are required for the mongo driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage.driver %q", c.Storage.Driver))
	}

	switch c.Storage.TokenDriver {
	case DriverPostgres, DriverMemory, DriverRedis:
	case DriverMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			errs = append(errs, errors.New("mongo.uri and mongo.database are required for the mongo token driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage.token_driver %q", c.Storage.TokenDriver))
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.OTLPEndpoint == "" {
			errs = append(errs, errors.New("telemetry.otlp_endpoint is required when tracing is enabled"))
		}
		if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
			errs = append(errs, fmt.Errorf("telemetry.sampling_rate must be within [0,1], got %v", c.Telemetry.SamplingRate))
		}
	}

	switch c.Notification.Driver {
	case NotifierLog:
		// The production logger drops the debug line that carries the link.
		if c.App.Env == "production" {
			errs = append(errs, errors.New("notification.driver \"log\" cannot deliver links in production; use smtp or kafka"))
		}
	case NotifierSMTP:
		if c.Notification.SMTP.Server == "" || c.Notification.SMTP.FromAddress == "" {
			errs = append(errs, errors.New("notification.smtp.server and notification.smtp.from_address are required for the smtp notifier"))
		}
	case NotifierKafka:
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("kafka.brokers is required for the kafka notifier"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported notification.driver %q", c.Notification.Driver))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "expense-tracker-iam")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)

	v.SetDefault("storage.driver", DriverPostgres)
	v.SetDefault("storage.token_driver", "")
	v.SetDefault("storage.auto_migrate", false)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "iam")
	v.SetDefault("postgres.password", "iam_password")
	v.SetDefault("postgres.database", "iam")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "")
	v.SetDefault("mongo.connect_timeout", "10s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.token_prefix", "iam:recovery_token")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "iam")

	v.SetDefault("jwt.key", "")
	v.SetDefault("jwt.issuer", "")
	v.SetDefault("jwt.audience", "")

	v.SetDefault("password.algorithm", "hmac-sha512")

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("notification.driver", NotifierLog)
	v.SetDefault("notification.verification_url", "http://localhost:5130/Accounts/Register/verify-email")
	v.SetDefault("notification.reset_url", "http://localhost:5130/Accounts/ForgotPassword")
	v.SetDefault("notification.smtp.server", "")
	v.SetDefault("notification.smtp.port", 587)
	v.SetDefault("notification.smtp.username", "")
	v.SetDefault("notification.smtp.password", "")
	v.SetDefault("notification.smtp.from_address", "")
	v.SetDefault("notification.smtp.from_name", "Expense Tracker")
	v.SetDefault("notification.smtp.enable_ssl", true)
	v.SetDefault("notification.smtp.timeout", "10s")

	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.service_name", "expense-tracker-iam")
	v.SetDefault("telemetry.sampling_rate", 1.0)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		names := append([]string{"IAM_" + envKey, envKey}, envAliases[key]...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
