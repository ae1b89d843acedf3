package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	netmail "net/mail"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/arklim/expense-tracker-iam/internal/core/port"
	"github.com/arklim/expense-tracker-iam/internal/infra/config"
	"github.com/arklim/expense-tracker-iam/internal/infra/database"
	kafkainfra "github.com/arklim/expense-tracker-iam/internal/infra/kafka"
	"github.com/arklim/expense-tracker-iam/internal/infra/logger"
	"github.com/arklim/expense-tracker-iam/internal/infra/mail"
	redisinfra "github.com/arklim/expense-tracker-iam/internal/infra/redis"
	"github.com/arklim/expense-tracker-iam/internal/infra/security"
	"github.com/arklim/expense-tracker-iam/internal/infra/telemetry"
	memoryrepo "github.com/arklim/expense-tracker-iam/internal/repository/memory"
	mongorepo "github.com/arklim/expense-tracker-iam/internal/repository/mongo"
	postgresrepo "github.com/arklim/expense-tracker-iam/internal/repository/postgres"
	redisrepo "github.com/arklim/expense-tracker-iam/internal/repository/redis"
	"github.com/arklim/expense-tracker-iam/internal/transport/http/middleware"
	"github.com/arklim/expense-tracker-iam/internal/transport/http/routes"
	"github.com/arklim/expense-tracker-iam/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

type Application struct {
	cfg     *config.AppConfig
	engine  *gin.Engine
	logger  *zap.Logger
	closers []func(ctx context.Context) error
}

// backends holds the lazily opened storage connections shared by the
// account and token stores.
type backends struct {
	cfg    *config.AppConfig
	log    *zap.Logger
	pool   *pgxpool.Pool
	mongo  *database.MongoDatabase
	redis  *redisinfra.Client
	checks []routes.ReadinessCheck
	closer []func(ctx context.Context) error
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	telemetry.ConfigurePropagation()

	b := &backends{cfg: cfg, log: log}
	fail := func(err error) (*Application, error) {
		b.close(context.Background())
		return nil, err
	}

	if cfg.Telemetry.Enabled {
		tp, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			return fail(fmt.Errorf("init tracing: %w", err))
		}
		b.closer = append(b.closer, tp.Shutdown)
	}

	accounts, err := b.accountRepository(ctx)
	if err != nil {
		return fail(fmt.Errorf("init account store: %w", err))
	}

	tokens, err := b.tokenRepository(ctx)
	if err != nil {
		return fail(fmt.Errorf("init token store: %w", err))
	}

	hasher, err := security.NewCredentialHasher(cfg.Password.Algorithm, security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return fail(fmt.Errorf("init credential hasher: %w", err))
	}

	sessions, err := security.NewSessionTokenManager(security.SessionTokenConfig{
		SigningKey: []byte(cfg.JWT.Key),
		Issuer:     cfg.JWT.Issuer,
		Audience:   cfg.JWT.Audience,
	})
	if err != nil {
		return fail(fmt.Errorf("init session tokens: %w", err))
	}

	notifier, err := b.notifier()
	if err != nil {
		return fail(fmt.Errorf("init notifier: %w", err))
	}

	opMetrics, err := telemetry.NewOperationMetrics(prometheus.DefaultRegisterer, "iam")
	if err != nil {
		return fail(fmt.Errorf("init operation metrics: %w", err))
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: prometheus.DefaultRegisterer})
	if err != nil {
		return fail(fmt.Errorf("init http metrics: %w", err))
	}

	accountService := usecase.NewAccountService(accounts, tokens, hasher, security.NewTokenGenerator(), sessions, notifier).
		WithLogger(log).
		WithMetrics(opMetrics)

	engine := routes.Register(routes.Dependencies{
		Config:   cfg,
		Logger:   log,
		Accounts: accountService,
		Metrics:  httpMetrics,
		Gatherer: prometheus.DefaultGatherer,
		Checks:   b.checks,
	})

	log.Info("account service initialized",
		zap.String("storage", cfg.Storage.Driver),
		zap.String("token_storage", cfg.Storage.TokenDriver),
		zap.String("notifier", cfg.Notification.Driver),
		zap.String("password_algorithm", hasher.Algorithm()),
	)

	return &Application{
		cfg:     cfg,
		engine:  engine,
		logger:  log,
		closers: b.closer,
	}, nil
}

// Migrate applies the Postgres schema or ensures the Mongo indexes for the
// configured storage drivers.
func Migrate(ctx context.Context, cfg *config.AppConfig) error {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	b := &backends{cfg: cfg, log: log}
	defer b.close(context.Background())

	drivers := map[string]bool{cfg.Storage.Driver: true, cfg.Storage.TokenDriver: true}
	if drivers[config.DriverPostgres] {
		pool, err := b.postgres(ctx)
		if err != nil {
			return err
		}
		if err := database.Migrate(ctx, pool, log); err != nil {
			return err
		}
	}
	if drivers[config.DriverMongo] {
		if _, err := b.mongoAccounts(ctx); err != nil {
			return err
		}
		if _, err := b.mongoTokens(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (b *backends) accountRepository(ctx context.Context) (port.AccountRepository, error) {
	switch b.cfg.Storage.Driver {
	case config.DriverPostgres:
		repos, err := b.postgresRepositories(ctx)
		if err != nil {
			return nil, err
		}
		if b.cfg.Storage.AutoMigrate {
			if err := database.Migrate(ctx, b.pool, b.log); err != nil {
				return nil, err
			}
		}
		return repos.Accounts, nil
	case config.DriverMongo:
		return b.mongoAccounts(ctx)
	case config.DriverMemory:
		b.log.Warn("using in-memory account storage, data is lost on restart")
		return memoryrepo.NewAccountRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", b.cfg.Storage.Driver)
	}
}

func (b *backends) tokenRepository(ctx context.Context) (port.RecoveryTokenRepository, error) {
	switch b.cfg.Storage.TokenDriver {
	case config.DriverPostgres:
		repos, err := b.postgresRepositories(ctx)
		if err != nil {
			return nil, err
		}
		return repos.Tokens, nil
	case config.DriverMongo:
		return b.mongoTokens(ctx)
	case config.DriverRedis:
		client, err := b.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		return redisrepo.NewTokenRepository(client.Client(), b.cfg.Redis.TokenPrefix), nil
	case config.DriverMemory:
		return memoryrepo.NewTokenRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported token storage driver %q", b.cfg.Storage.TokenDriver)
	}
}

func (b *backends) notifier() (port.Notifier, error) {
	links := mail.Links{
		VerificationURL: b.cfg.Notification.VerificationURL,
		ResetURL:        b.cfg.Notification.ResetURL,
	}

	switch b.cfg.Notification.Driver {
	case config.NotifierLog:
		return mail.NewLogNotifier(links, b.log), nil
	case config.NotifierSMTP:
		smtpCfg := b.cfg.Notification.SMTP
		from := netmail.Address{Name: smtpCfg.FromName, Address: smtpCfg.FromAddress}
		return mail.NewSMTPNotifier(mail.NewSMTPSender(smtpCfg), from, links, b.log), nil
	case config.NotifierKafka:
		producer, err := kafkainfra.NewProducer(b.cfg.Kafka, b.log)
		if err != nil {
			return nil, err
		}
		b.closer = append(b.closer, func(context.Context) error { return producer.Close() })
		return kafkainfra.NewNotificationPublisher(producer, links, b.cfg.App, b.log), nil
	default:
		return nil, fmt.Errorf("unsupported notification driver %q", b.cfg.Notification.Driver)
	}
}

func (b *backends) postgres(ctx context.Context) (*pgxpool.Pool, error) {
	if b.pool != nil {
		return b.pool, nil
	}
	pool, err := database.NewPostgresPool(ctx, b.cfg.Postgres, b.log)
	if err != nil {
		return nil, err
	}
	b.pool = pool
	b.checks = append(b.checks, routes.ReadinessCheck{Name: "postgres", Check: pool.Ping})
	b.closer = append(b.closer, func(context.Context) error {
		pool.Close()
		return nil
	})
	return pool, nil
}

func (b *backends) postgresRepositories(ctx context.Context) (*postgresrepo.Repositories, error) {
	pool, err := b.postgres(ctx)
	if err != nil {
		return nil, err
	}
	return postgresrepo.NewRepositories(pool), nil
}

func (b *backends) mongoDatabase(ctx context.Context) (*database.MongoDatabase, error) {
	if b.mongo != nil {
		return b.mongo, nil
	}
	db, err := database.NewMongoDatabase(ctx, b.cfg.Mongo, b.log)
	if err != nil {
		return nil, err
	}
	b.mongo = db
	b.checks = append(b.checks, routes.ReadinessCheck{Name: "mongo", Check: db.Ping})
	b.closer = append(b.closer, db.Close)
	return db, nil
}

func (b *backends) mongoAccounts(ctx context.Context) (*mongorepo.AccountRepository, error) {
	db, err := b.mongoDatabase(ctx)
	if err != nil {
		return nil, err
	}
	repo := mongorepo.NewAccountRepository(db.Database())
	if err := repo.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func (b *backends) mongoTokens(ctx context.Context) (*mongorepo.TokenRepository, error) {
	db, err := b.mongoDatabase(ctx)
	if err != nil {
		return nil, err
	}
	repo := mongorepo.NewTokenRepository(db.Database())
	if err := repo.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func (b *backends) redisClient(ctx context.Context) (*redisinfra.Client, error) {
	if b.redis != nil {
		return b.redis, nil
	}
	client, err := redisinfra.NewClient(ctx, b.cfg.Redis, b.log)
	if err != nil {
		return nil, err
	}
	b.redis = client
	b.checks = append(b.checks, routes.ReadinessCheck{Name: "redis", Check: client.Ping})
	b.closer = append(b.closer, func(context.Context) error { return client.Close() })
	return client, nil
}

func (b *backends) close(ctx context.Context) {
	for i := len(b.closer) - 1; i >= 0; i-- {
		if err := b.closer[i](ctx); err != nil {
			b.log.Warn("failed to release backend", zap.Error(err))
		}
	}
	b.closer = nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](closeCtx); err != nil {
				a.logger.Warn("failed to release backend", zap.Error(err))
			}
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting IAM API",
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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		a.logger.Info("IAM API stopped")
		return nil
	case err := <-serverErrCh:
		return err
	}
}
