package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"session-service/internal/auth"
	"session-service/internal/client"
	"session-service/internal/config"
	"session-service/internal/repository/postgres"
	"session-service/internal/service"
	"session-service/internal/tls"
	"session-service/internal/util"
)

// Factory manages the lifecycle of all application dependencies.
type Factory struct {
	config     *config.Config
	tlsManager *tls.TLSManager

	// Root context for background workers (JWKS refresh); cancelled on Close.
	rootCtx    context.Context
	rootCancel context.CancelFunc

	// Clients
	postgresClient *client.PostgresClient
	redisClient    *client.RedisClient
	kafkaProducer  *client.KafkaProducer

	// Components
	verifier          auth.Verifier
	sessionRepository postgres.SessionRepository
	sessionService    *service.SessionService
	notifier          service.TerminationNotifier

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFactory creates and initializes all application dependencies.
func NewFactory() (*Factory, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	rootCtx, rootCancel := context.WithCancel(context.Background())

	factory := &Factory{
		config:     cfg,
		rootCtx:    rootCtx,
		rootCancel: rootCancel,
		closed:     make(chan struct{}),
	}

	if cfg.Server.EnableTLS {
		factory.tlsManager = tls.NewTLSManager(&tls.TLSConfig{
			EnableTLS:   cfg.Server.EnableTLS,
			AutoCert:    cfg.Server.AutoCert,
			Domain:      cfg.Server.Domain,
			CertFile:    cfg.Server.CertFile,
			KeyFile:     cfg.Server.KeyFile,
			AutoCertDir: cfg.Server.AutoCertDir,
			Email:       cfg.Server.Email,
			Environment: cfg.Environment,
		})
	}

	if err := factory.initializeClients(); err != nil {
		rootCancel()
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	if err := factory.initializeComponents(); err != nil {
		rootCancel()
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Int("device_limit", cfg.Session.DeviceLimit),
	)

	return factory, nil
}

// initializeClients initializes external service clients with health checks.
func (f *Factory) initializeClients() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Postgres holds the session records; the service cannot run without it.
	pg, err := client.NewPostgresClient(f.config, util.Get())
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	f.postgresClient = pg
	if err := f.postgresClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("postgres health check: %w", err)
	}
	util.Info("Postgres client initialized and healthy")

	// Redis carries the termination broadcasts; force-logout degrades to
	// delete-without-notify when it is unavailable, so startup failure is
	// fatal only in production.
	redisClient, err := client.NewRedisClient(f.config, util.Get())
	if err != nil {
		if f.config.IsProduction() {
			return fmt.Errorf("redis: %w", err)
		}
		util.Warn("Redis initialization failed - termination notices disabled", util.ErrorField(err))
	} else {
		f.redisClient = redisClient
		util.Info("Redis client initialized and healthy")
	}

	// Kafka audit stream is optional.
	if producer, err := client.NewKafkaProducer(f.config, util.Get()); err != nil {
		util.Warn("Kafka producer initialization failed - proceeding without audit stream", util.ErrorField(err))
	} else {
		f.kafkaProducer = producer
	}

	return nil
}

// initializeComponents wires the verifier, repository, and services.
func (f *Factory) initializeComponents() error {
	verifier, err := auth.NewJWKSVerifier(f.rootCtx, f.config)
	if err != nil {
		return fmt.Errorf("jwks verifier: %w", err)
	}
	f.verifier = verifier

	repo := postgres.NewSessionRepository(f.postgresClient, util.Get())

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("schema bootstrap: %w", err)
	}
	f.sessionRepository = repo

	if f.redisClient != nil {
		f.notifier = service.NewRedisTerminationNotifier(
			f.redisClient, f.config.Session.NotifyTimeout, util.Get())
	} else {
		f.notifier = service.NoopNotifier{}
	}

	f.sessionService = service.NewSessionService(
		f.sessionRepository,
		f.notifier,
		service.NewAuditEmitter(f.kafkaProducer),
		f.config.Session.DeviceLimit,
		util.Get(),
	)

	return nil
}

// HealthCheck reports per-component health.
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	if f.postgresClient != nil {
		if err := f.postgresClient.HealthCheck(ctx); err != nil {
			healthErrors["postgres"] = err
		}
	} else {
		healthErrors["postgres"] = fmt.Errorf("postgres client not initialized")
	}

	if f.redisClient != nil {
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	}

	return healthErrors
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		util.Info("Shutting down factory...")

		f.rootCancel()

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			}
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			}
		}

		if f.postgresClient != nil {
			f.postgresClient.Close()
		}

		util.Sync()
		util.Info("Factory shutdown completed")
	})

	return nil
}

// Getters

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) TLSManager() *tls.TLSManager {
	return f.tlsManager
}

func (f *Factory) Verifier() auth.Verifier {
	return f.verifier
}

func (f *Factory) SessionService() *service.SessionService {
	return f.sessionService
}
