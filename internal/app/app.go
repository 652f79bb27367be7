// Package app wires configuration into a running scheduling service. Every binary under
// cmd/ goes through Open so they all see the same store, lock and notifier setup.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/notify"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

// Store is what both backends provide.
type Store interface {
	appointment.Repository
	appointment.Directory
	Ping(ctx context.Context) error
}

type App struct {
	Config  config.Config
	Logger  zerolog.Logger
	Store   Store
	Redis   *redis.Client // nil without REDIS_ADDR
	Service *appointment.Service

	closers []func() error
}

// NewLogger returns a JSON logger, or a console logger in dev.
func NewLogger(env string) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if env == "dev" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	}
	return logger
}

func Open(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	locker, err := a.openLocker(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	policy, err := appointment.PolicyFromConfig(cfg.Clinic)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Service = appointment.NewService(a.Store, locker, policy,
		appointment.WithNotifier(a.openNotifier()),
		appointment.WithLogger(logger.With().Str("component", "appointments").Logger()),
	)
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	switch a.Config.StoreDriver {
	case config.StorePostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		pool, err := db.ConnectPostgres(pgCtx, a.Config.PostgresDSN, a.Config.PostgresMaxConns)
		if err != nil {
			return fmt.Errorf("postgres connection: %w", err)
		}
		if err := db.MigratePostgres(pgCtx, pool); err != nil {
			pool.Close()
			return err
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		a.Store = appointment.NewPgRepository(pool)
		a.Logger.Info().Msg("connected to Postgres")

	case config.StoreSQLite:
		sqlDB, err := db.OpenSQLite(ctx, a.Config.SQLitePath)
		if err != nil {
			return err
		}
		if err := db.MigrateSQLite(ctx, sqlDB); err != nil {
			sqlDB.Close()
			return err
		}
		a.closers = append(a.closers, sqlDB.Close)
		a.Store = appointment.NewSQLiteRepository(sqlDB)
		a.Logger.Info().Str("path", a.Config.SQLitePath).Msg("opened SQLite store")

	default:
		return fmt.Errorf("unsupported store driver %q", a.Config.StoreDriver)
	}
	return nil
}

// openLocker uses Redis when configured. Without it the doctor lock only covers this
// process, which is enough for a single instance.
func (a *App) openLocker(ctx context.Context) (redisclient.Locker, error) {
	if a.Config.RedisAddr == "" {
		a.Logger.Warn().Msg("REDIS_ADDR not set, using in-process doctor lock")
		return redisclient.NewLocalLocker(), nil
	}

	rdb, err := redisclient.NewRedisClient(ctx, a.Config.RedisAddr, a.Config.RedisUsername, a.Config.RedisPassword)
	if err != nil {
		return nil, fmt.Errorf("redis connection: %w", err)
	}
	a.closers = append(a.closers, rdb.Close)
	a.Redis = rdb
	a.Logger.Info().Str("addr", a.Config.RedisAddr).Msg("connected to Redis")
	return redisclient.NewRedisDoctorLocker(rdb, a.Config.LockTTL), nil
}

// openNotifier publishes to RabbitMQ behind a circuit breaker. A broker that is down at
// startup degrades to log-only delivery rather than keeping the service from starting.
func (a *App) openNotifier() appointment.Notifier {
	logNotifier := notify.NewLogNotifier(a.Logger.With().Str("component", "notify").Logger())
	if a.Config.AMQPURL == "" {
		return logNotifier
	}

	pub, err := notify.NewRabbitMQPublisher(a.Config.AMQPURL, a.Config.AMQPExchange, a.Logger)
	if err != nil {
		a.Logger.Error().Err(err).Msg("rabbitmq unavailable, notifications will only be logged")
		return logNotifier
	}
	a.closers = append(a.closers, pub.Close)

	return notify.NewBreakerNotifier(notify.NewPublishingNotifier(pub), notify.BreakerConfig{
		Name:             "amqp",
		FailureThreshold: a.Config.NotifyBreakerFailures,
		Timeout:          a.Config.NotifyBreakerTimeout,
	}, a.Logger)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
