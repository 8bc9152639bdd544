package infra

import (
	"context"
	"errors"
	"fmt"

	"github.com/tnqbao/gau-plugin-installer/config"
	"github.com/tnqbao/gau-plugin-installer/infra/produce"
)

// Infra holds the process-scoped resources of the worker. Redis, Postgres
// and Minio are optional and nil when not configured.
type Infra struct {
	Logger    *LoggerClient
	Telemetry *Telemetry
	RabbitMQ  *RabbitMQClient
	Redis     *RedisClient
	Postgres  *PostgresClient
	Minio     *MinioClient
	Produce   *produce.Produce
}

// InitInfra acquires resources in order; on error everything acquired so far
// is released before returning.
func InitInfra(ctx context.Context, cfg *config.Config) (_ *Infra, err error) {
	env := cfg.EnvConfig
	inf := &Infra{}
	defer func() {
		if err != nil {
			_ = inf.Close(context.WithoutCancel(ctx))
		}
	}()

	res, err := NewResource(env)
	if err != nil {
		return nil, fmt.Errorf("failed to build telemetry resource: %w", err)
	}

	if inf.Logger, err = InitLoggerClient(ctx, env, res); err != nil {
		return nil, err
	}

	if inf.Telemetry, err = InitTelemetry(ctx, env, res); err != nil {
		return nil, err
	}

	if inf.RabbitMQ, err = InitRabbitMQClient(env); err != nil {
		return nil, err
	}

	for _, queue := range []string{
		env.Installer.InstallQueue,
		env.Installer.NotificationQueue,
		env.Installer.DeadLetterQueue,
	} {
		if err = inf.RabbitMQ.EnsureQueue(queue); err != nil {
			return nil, err
		}
	}

	if inf.Redis, err = InitRedisClient(ctx, env); err != nil {
		return nil, err
	}
	if inf.Redis == nil {
		inf.Logger.WarningWithContextf(ctx, "[Infra] REDIS_HOST not set, failed jobs will be requeued without an attempt cap")
	}

	if inf.Postgres, err = InitPostgresClient(env); err != nil {
		return nil, err
	}
	if inf.Postgres == nil {
		inf.Logger.WarningWithContextf(ctx, "[Infra] PGPOOL_HOST not set, job run history is disabled")
	}

	// Minio is optional: only sync_ui steps need it
	if inf.Minio, err = InitMinioClient(env); err != nil {
		return nil, err
	}

	inf.Produce = produce.InitProduce(
		inf.RabbitMQ,
		env.Installer.NotificationQueue,
		env.Installer.DeadLetterQueue,
		env.Installer.InstallQueue,
	)
	return inf, nil
}

// Close releases every resource in reverse order of acquisition.
func (i *Infra) Close(ctx context.Context) error {
	var errs []error
	if i.Postgres != nil {
		errs = append(errs, i.Postgres.Close())
	}
	if i.Redis != nil {
		errs = append(errs, i.Redis.Close())
	}
	if i.RabbitMQ != nil {
		errs = append(errs, i.RabbitMQ.Close())
	}
	errs = append(errs, i.Telemetry.Shutdown(ctx))
	if i.Logger != nil {
		errs = append(errs, i.Logger.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
