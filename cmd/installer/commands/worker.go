package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tnqbao/gau-plugin-installer/config"
	"github.com/tnqbao/gau-plugin-installer/consumer/worker"
	"github.com/tnqbao/gau-plugin-installer/executor"
	"github.com/tnqbao/gau-plugin-installer/http/controller"
	routes "github.com/tnqbao/gau-plugin-installer/http/route"
	"github.com/tnqbao/gau-plugin-installer/infra"
	"github.com/tnqbao/gau-plugin-installer/pipeline"
	"github.com/tnqbao/gau-plugin-installer/repository"
)

const (
	logPrefix           = "[Worker]"
	httpShutdownTimeout = 5 * time.Second
	closeTimeout        = 10 * time.Second
)

func GetWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume install jobs and serve the status API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWorker(ctx, config.NewConfig())
		},
	}
}

func runWorker(ctx context.Context, cfg *config.Config) error {
	env := cfg.EnvConfig

	registry, err := pipeline.LoadRegistry(env.Installer.PipelineFile)
	if err != nil {
		return fmt.Errorf("failed to load pipelines: %w", err)
	}

	inf, err := infra.InitInfra(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize infra: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := inf.Close(closeCtx); err != nil {
			fmt.Fprintf(os.Stderr, "%s failed to release resources: %v\n", logPrefix, err)
		}
	}()

	repo := repository.InitRepository(inf)
	brokerClosed := inf.RabbitMQ.NotifyClose()

	consumerCtx, cancelConsumer := context.WithCancel(ctx)
	defer cancelConsumer()

	consumer := worker.NewPluginInstallConsumer(buildConsumerDeps(env, inf, repo, registry))
	if err := consumer.Start(consumerCtx); err != nil {
		return err
	}

	server := &http.Server{
		Addr:              ":" + env.HTTP.Port,
		Handler:           routes.SetupRouter(controller.NewController(cfg, inf, repo, registry)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		inf.Logger.InfoWithContextf(ctx, "%s Status API listening on %s", logPrefix, server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		inf.Logger.InfoWithContextf(ctx, "%s Shutdown signal received", logPrefix)
	case amqpErr := <-brokerClosed:
		runErr = fmt.Errorf("broker connection closed: %v", amqpErr)
	case err := <-serverErr:
		runErr = fmt.Errorf("status API failed: %w", err)
	case <-consumer.Done():
		runErr = errors.New("consumer stopped unexpectedly")
	}
	if runErr != nil {
		inf.Logger.ErrorWithContextf(ctx, runErr, "%s %v", logPrefix, runErr)
	}

	cancelConsumer()
	shutdownCtx := context.WithoutCancel(ctx)
	select {
	case <-consumer.Done():
	case <-time.After(env.Installer.ShutdownTimeout):
		inf.Logger.WarningWithContextf(shutdownCtx, "%s In-flight job still running after %s, exiting", logPrefix, env.Installer.ShutdownTimeout)
	}

	httpCtx, cancel := context.WithTimeout(shutdownCtx, httpShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(httpCtx); err != nil {
		inf.Logger.WarningWithContextf(shutdownCtx, "%s Failed to stop status API: %v", logPrefix, err)
	}

	return runErr
}

// buildConsumerDeps leaves optional dependencies as nil interfaces when the
// backing client is not configured.
func buildConsumerDeps(env *config.EnvConfig, inf *infra.Infra, repo *repository.Repository, resolver worker.Resolver) worker.PluginInstallDeps {
	opts := executor.Options{
		Runner:         executor.NewShellRunner(env.Installer.Shell),
		WorkDir:        env.Installer.WorkDir,
		DefaultTimeout: env.Installer.StepTimeout,
	}
	if inf.Minio != nil {
		opts.UISyncer = inf.Minio
	}

	deps := worker.PluginInstallDeps{
		Queue:         env.Installer.InstallQueue,
		Resolver:      resolver,
		Executor:      executor.NewStepExecutor(opts),
		Logger:        inf.Logger,
		Telemetry:     inf.Telemetry,
		MaxDeliveries: env.Installer.MaxDeliveries,
		RequeueDelay:  env.Installer.RequeueDelay,
	}
	if inf.RabbitMQ != nil {
		deps.Source = inf.RabbitMQ
	}
	if inf.Produce != nil {
		deps.Reporter = inf.Produce.NotificationService
		deps.DeadLetter = inf.Produce.DeadLetterService
	}
	if inf.Redis != nil {
		deps.Attempts = inf.Redis
	}
	if repo != nil {
		deps.Runs = repo.JobRunRepo
	}
	return deps
}
