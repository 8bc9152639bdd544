package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tnqbao/gau-plugin-installer/entity"
	"github.com/tnqbao/gau-plugin-installer/pipeline"
)

// UISyncer fetches a plugin's UI bundle for sync_ui steps.
type UISyncer interface {
	SyncUI(ctx context.Context, pluginName string) (string, error)
}

type Options struct {
	Runner         Runner
	Sleeper        Sleeper
	UISyncer       UISyncer
	WorkDir        string
	DefaultTimeout time.Duration
}

// StepExecutor runs single pipeline steps synchronously.
type StepExecutor struct {
	runner         Runner
	sleeper        Sleeper
	syncer         UISyncer
	workDir        string
	defaultTimeout time.Duration
	now            func() time.Time
	tracer         trace.Tracer
}

func NewStepExecutor(opts Options) *StepExecutor {
	if opts.Runner == nil {
		opts.Runner = NewShellRunner("")
	}
	if opts.Sleeper == nil {
		opts.Sleeper = RealSleeper{}
	}
	return &StepExecutor{
		runner:         opts.Runner,
		sleeper:        opts.Sleeper,
		syncer:         opts.UISyncer,
		workDir:        opts.WorkDir,
		defaultTimeout: opts.DefaultTimeout,
		now:            time.Now,
		tracer:         otel.Tracer("github.com/tnqbao/gau-plugin-installer/executor"),
	}
}

// Execute runs step for req. A panicking action is reported as a failed
// result rather than unwinding into the caller.
func (e *StepExecutor) Execute(ctx context.Context, step pipeline.Step, req *entity.JobRequest) (result StepResult) {
	ctx, span := e.tracer.Start(ctx, "step "+step.Name, trace.WithAttributes(
		attribute.String("step.name", step.Name),
		attribute.String("step.kind", string(step.Kind)),
		attribute.String("plugin.name", req.Name),
	))
	start := e.now()

	defer func() {
		if r := recover(); r != nil {
			result = failed(FailurePanic, "", fmt.Errorf("step panicked: %v", r), e.now().Sub(start))
		}
		if !result.Succeeded {
			span.RecordError(result.Err)
			span.SetStatus(codes.Error, string(result.Failure))
		}
		span.End()
	}()

	switch step.Kind {
	case pipeline.KindWait:
		return e.wait(ctx, step, start)
	case pipeline.KindSyncUI:
		return e.syncUI(ctx, step, req, start)
	case pipeline.KindCommand:
		return e.command(ctx, step, start)
	default:
		return failed(FailureStart, "", fmt.Errorf("unsupported step kind %q", step.Kind), 0)
	}
}

func (e *StepExecutor) timeoutFor(step pipeline.Step) time.Duration {
	if step.Timeout > 0 {
		return step.Timeout
	}
	return e.defaultTimeout
}

func (e *StepExecutor) command(ctx context.Context, step pipeline.Step, start time.Time) StepResult {
	runCtx, cancel := e.withTimeout(ctx, step)
	defer cancel()

	output, err := e.runner.Run(runCtx, e.workDir, step.Run)
	elapsed := e.now().Sub(start)
	if err == nil {
		return succeeded(output, elapsed)
	}
	return e.fail(ctx, runCtx, step, output, err, elapsed)
}

func (e *StepExecutor) syncUI(ctx context.Context, step pipeline.Step, req *entity.JobRequest, start time.Time) StepResult {
	if e.syncer == nil {
		return failed(FailureStart, "", errors.New("no ui syncer configured"), 0)
	}
	runCtx, cancel := e.withTimeout(ctx, step)
	defer cancel()

	output, err := e.syncer.SyncUI(runCtx, req.Name)
	elapsed := e.now().Sub(start)
	if err == nil {
		return succeeded(output, elapsed)
	}
	return e.fail(ctx, runCtx, step, output, err, elapsed)
}

func (e *StepExecutor) wait(ctx context.Context, step pipeline.Step, start time.Time) StepResult {
	if err := e.sleeper.Sleep(ctx, step.Wait); err != nil {
		return failed(FailureCancelled, "", fmt.Errorf("wait interrupted: %w", err), e.now().Sub(start))
	}
	return succeeded("", e.now().Sub(start))
}

func (e *StepExecutor) withTimeout(ctx context.Context, step pipeline.Step) (context.Context, context.CancelFunc) {
	if d := e.timeoutFor(step); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

func (e *StepExecutor) fail(parent, runCtx context.Context, step pipeline.Step, output string, err error, elapsed time.Duration) StepResult {
	kind := e.classify(parent, runCtx, err)
	if kind == FailureTimeout {
		err = fmt.Errorf("timed out after %s: %w", e.timeoutFor(step), err)
	}
	return failed(kind, output, err, elapsed)
}

func (e *StepExecutor) classify(parent, runCtx context.Context, err error) FailureKind {
	switch {
	case parent.Err() != nil:
		return FailureCancelled
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return FailureTimeout
	case errors.Is(err, ErrStart):
		return FailureStart
	default:
		return FailureExit
	}
}
