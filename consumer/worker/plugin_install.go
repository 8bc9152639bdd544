package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tnqbao/gau-plugin-installer/entity"
	"github.com/tnqbao/gau-plugin-installer/executor"
	"github.com/tnqbao/gau-plugin-installer/infra"
	"github.com/tnqbao/gau-plugin-installer/infra/produce"
	"github.com/tnqbao/gau-plugin-installer/pipeline"
)

const (
	logPrefix   = "[Plugin Install Consumer]"
	consumerTag = "plugin-installer"

	// attemptTTL bounds how long a failing job's counter survives between deliveries
	attemptTTL = 24 * time.Hour
)

type DeliverySource interface {
	Consume(queue, consumerTag string) (<-chan amqp.Delivery, error)
	CancelConsumer(consumerTag string) error
}

type Resolver interface {
	ResolveFor(req *entity.JobRequest) ([]pipeline.Step, error)
}

type StepExecutor interface {
	Execute(ctx context.Context, step pipeline.Step, req *entity.JobRequest) executor.StepResult
}

type Reporter interface {
	Report(ctx context.Context, correlation map[string]interface{}, message string) error
}

type AttemptTracker interface {
	IncrementAttempt(ctx context.Context, key string, ttl time.Duration) (int64, error)
	ClearAttempts(ctx context.Context, key string) error
}

type DeadLetterer interface {
	Park(ctx context.Context, msg amqp.Delivery, attempts int64, reason string) error
}

type RunRecorder interface {
	Create(run *entity.JobRun) error
	Finish(id uuid.UUID, state entity.JobState, failedStep, errMsg string, finishedAt time.Time) error
}

// PluginInstallDeps wires a PluginInstallConsumer. Attempts, DeadLetter and
// Runs are optional.
type PluginInstallDeps struct {
	Source     DeliverySource
	Queue      string
	Resolver   Resolver
	Executor   StepExecutor
	Reporter   Reporter
	Attempts   AttemptTracker
	DeadLetter DeadLetterer
	Runs       RunRecorder
	Logger     *infra.LoggerClient
	Telemetry  *infra.Telemetry

	// MaxDeliveries caps deliveries of a failing job; 0 means unbounded.
	MaxDeliveries int
	RequeueDelay  time.Duration
	Sleeper       executor.Sleeper
}

// PluginInstallConsumer drives install/uninstall pipelines from the install
// queue. Jobs are processed one at a time; a started pipeline runs to
// completion or first failure even when the consumer is stopped.
type PluginInstallConsumer struct {
	PluginInstallDeps
	tracer trace.Tracer
	now    func() time.Time
	done   chan struct{}
}

func NewPluginInstallConsumer(deps PluginInstallDeps) *PluginInstallConsumer {
	if deps.Queue == "" {
		deps.Queue = produce.DefaultInstallQueue
	}
	if deps.Sleeper == nil {
		deps.Sleeper = executor.RealSleeper{}
	}
	if deps.Logger == nil {
		deps.Logger = infra.NewDiscardLoggerClient()
	}
	return &PluginInstallConsumer{
		PluginInstallDeps: deps,
		tracer:            otel.Tracer("github.com/tnqbao/gau-plugin-installer/consumer/worker"),
		now:               time.Now,
		done:              make(chan struct{}),
	}
}

func (c *PluginInstallConsumer) Start(ctx context.Context) error {
	msgs, err := c.Source.Consume(c.Queue, consumerTag)
	if err != nil {
		return fmt.Errorf("failed to register plugin install consumer: %w", err)
	}

	c.Logger.InfoWithContextf(ctx, "%s Started listening for install jobs on queue: %s", logPrefix, c.Queue)

	go func() {
		defer close(c.done)
		for {
			select {
			case <-ctx.Done():
				c.Logger.InfoWithContextf(ctx, "%s Shutting down...", logPrefix)
				if err := c.Source.CancelConsumer(consumerTag); err != nil {
					c.Logger.WarningWithContextf(ctx, "%s Failed to cancel consumer: %v", logPrefix, err)
				}
				return
			case msg, ok := <-msgs:
				if !ok {
					c.Logger.WarningWithContextf(ctx, "%s Channel closed", logPrefix)
					return
				}
				// select may pick a ready delivery over a cancelled ctx
				if ctx.Err() != nil {
					if err := msg.Nack(false, true); err != nil {
						c.Logger.WarningWithContextf(ctx, "%s Failed to return message %s: %v", logPrefix, deliveryKey(msg), err)
					}
					continue
				}
				c.handle(context.WithoutCancel(ctx), msg)
			}
		}
	}()

	return nil
}

// Done is closed once the consume loop has exited.
func (c *PluginInstallConsumer) Done() <-chan struct{} {
	return c.done
}

func (c *PluginInstallConsumer) handle(ctx context.Context, msg amqp.Delivery) entity.JobState {
	ctx = otel.GetTextMapPropagator().Extract(ctx, produce.AMQPHeaderCarrier(msg.Headers))
	ctx, span := c.tracer.Start(ctx, "plugin_install.job", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	key := deliveryKey(msg)
	c.Logger.InfoWithContextf(ctx, "%s Received message %s (redelivered=%v): %s", logPrefix, key, msg.Redelivered, string(msg.Body))

	req, err := entity.ParseJobRequest(msg.Body)
	if err != nil {
		return c.reject(ctx, span, msg, key, nil, err)
	}
	span.SetAttributes(
		attribute.String("job.type", string(req.Type)),
		attribute.String("plugin.name", req.Name),
	)

	steps, err := c.Resolver.ResolveFor(req)
	if err != nil {
		return c.reject(ctx, span, msg, key, req, err)
	}

	attempt := c.countAttempt(ctx, key)
	runID := c.startRun(ctx, key, req, attempt)

	c.report(ctx, req, produce.MessageStarted)

	for _, step := range steps {
		if step.Label != "" {
			c.report(ctx, req, step.Label)
		}

		result := c.Executor.Execute(ctx, step, req)
		c.Telemetry.RecordStep(ctx, step.Name, result.Duration, result.Succeeded)

		if !result.Succeeded {
			return c.fail(ctx, span, msg, key, req, runID, attempt, step, result)
		}
		c.Logger.DebugWithContextf(ctx, "%s Step %s for %s finished in %s: %s", logPrefix, step.Name, req.Name, result.Duration, result.Output)
	}

	c.report(ctx, req, produce.MessageDone)

	if err := msg.Ack(false); err != nil {
		c.Logger.ErrorWithContextf(ctx, err, "%s Failed to ack message %s: %v", logPrefix, key, err)
	}
	c.clearAttempts(ctx, key)
	c.finishRun(ctx, runID, entity.JobStateSucceeded, "", "")
	c.Telemetry.RecordJob(ctx, string(req.Type), string(entity.JobStateSucceeded))

	c.Logger.InfoWithContextf(ctx, "%s Successfully ran %s pipeline for %s", logPrefix, req.Type, req.Name)
	return entity.JobStateSucceeded
}

// reject drops a message that can never succeed. It is acked so the broker
// does not redeliver it.
func (c *PluginInstallConsumer) reject(ctx context.Context, span trace.Span, msg amqp.Delivery, key string, req *entity.JobRequest, cause error) entity.JobState {
	c.Logger.ErrorWithContextf(ctx, cause, "%s Rejecting message %s: %v", logPrefix, key, cause)
	span.SetStatus(codes.Error, "rejected")

	if err := msg.Ack(false); err != nil {
		c.Logger.ErrorWithContextf(ctx, err, "%s Failed to ack rejected message %s: %v", logPrefix, key, err)
	}

	jobType := "unknown"
	run := &entity.JobRun{DeliveryKey: key}
	if req != nil {
		jobType = string(req.Type)
		run.Type = string(req.Type)
		run.Name = req.Name
		run.Correlation = encodeCorrelation(req.CorrelationData)
	}
	if c.Runs != nil {
		now := c.now()
		run.ID = uuid.New()
		run.State = entity.JobStateRejected
		run.Error = cause.Error()
		run.StartedAt = now
		run.FinishedAt = &now
		if err := c.Runs.Create(run); err != nil {
			c.Logger.WarningWithContextf(ctx, "%s Failed to record rejected run: %v", logPrefix, err)
		}
	}

	c.Telemetry.RecordJob(ctx, jobType, string(entity.JobStateRejected))
	return entity.JobStateRejected
}

func (c *PluginInstallConsumer) fail(ctx context.Context, span trace.Span, msg amqp.Delivery, key string, req *entity.JobRequest, runID uuid.UUID, attempt int64, step pipeline.Step, result executor.StepResult) entity.JobState {
	span.RecordError(result.Err)
	span.SetStatus(codes.Error, "step "+step.Name+" failed")

	c.Logger.ErrorWithContextf(ctx, result.Err, "%s Step %s (%s) failed for %s on attempt %d: %v\n%s",
		logPrefix, step.Name, result.Failure, req.Name, attempt, result.Err, result.Output)

	message := fmt.Sprintf("Failed at %s: %v", step.DisplayName(), result.Err)

	giveUp := c.MaxDeliveries > 0 && attempt >= int64(c.MaxDeliveries)
	if giveUp && c.DeadLetter == nil {
		c.Logger.WarningWithContextf(ctx, "%s No dead-letter queue configured, requeueing %s past the attempt cap", logPrefix, key)
		giveUp = false
	}
	if giveUp {
		if err := c.DeadLetter.Park(ctx, msg, attempt, message); err != nil {
			c.Logger.ErrorWithContextf(ctx, err, "%s Failed to dead-letter %s, requeueing instead: %v", logPrefix, key, err)
			giveUp = false
		}
	}
	if giveUp {
		message = fmt.Sprintf("%s (giving up after %d attempts)", message, attempt)
	}

	c.report(ctx, req, message)

	if giveUp {
		if err := msg.Ack(false); err != nil {
			c.Logger.ErrorWithContextf(ctx, err, "%s Failed to ack dead-lettered message %s: %v", logPrefix, key, err)
		}
		c.clearAttempts(ctx, key)
		c.finishRun(ctx, runID, entity.JobStateDeadLettered, step.Name, result.Err.Error())
		c.Telemetry.RecordJob(ctx, string(req.Type), string(entity.JobStateDeadLettered))
		c.Logger.WarningWithContextf(ctx, "%s Dead-lettered %s after %d attempts", logPrefix, key, attempt)
		return entity.JobStateDeadLettered
	}

	if c.RequeueDelay > 0 {
		_ = c.Sleeper.Sleep(ctx, c.RequeueDelay)
	}
	if err := msg.Nack(false, true); err != nil {
		c.Logger.ErrorWithContextf(ctx, err, "%s Failed to requeue message %s: %v", logPrefix, key, err)
	}
	c.finishRun(ctx, runID, entity.JobStateFailed, step.Name, result.Err.Error())
	c.Telemetry.RecordJob(ctx, string(req.Type), string(entity.JobStateFailed))
	return entity.JobStateFailed
}

func (c *PluginInstallConsumer) report(ctx context.Context, req *entity.JobRequest, message string) {
	if err := c.Reporter.Report(ctx, req.CorrelationData, message); err != nil {
		c.Logger.WarningWithContextf(ctx, "%s Failed to report %q for %s: %v", logPrefix, message, req.Name, err)
	}
}

// countAttempt returns the 1-based delivery attempt, or 0 when unknown.
func (c *PluginInstallConsumer) countAttempt(ctx context.Context, key string) int64 {
	if c.Attempts == nil {
		return 0
	}
	attempt, err := c.Attempts.IncrementAttempt(ctx, key, attemptTTL)
	if err != nil {
		c.Logger.WarningWithContextf(ctx, "%s Attempt tracking unavailable for %s: %v", logPrefix, key, err)
		return 0
	}
	return attempt
}

func (c *PluginInstallConsumer) clearAttempts(ctx context.Context, key string) {
	if c.Attempts == nil {
		return
	}
	if err := c.Attempts.ClearAttempts(ctx, key); err != nil {
		c.Logger.WarningWithContextf(ctx, "%s Failed to clear attempts for %s: %v", logPrefix, key, err)
	}
}

func (c *PluginInstallConsumer) startRun(ctx context.Context, key string, req *entity.JobRequest, attempt int64) uuid.UUID {
	if c.Runs == nil {
		return uuid.Nil
	}
	run := &entity.JobRun{
		ID:          uuid.New(),
		DeliveryKey: key,
		Type:        string(req.Type),
		Name:        req.Name,
		State:       entity.JobStateRunning,
		Attempt:     int(attempt),
		Correlation: encodeCorrelation(req.CorrelationData),
		StartedAt:   c.now(),
	}
	if err := c.Runs.Create(run); err != nil {
		c.Logger.WarningWithContextf(ctx, "%s Failed to record job run: %v", logPrefix, err)
		return uuid.Nil
	}
	return run.ID
}

func (c *PluginInstallConsumer) finishRun(ctx context.Context, id uuid.UUID, state entity.JobState, failedStep, errMsg string) {
	if c.Runs == nil || id == uuid.Nil {
		return
	}
	if err := c.Runs.Finish(id, state, failedStep, errMsg, c.now()); err != nil {
		c.Logger.WarningWithContextf(ctx, "%s Failed to update job run %s: %v", logPrefix, id, err)
	}
}

// deliveryKey identifies a job across redeliveries. Without a MessageId the
// body is hashed together with the publisher's correlation id and timestamp,
// which the broker keeps on redelivery.
func deliveryKey(msg amqp.Delivery) string {
	if msg.MessageId != "" {
		return msg.MessageId
	}
	h := sha256.New()
	h.Write(msg.Body)
	h.Write([]byte{0})
	h.Write([]byte(msg.CorrelationId))
	if !msg.Timestamp.IsZero() {
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatInt(msg.Timestamp.Unix(), 10)))
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

func encodeCorrelation(data map[string]interface{}) []byte {
	if data == nil {
		return nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	return b
}
