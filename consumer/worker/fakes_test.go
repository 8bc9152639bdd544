package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tnqbao/gau-plugin-installer/entity"
	"github.com/tnqbao/gau-plugin-installer/executor"
	"github.com/tnqbao/gau-plugin-installer/pipeline"
)

type fakeAcknowledger struct {
	mu      sync.Mutex
	acks    int
	nacks   []bool
	rejects int
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks++
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks = append(a.nacks, requeue)
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rejects++
	return nil
}

func (a *fakeAcknowledger) counts() (int, []bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acks, append([]bool(nil), a.nacks...)
}

func newDelivery(body string, ack amqp.Acknowledger) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  1,
		MessageId:    "msg-1",
		ContentType:  "application/json",
		Body:         []byte(body),
	}
}

type recordingReporter struct {
	mu     sync.Mutex
	events []map[string]interface{}
	err    error
}

func (r *recordingReporter) Report(ctx context.Context, correlation map[string]interface{}, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event := map[string]interface{}{}
	for k, v := range correlation {
		event[k] = v
	}
	event["message"] = message
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingReporter) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e["message"].(string)
	}
	return out
}

// scriptedExecutor records executed steps. A step named in failAt fails; the
// step named crashAt terminates the calling goroutine once, like a process
// dying mid-pipeline.
type scriptedExecutor struct {
	mu       sync.Mutex
	executed []string
	failAt   map[string]error
	crashAt  string
	crashed  bool
}

func (e *scriptedExecutor) Execute(ctx context.Context, step pipeline.Step, req *entity.JobRequest) executor.StepResult {
	e.mu.Lock()
	e.executed = append(e.executed, step.Name)
	crash := step.Name == e.crashAt && !e.crashed
	if crash {
		e.crashed = true
	}
	err := e.failAt[step.Name]
	e.mu.Unlock()

	if crash {
		runtime.Goexit()
	}
	if err != nil {
		return executor.StepResult{Err: err, Failure: executor.FailureExit, Output: "boom", Duration: time.Millisecond}
	}
	return executor.StepResult{Succeeded: true, Duration: time.Millisecond}
}

func (e *scriptedExecutor) steps() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.executed...)
}

type memoryAttempts struct {
	mu      sync.Mutex
	counts  map[string]int64
	cleared []string
	err     error
}

func newMemoryAttempts() *memoryAttempts {
	return &memoryAttempts{counts: map[string]int64{}}
}

func (m *memoryAttempts) IncrementAttempt(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.counts[key]++
	return m.counts[key], nil
}

func (m *memoryAttempts) ClearAttempts(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.counts, key)
	m.cleared = append(m.cleared, key)
	return nil
}

type parked struct {
	body     []byte
	attempts int64
	reason   string
}

type recordingDeadLetter struct {
	parked []parked
	err    error
}

func (d *recordingDeadLetter) Park(ctx context.Context, msg amqp.Delivery, attempts int64, reason string) error {
	if d.err != nil {
		return d.err
	}
	d.parked = append(d.parked, parked{body: msg.Body, attempts: attempts, reason: reason})
	return nil
}

type memoryRuns struct {
	mu   sync.Mutex
	runs map[uuid.UUID]*entity.JobRun
}

func newMemoryRuns() *memoryRuns {
	return &memoryRuns{runs: map[uuid.UUID]*entity.JobRun{}}
}

func (m *memoryRuns) Create(run *entity.JobRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *run
	m.runs[run.ID] = &copied
	return nil
}

func (m *memoryRuns) Finish(id uuid.UUID, state entity.JobState, failedStep, errMsg string, finishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return errors.New("no such run")
	}
	run.State = state
	run.FailedStep = failedStep
	run.Error = errMsg
	run.FinishedAt = &finishedAt
	return nil
}

func (m *memoryRuns) only() *entity.JobRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		return r
	}
	return nil
}

type fakeSource struct {
	msgs      chan amqp.Delivery
	cancelled chan string
}

func newFakeSource() *fakeSource {
	return newBufferedFakeSource(0)
}

// newBufferedFakeSource holds up to n deliveries ready before the loop reads them.
func newBufferedFakeSource(n int) *fakeSource {
	return &fakeSource{msgs: make(chan amqp.Delivery, n), cancelled: make(chan string, 1)}
}

func (s *fakeSource) Consume(queue, consumerTag string) (<-chan amqp.Delivery, error) {
	return s.msgs, nil
}

func (s *fakeSource) CancelConsumer(consumerTag string) error {
	s.cancelled <- consumerTag
	return nil
}
