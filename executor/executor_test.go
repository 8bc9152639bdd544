package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tnqbao/gau-plugin-installer/entity"
	"github.com/tnqbao/gau-plugin-installer/pipeline"
)

var testJob = &entity.JobRequest{Type: entity.JobTypeInstall, Name: "loyalties"}

type runnerFunc func(ctx context.Context, dir, command string) (string, error)

func (f runnerFunc) Run(ctx context.Context, dir, command string) (string, error) {
	return f(ctx, dir, command)
}

type syncerFunc func(ctx context.Context, name string) (string, error)

func (f syncerFunc) SyncUI(ctx context.Context, name string) (string, error) {
	return f(ctx, name)
}

func TestExecute_CommandSuccessCapturesOutput(t *testing.T) {
	exec := NewStepExecutor(Options{Runner: NewShellRunner("sh"), WorkDir: t.TempDir()})

	result := exec.Execute(context.Background(), pipeline.Step{
		Name: "echo", Kind: pipeline.KindCommand, Run: "echo out; echo err >&2",
	}, testJob)

	require.True(t, result.Succeeded)
	assert.NoError(t, result.Err)
	assert.Contains(t, result.Output, "out")
	assert.Contains(t, result.Output, "err")
}

func TestExecute_CommandNonZeroExit(t *testing.T) {
	exec := NewStepExecutor(Options{Runner: NewShellRunner("sh")})

	result := exec.Execute(context.Background(), pipeline.Step{
		Name: "fail", Kind: pipeline.KindCommand, Run: "echo boom; exit 3",
	}, testJob)

	assert.False(t, result.Succeeded)
	assert.Error(t, result.Err)
	assert.Equal(t, FailureExit, result.Failure)
	assert.Contains(t, result.Output, "boom")
}

func TestExecute_CommandTimeout(t *testing.T) {
	exec := NewStepExecutor(Options{Runner: NewShellRunner("sh"), DefaultTimeout: time.Minute})

	result := exec.Execute(context.Background(), pipeline.Step{
		Name: "slow", Kind: pipeline.KindCommand, Run: "exec sleep 5", Timeout: 100 * time.Millisecond,
	}, testJob)

	assert.False(t, result.Succeeded)
	assert.Equal(t, FailureTimeout, result.Failure)
	assert.Contains(t, result.Err.Error(), "timed out after 100ms")
}

func TestExecute_CommandStartFailure(t *testing.T) {
	exec := NewStepExecutor(Options{Runner: NewShellRunner("/nonexistent/shell")})

	result := exec.Execute(context.Background(), pipeline.Step{
		Name: "x", Kind: pipeline.KindCommand, Run: "true",
	}, testJob)

	assert.False(t, result.Succeeded)
	assert.Equal(t, FailureStart, result.Failure)
}

func TestExecute_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec := NewStepExecutor(Options{Runner: runnerFunc(func(ctx context.Context, dir, command string) (string, error) {
		return "", ctx.Err()
	})})

	result := exec.Execute(ctx, pipeline.Step{Name: "x", Kind: pipeline.KindCommand, Run: "true"}, testJob)

	assert.False(t, result.Succeeded)
	assert.Equal(t, FailureCancelled, result.Failure)
}

func TestExecute_PanicBecomesFailure(t *testing.T) {
	exec := NewStepExecutor(Options{Runner: runnerFunc(func(ctx context.Context, dir, command string) (string, error) {
		panic("collaborator exploded")
	})})

	result := exec.Execute(context.Background(), pipeline.Step{Name: "x", Kind: pipeline.KindCommand, Run: "true"}, testJob)

	assert.False(t, result.Succeeded)
	assert.Equal(t, FailurePanic, result.Failure)
	assert.Contains(t, result.Err.Error(), "collaborator exploded")
}

func TestExecute_RunnerReceivesWorkDirAndCommand(t *testing.T) {
	var gotDir, gotCmd string
	exec := NewStepExecutor(Options{
		WorkDir: "/erxes",
		Runner: runnerFunc(func(ctx context.Context, dir, command string) (string, error) {
			gotDir, gotCmd = dir, command
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			return "ok", nil
		}),
		DefaultTimeout: time.Minute,
	})

	result := exec.Execute(context.Background(), pipeline.Step{Name: "up", Kind: pipeline.KindCommand, Run: "npm run erxes up"}, testJob)

	require.True(t, result.Succeeded)
	assert.Equal(t, "/erxes", gotDir)
	assert.Equal(t, "npm run erxes up", gotCmd)
}

func TestExecute_WaitUsesSleeper(t *testing.T) {
	var slept []time.Duration
	exec := NewStepExecutor(Options{Sleeper: SleeperFunc(func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	})})

	result := exec.Execute(context.Background(), pipeline.Step{Name: "w", Kind: pipeline.KindWait, Wait: 10 * time.Second}, testJob)

	require.True(t, result.Succeeded)
	assert.Equal(t, []time.Duration{10 * time.Second}, slept)
}

func TestExecute_WaitInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec := NewStepExecutor(Options{Sleeper: RealSleeper{}})

	result := exec.Execute(ctx, pipeline.Step{Name: "w", Kind: pipeline.KindWait, Wait: time.Hour}, testJob)

	assert.False(t, result.Succeeded)
	assert.Equal(t, FailureCancelled, result.Failure)
	assert.True(t, errors.Is(result.Err, context.Canceled))
}

func TestExecute_SyncUI(t *testing.T) {
	exec := NewStepExecutor(Options{UISyncer: syncerFunc(func(ctx context.Context, name string) (string, error) {
		return "synced " + name, nil
	})})

	result := exec.Execute(context.Background(), pipeline.Step{Name: "ui", Kind: pipeline.KindSyncUI}, testJob)

	require.True(t, result.Succeeded)
	assert.Equal(t, "synced loyalties", result.Output)
}

func TestExecute_SyncUIWithoutSyncer(t *testing.T) {
	exec := NewStepExecutor(Options{})

	result := exec.Execute(context.Background(), pipeline.Step{Name: "ui", Kind: pipeline.KindSyncUI}, testJob)

	assert.False(t, result.Succeeded)
	assert.Equal(t, FailureStart, result.Failure)
}

func TestTailBuffer_KeepsTail(t *testing.T) {
	b := &tailBuffer{limit: 4}
	_, _ = b.Write([]byte("abc"))
	_, _ = b.Write([]byte("defg"))
	assert.Equal(t, "defg", b.String())

	big := &tailBuffer{limit: maxOutputBytes}
	_, _ = big.Write([]byte(strings.Repeat("x", maxOutputBytes+10)))
	assert.Len(t, big.String(), maxOutputBytes)
}
