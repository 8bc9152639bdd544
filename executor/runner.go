package executor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"
)

// maxOutputBytes bounds captured output; the tail is kept.
const maxOutputBytes = 64 * 1024

// ErrStart wraps failures to launch a command at all.
var ErrStart = errors.New("failed to start command")

// Runner runs one shell command to completion.
type Runner interface {
	Run(ctx context.Context, dir, command string) (string, error)
}

// ShellRunner runs commands through "<shell> -c".
type ShellRunner struct {
	Shell string
}

func NewShellRunner(shell string) *ShellRunner {
	if shell == "" {
		shell = "sh"
	}
	return &ShellRunner{Shell: shell}
}

func (r *ShellRunner) Run(ctx context.Context, dir, command string) (string, error) {
	cmd := exec.CommandContext(ctx, r.Shell, "-c", command)
	cmd.Dir = dir
	// Children holding the pipes open must not stall Wait after a kill
	cmd.WaitDelay = 5 * time.Second

	out := &tailBuffer{limit: maxOutputBytes}
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStart, err)
	}
	if err := cmd.Wait(); err != nil {
		return out.String(), err
	}
	return out.String(), nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
