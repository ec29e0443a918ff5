package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// interruptGrace is how long a process gets to exit after SIGINT before it
// is killed.
const interruptGrace = 100 * time.Millisecond

var errOutputLimit = errors.New("output limit exceeded")

// command describes one run of an external synthesizer.
type command struct {
	name      string
	args      []string
	stdin     string
	timeout   time.Duration
	maxOutput int
}

// limitedBuffer fails writes past max bytes.
type limitedBuffer struct {
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if b.max > 0 && b.buf.Len()+len(p) > b.max {
		return 0, errOutputLimit
	}
	return b.buf.Write(p)
}

// run executes c and returns its standard output. On timeout or
// cancellation the process is interrupted, then killed.
func (c command) run(ctx context.Context) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.Command(c.name, c.args...)
	if c.stdin != "" {
		cmd.Stdin = strings.NewReader(c.stdin)
	}
	stdout := &limitedBuffer{max: c.maxOutput}
	var stderr bytes.Buffer
	cmd.Stdout = stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", c.name, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			if errors.Is(err, errOutputLimit) {
				return nil, fmt.Errorf("%s: %w", c.name, errOutputLimit)
			}
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return nil, fmt.Errorf("%s failed: %w: %s", c.name, err, msg)
			}
			return nil, fmt.Errorf("%s failed: %w", c.name, err)
		}
		return stdout.buf.Bytes(), nil

	case <-ctx.Done():
		_ = cmd.Process.Signal(os.Interrupt)
		select {
		case <-done:
		case <-time.After(interruptGrace):
			_ = cmd.Process.Kill()
			<-done
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
		}
		return nil, ctx.Err()
	}
}

// lookPath reports a missing binary as ErrEngineNotAvailable.
func lookPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s not found in PATH", ErrEngineNotAvailable, name)
	}
	return path, nil
}
