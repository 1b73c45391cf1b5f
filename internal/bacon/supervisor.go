// Package bacon owns the interaction with the bacon checker itself:
// supervising a background instance and validating its preferences file.
package bacon

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"

	"golang.org/x/sync/errgroup"
)

// Supervisor owns one running checker subprocess. The child is killed when
// the supervising context is cancelled, so it can never outlive the session
// that started it.
type Supervisor struct {
	ctx     context.Context
	cmd     *exec.Cmd
	readers *errgroup.Group
}

// Start spawns the checker with no stdin and piped stdout/stderr. Both
// output streams are forwarded line by line into the log unless forwarding
// is disabled. Start fails only if the process cannot be spawned.
func Start(ctx context.Context, command string, args []string, workingDir string, forwardLogs bool) (*Supervisor, error) {
	slog.Info("starting checker in background", "command", command, "args", args, "dir", workingDir)

	cmd := exec.CommandContext(ctx, command, args...)
	if workingDir != "" {
		cmd.Dir = workingDir
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open checker stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open checker stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", command, err)
	}

	// One independent reader per stream; they share nothing but the log
	// sink and end when the child exits or is killed.
	readers := new(errgroup.Group)
	readers.Go(func() error {
		forwardLines(stdout, "["+command+" stdout] ", slog.LevelInfo, forwardLogs)
		return nil
	})
	readers.Go(func() error {
		forwardLines(stderr, "["+command+" stderr] ", slog.LevelError, forwardLogs)
		return nil
	})

	return &Supervisor{ctx: ctx, cmd: cmd, readers: readers}, nil
}

// Wait blocks until the child exits on its own or the supervising context
// is cancelled, whichever comes first. Being killed on cancellation is a
// clean shutdown, not an error.
func (s *Supervisor) Wait() error {
	_ = s.readers.Wait()
	if err := s.cmd.Wait(); err != nil && s.ctx.Err() == nil {
		return fmt.Errorf("checker exited: %w", err)
	}
	return nil
}

// forwardLines drains one output stream. The pipe must be consumed even
// when forwarding is off, otherwise the child blocks on a full buffer.
func forwardLines(r io.Reader, prefix string, level slog.Level, forward bool) {
	if !forward {
		_, _ = io.Copy(io.Discard, r)
		return
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		slog.Log(context.Background(), level, prefix+scanner.Text())
	}
}
