package session

import (
	"context"
	"errors"
	"io"
	"os/exec"
)

// Process is a started child process.
type Process interface {
	PID() int
	// Wait blocks until the process exits. The exit status itself is not an
	// error; only a failure to wait is.
	Wait() error
}

// Launcher starts child processes.
type Launcher interface {
	Start(ctx context.Context, program string, args []string) (Process, error)
}

// OSLauncher starts real processes that share the given standard streams.
type OSLauncher struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// NewOSLauncher creates a launcher whose children inherit the given streams.
func NewOSLauncher(stdin io.Reader, stdout, stderr io.Writer) *OSLauncher {
	return &OSLauncher{stdin: stdin, stdout: stdout, stderr: stderr}
}

// Start invokes program directly with args as its literal argument vector.
func (l *OSLauncher) Start(ctx context.Context, program string, args []string) (Process, error) {
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Stdin = l.stdin
	cmd.Stdout = l.stdout
	cmd.Stderr = l.stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &osProcess{cmd: cmd}, nil
}

type osProcess struct {
	cmd *exec.Cmd
}

func (p *osProcess) PID() int {
	return p.cmd.Process.Pid
}

func (p *osProcess) Wait() error {
	err := p.cmd.Wait()

	// A non-zero exit or a signal is still a completed wait.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
