// Package gateway executes commands against remote hosts over SSH and
// against named external CLIs via local process invocation. It is the
// only path through which the orchestrators touch remote systems.
package gateway

import (
	"context"
	"os"
	"time"
)

// Result captures the output of a single command invocation.
type Result struct {
	// Stdout is the trimmed standard output of the command
	Stdout string

	// Stderr is the trimmed standard error of the command
	Stderr string

	// ExitCode is the command's exit code (0 on success)
	ExitCode int

	// Duration is the total execution time
	Duration time.Duration
}

// Gateway is the boundary through which orchestrators issue external
// calls. Two capability variants: remote-host execution over a secure
// shell channel, and local invocation of a named CLI. Implementations
// must honor context cancellation on every call.
type Gateway interface {
	// RunRemote runs a shell command on the named remote host.
	RunRemote(ctx context.Context, host string, cmd string) (Result, error)

	// RunCLI runs a named external CLI locally with the given arguments.
	RunCLI(ctx context.Context, name string, args ...string) (Result, error)

	// Upload writes content to a file on the named remote host.
	Upload(ctx context.Context, host string, remotePath string, content []byte, mode os.FileMode) error
}

// Error represents a failure at the gateway boundary.
type Error struct {
	// Op is the operation that failed (e.g. "run-remote", "run-cli")
	Op string

	// Target is the host or CLI name the operation was issued against
	Target string

	// ExitCode is the command exit code, or -1 when the command did not
	// run to completion
	ExitCode int

	// Err is the underlying error
	Err error
}

func (e *Error) Error() string {
	return e.Op + " " + e.Target + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
