package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// CommandGateway is the production Gateway: remote calls over SSH,
// local CLI calls via os/exec.
type CommandGateway struct {
	ssh SSHConfig
}

// New creates a CommandGateway with the given SSH settings.
func New(sshConfig SSHConfig) (*CommandGateway, error) {
	if err := sshConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ssh config: %w", err)
	}
	return &CommandGateway{ssh: sshConfig}, nil
}

// RunCLI runs a named external CLI locally with the given arguments.
// Credential values are passed as arguments by the caller, never read
// from the environment here.
func (g *CommandGateway) RunCLI(ctx context.Context, name string, args ...string) (Result, error) {
	startTime := time.Now()

	log.Debug().
		Str("cli", name).
		Strs("args", args).
		Msg("executing local CLI")

	cmd := exec.CommandContext(ctx, name, args...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	runErr := cmd.Run()

	result := Result{
		Stdout:   strings.TrimSpace(stdoutBuf.String()),
		Stderr:   strings.TrimSpace(stderrBuf.String()),
		Duration: time.Since(startTime),
	}

	log.Debug().
		Str("cli", name).
		Dur("duration", result.Duration).
		Err(runErr).
		Msg("local CLI completed")

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, &Error{
				Op:       "run-cli",
				Target:   name,
				ExitCode: result.ExitCode,
				Err:      fmt.Errorf("command exited with code %d: %s", result.ExitCode, result.Stderr),
			}
		}
		result.ExitCode = -1
		return result, &Error{Op: "run-cli", Target: name, ExitCode: -1, Err: runErr}
	}

	return result, nil
}
