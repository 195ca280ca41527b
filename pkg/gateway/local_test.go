package gateway

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestGateway(t *testing.T) *CommandGateway {
	t.Helper()

	cfg := DefaultSSHConfig("deploy")
	gw, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create gateway: %v", err)
	}
	return gw
}

func TestRunCLI_CapturesOutput(t *testing.T) {
	gw := newTestGateway(t)

	result, err := gw.RunCLI(context.Background(), "echo", "hello", "world")
	if err != nil {
		t.Fatalf("RunCLI failed: %v", err)
	}
	if result.Stdout != "hello world" {
		t.Errorf("expected stdout %q, got %q", "hello world", result.Stdout)
	}
	if result.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %d", result.ExitCode)
	}
}

func TestRunCLI_NonZeroExit(t *testing.T) {
	gw := newTestGateway(t)

	result, err := gw.RunCLI(context.Background(), "sh", "-c", "echo oops >&2; exit 3")
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if result.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", result.ExitCode)
	}
	if result.Stderr != "oops" {
		t.Errorf("expected stderr %q, got %q", "oops", result.Stderr)
	}

	var gwErr *Error
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected *gateway.Error, got %T", err)
	}
	if gwErr.Op != "run-cli" || gwErr.Target != "sh" {
		t.Errorf("unexpected error context: op=%q target=%q", gwErr.Op, gwErr.Target)
	}
}

func TestRunCLI_MissingBinary(t *testing.T) {
	gw := newTestGateway(t)

	result, err := gw.RunCLI(context.Background(), "definitely-not-a-real-cli-xyz")
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if result.ExitCode != -1 {
		t.Errorf("expected exit code -1 when the command never ran, got %d", result.ExitCode)
	}
}

func TestRunCLI_ContextCancellation(t *testing.T) {
	gw := newTestGateway(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := gw.RunCLI(ctx, "sleep", "10")
	if err == nil {
		t.Fatal("expected error for cancelled command")
	}
}

func TestSSHConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SSHConfig)
		wantErr bool
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *SSHConfig) {},
		},
		{
			name:    "missing user",
			mutate:  func(c *SSHConfig) { c.User = "" },
			wantErr: true,
		},
		{
			name:    "invalid port",
			mutate:  func(c *SSHConfig) { c.Port = 0 },
			wantErr: true,
		},
		{
			name:    "port out of range",
			mutate:  func(c *SSHConfig) { c.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "zero connect timeout",
			mutate:  func(c *SSHConfig) { c.ConnectTimeout = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSSHConfig("deploy")
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Errorf("expected validation error, got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}
