// Package prereq verifies that the external tools and accounts a
// provisioning run depends on are available before any remote call is
// made.
package prereq

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog/log"

	"github.com/envforge/envforge/pkg/gateway"
)

// Config names what a run requires.
type Config struct {
	// Tools are the external CLIs that must be discoverable on PATH.
	Tools []string

	// SourceControlCLI is the CLI used to verify source-control host
	// authentication (e.g. "gh").
	SourceControlCLI string
}

// Result is the outcome of a prerequisite check. Warnings are
// informational and never block execution.
type Result struct {
	Passed   bool
	Errors   []string
	Warnings []string
}

// Checker runs prerequisite checks through the gateway.
type Checker struct {
	gw gateway.Gateway

	// lookPath is injectable for tests; defaults to exec.LookPath.
	lookPath func(name string) (string, error)
}

// NewChecker creates a Checker that resolves tools on the local PATH.
func NewChecker(gw gateway.Gateway) *Checker {
	return &Checker{gw: gw, lookPath: exec.LookPath}
}

// NewCheckerWithLookup creates a Checker with a custom tool lookup,
// used by tests to avoid depending on the host PATH.
func NewCheckerWithLookup(gw gateway.Gateway, lookPath func(name string) (string, error)) *Checker {
	return &Checker{gw: gw, lookPath: lookPath}
}

// Check verifies every prerequisite and accumulates all failures so
// the caller sees the complete remediation list in one pass. It never
// short-circuits after the first failure.
func (c *Checker) Check(ctx context.Context, cfg Config) Result {
	result := Result{}

	for _, tool := range cfg.Tools {
		if _, err := c.lookPath(tool); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("required tool %q not found on PATH; install it and re-run", tool))
		}
	}

	if cfg.SourceControlCLI != "" {
		if res, err := c.gw.RunCLI(ctx, cfg.SourceControlCLI, "auth", "status"); err != nil {
			diag := res.Stderr
			if diag == "" {
				diag = err.Error()
			}
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s authentication check failed: %s", cfg.SourceControlCLI, diag))
		}
	}

	// The hosting-target credential is deliberately not verified with a
	// "whoami" style call here: that check is empirically unreliable.
	// Commands that need the credential pass it explicitly instead.

	result.Passed = len(result.Errors) == 0

	log.Debug().
		Bool("passed", result.Passed).
		Int("errors", len(result.Errors)).
		Int("warnings", len(result.Warnings)).
		Msg("prerequisite check completed")

	return result
}
