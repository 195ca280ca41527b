package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/envforge/envforge/pkg/gateway"
	"github.com/envforge/envforge/pkg/stores"
)

// TeardownService destroys feature environments best-effort: every
// remote deletion is attempted regardless of earlier failures, and the
// local record is removed unconditionally afterwards.
type TeardownService struct {
	projects stores.ProjectStore
	envs     stores.EnvironmentStore
	gw       gateway.Gateway
	audit    *stores.AuditStore
	tools    Toolchain
	confirm  ConfirmFunc
}

// NewTeardownService creates a teardown orchestrator. confirm gates
// destruction when the request is not forced; a nil confirm behaves as
// if every prompt were declined.
func NewTeardownService(
	projects stores.ProjectStore,
	envs stores.EnvironmentStore,
	gw gateway.Gateway,
	audit *stores.AuditStore,
	tools Toolchain,
	confirm ConfirmFunc,
) *TeardownService {
	return &TeardownService{
		projects: projects,
		envs:     envs,
		gw:       gw,
		audit:    audit,
		tools:    tools,
		confirm:  confirm,
	}
}

// Teardown destroys the environment for (project, feature). Remote
// failures are recovered per-resource and reported in the summary
// rather than aborting; only a missing record or a declined
// confirmation stops the operation, and in that case nothing is
// touched.
func (s *TeardownService) Teardown(ctx context.Context, req TeardownRequest) (*TeardownSummary, error) {
	env, err := s.envs.GetByFeature(req.Project, req.Feature)
	if err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			return nil, NewNotFoundError(
				fmt.Sprintf("no environment found for %s/%s", req.Project, req.Feature), err).
				WithCode(ErrCodeEnvironmentNotFound).
				WithHint("run `envforge list` to see active environments")
		}
		return nil, NewInternalError("failed to read environment store", err)
	}

	if !req.Force {
		prompt := fmt.Sprintf("Destroy environment %s (instance, %d database branches)?",
			env.Name, len(env.DatabaseBranches))
		ok, err := s.askConfirm(prompt)
		if err != nil {
			return nil, NewInternalError("confirmation prompt failed", err)
		}
		if !ok {
			s.auditEvent(ctx, "environment.teardown_cancelled", req.Project, req.Feature,
				stores.AuditOutcomeCancelled, nil)
			return nil, NewCancelledError("teardown cancelled")
		}
	}

	runID := uuid.NewString()

	log.Info().
		Str("run_id", runID).
		Str("instance", env.Name).
		Str("project", req.Project).
		Str("feature", req.Feature).
		Msg("tearing down feature environment")

	summary := &TeardownSummary{Instance: env.Name}
	if proj, err := s.projects.Get(req.Project); err == nil {
		summary.RepositoryURL = proj.SourceControl.RepoURL
		summary.HostingURL = proj.Hosting.URL
		summary.Branches = s.deleteBranches(ctx, proj, env)
	} else {
		// Without the project record the branching service cannot be
		// addressed; report every branch as not deleted.
		log.Warn().Err(err).Str("project", req.Project).Msg("project record missing, skipping database branches")
		for _, branch := range env.DatabaseBranches {
			summary.Branches = append(summary.Branches, BranchResult{Name: branch, Err: err})
		}
	}

	summary.InstanceDeleted, summary.InstanceHint = s.deleteInstance(ctx, env)

	// The record goes away regardless of remote outcome so a stale
	// entry never shadows a later create.
	if err := s.envs.Remove(env.Name); err != nil {
		log.Error().Err(err).Str("instance", env.Name).Msg("failed to remove environment record")
	} else {
		summary.RecordRemoved = true
	}

	outcome := stores.AuditOutcomeSucceeded
	if !summary.FullSuccess() {
		outcome = stores.AuditOutcomePartial
	}
	details := fmt.Sprintf(`{"run_id":%q}`, runID)
	s.auditEvent(ctx, "environment.torn_down", req.Project, req.Feature, outcome, &details)

	return summary, nil
}

func (s *TeardownService) askConfirm(prompt string) (bool, error) {
	if s.confirm == nil {
		return false, nil
	}
	return s.confirm(prompt)
}

// deleteBranches removes every database branch of the environment.
// Protected branches must have protection disabled first; a failure in
// either call marks the branch as not deleted and moves on.
func (s *TeardownService) deleteBranches(ctx context.Context, proj *stores.ProjectRecord, env *stores.EnvironmentRecord) []BranchResult {
	results := make([]BranchResult, 0, len(env.DatabaseBranches))
	for _, branch := range env.DatabaseBranches {
		if err := s.deleteBranch(ctx, proj.Database.ProjectRef, branch); err != nil {
			log.Warn().Err(err).Str("branch", branch).Msg("database branch deletion failed")
			results = append(results, BranchResult{Name: branch, Err: err})
			continue
		}
		results = append(results, BranchResult{Name: branch, Deleted: true})
	}
	return results
}

// deleteBranch disables protection and deletes one branch. Both calls
// are always attempted: a failed protection-disable usually means the
// branch is already unprotected or gone, so skipping the delete would
// leak it. The branch counts as deleted only when both calls succeed.
func (s *TeardownService) deleteBranch(ctx context.Context, projectRef, branch string) error {
	var errs []error
	if _, err := s.gw.RunCLI(ctx, s.tools.Database,
		"branches", "update",
		"--project-id", projectRef,
		branch,
		"--no-protection",
	); err != nil {
		errs = append(errs, fmt.Errorf("disable protection: %w", err))
	}
	if _, err := s.gw.RunCLI(ctx, s.tools.Database,
		"branches", "delete",
		"--project-id", projectRef,
		branch,
	); err != nil {
		errs = append(errs, fmt.Errorf("delete: %w", err))
	}
	return errors.Join(errs...)
}

// deleteInstance destroys the compute instance. On failure it returns
// the exact command the operator can run to finish the job by hand.
func (s *TeardownService) deleteInstance(ctx context.Context, env *stores.EnvironmentRecord) (bool, string) {
	if _, err := s.gw.RunCLI(ctx, s.tools.Compute,
		"machine", "destroy", env.Name, "--force",
	); err != nil {
		log.Warn().Err(err).Str("instance", env.Name).Msg("instance deletion failed")
		return false, fmt.Sprintf("%s machine destroy %s --force", s.tools.Compute, env.Name)
	}
	return true, ""
}

func (s *TeardownService) auditEvent(ctx context.Context, action, project, feature string, outcome stores.AuditOutcome, details *string) {
	if s.audit == nil {
		return
	}
	entry := &stores.AuditEntry{
		Action:  action,
		Project: project,
		Feature: feature,
		Outcome: outcome,
		Details: details,
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		log.Warn().Err(err).Str("action", action).Msg("failed to write audit entry")
	}
}
