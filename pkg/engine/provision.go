package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/envforge/envforge/pkg/gateway"
	"github.com/envforge/envforge/pkg/naming"
	"github.com/envforge/envforge/pkg/stores"
)

// manifestPath is where the wiring manifest lands on the instance,
// relative to the SSH user's home directory.
const manifestPath = "app/.envforge.yaml"

// databasePasswordLength matches the length the branching service
// accepts for role passwords.
const databasePasswordLength = 24

// ProvisionService allocates feature environments end-to-end and
// persists the record only on full success. Remote resources already
// allocated before an abort are left in place for manual or subsequent
// cleanup; there is no automatic rollback.
type ProvisionService struct {
	projects stores.ProjectStore
	envs     stores.EnvironmentStore
	gw       gateway.Gateway
	audit    *stores.AuditStore
	tools    Toolchain
}

// NewProvisionService creates a provisioning orchestrator. The audit
// store may be nil; audit writes are best-effort either way.
func NewProvisionService(
	projects stores.ProjectStore,
	envs stores.EnvironmentStore,
	gw gateway.Gateway,
	audit *stores.AuditStore,
	tools Toolchain,
) *ProvisionService {
	return &ProvisionService{
		projects: projects,
		envs:     envs,
		gw:       gw,
		audit:    audit,
		tools:    tools,
	}
}

// Provision runs the linear creation sequence for a feature
// environment. Each transition is a distinct remote call; the first
// failure aborts the remaining transitions and surfaces the failed
// step. No record is written on abort.
func (s *ProvisionService) Provision(ctx context.Context, req ProvisionRequest) (*ProvisionResult, error) {
	// Run ID correlates log lines and audit entries of one attempt.
	runID := uuid.NewString()

	log.Info().
		Str("run_id", runID).
		Str("project", req.Project).
		Str("feature", req.Feature).
		Msg("provisioning feature environment")

	proj, err := s.projects.Get(req.Project)
	if err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			return nil, NewNotFoundError(fmt.Sprintf("project %q not found", req.Project), err).
				WithCode(ErrCodeProjectNotFound).
				WithHint("run `envforge project list` to see known projects")
		}
		return nil, NewInternalError("failed to read project store", err)
	}

	// Step 1: resolve the instance name.
	name, err := s.resolveName(req)
	if err != nil {
		return nil, err
	}

	region := req.Region
	if region == "" {
		region = proj.Database.Region
	}

	// Step 2: allocate the compute instance.
	if _, err := s.gw.RunCLI(ctx, s.tools.Compute,
		"machine", "create",
		"--app", proj.Hosting.AppID,
		"--name", name,
		"--region", region,
	); err != nil {
		return nil, s.stepFailed(ctx, req, runID, StepInstanceAllocated, "instance allocation failed", err)
	}

	host := name + ".internal"
	log.Info().Str("instance", name).Str("host", host).Msg("instance allocated")

	// Step 3: clone the project repository onto the instance.
	if _, err := s.gw.RunRemote(ctx, host,
		fmt.Sprintf("git clone %s app", proj.SourceControl.RepoURL),
	); err != nil {
		return nil, s.stepFailed(ctx, req, runID, StepRepositoryCloned, "repository clone failed", err)
	}

	// Step 4: create and publish the feature branch.
	if _, err := s.gw.RunRemote(ctx, host,
		fmt.Sprintf("cd app && git checkout -b %s && git push -u origin %s", req.Feature, req.Feature),
	); err != nil {
		return nil, s.stepFailed(ctx, req, runID, StepBranchCreated, "branch creation failed", err)
	}

	// Step 5: create the database branches. A primary branch for the
	// feature and an isolated test branch; each is recorded only after
	// its creation call succeeds.
	branches := []string{req.Feature, req.Feature + "-test"}
	created := make([]string, 0, len(branches))
	for _, branch := range branches {
		if _, err := s.gw.RunCLI(ctx, s.tools.Database,
			"branches", "create",
			"--project-id", proj.Database.ProjectRef,
			"--name", branch,
		); err != nil {
			return nil, s.stepFailed(ctx, req, runID, StepDatabaseBranchesCreated,
				fmt.Sprintf("database branch %q creation failed", branch), err)
		}
		created = append(created, branch)
	}

	// Step 6: wire the environment together.
	if err := s.wireEnvironment(ctx, host, proj, req, created); err != nil {
		return nil, s.stepFailed(ctx, req, runID, StepEnvironmentWired, "environment wiring failed", err)
	}

	// Step 7: persist the record. Only now does the local store claim
	// the environment exists.
	record := stores.EnvironmentRecord{
		Name:             name,
		RemoteHost:       host,
		Project:          req.Project,
		Feature:          req.Feature,
		CreatedAt:        time.Now(),
		DatabaseBranches: created,
		SourceBranch:     req.Feature,
	}
	if err := s.envs.Upsert(record); err != nil {
		return nil, s.stepFailed(ctx, req, runID, StepRecordPersisted, "failed to persist environment record",
			NewInternalError("environment store write failed", err))
	}

	details := fmt.Sprintf(`{"run_id":%q}`, runID)
	s.auditEvent(ctx, "environment.provisioned", req.Project, req.Feature, stores.AuditOutcomeSucceeded, &details)

	log.Info().
		Str("instance", name).
		Strs("database_branches", created).
		Msg("feature environment provisioned")

	return &ProvisionResult{Record: record}, nil
}

// resolveName picks a unique instance name for the environment,
// applying the request's conflict policy when the desired name is
// taken. An active environment for the same (project, feature) pair is
// always a conflict, regardless of policy.
func (s *ProvisionService) resolveName(req ProvisionRequest) (string, error) {
	if _, err := s.envs.GetByFeature(req.Project, req.Feature); err == nil {
		return "", NewConflictError(
			fmt.Sprintf("an environment for %s/%s already exists", req.Project, req.Feature), nil).
			WithCode(ErrCodeEnvironmentExists).
			WithStep(StepNameResolved).
			WithHint(fmt.Sprintf("run `envforge clean %s --project %s` first", req.Feature, req.Project))
	} else if !errors.Is(err, stores.ErrNotFound) {
		return "", NewInternalError("failed to read environment store", err)
	}

	name := fmt.Sprintf("%s-%s", req.Project, req.Feature)
	if _, err := s.envs.Get(name); errors.Is(err, stores.ErrNotFound) {
		return name, nil
	}

	resolved, err := naming.Resolve(name, req.ConflictPolicy)
	if err != nil {
		return "", NewConflictError(fmt.Sprintf("instance name %q is taken", name), err).
			WithCode(ErrCodeNameTaken).
			WithStep(StepNameResolved).
			WithHint("pass --on-conflict suffix to pick a unique name automatically")
	}

	// The resolver does not check uniqueness itself; re-check here.
	if _, err := s.envs.Get(resolved); err == nil {
		return "", NewConflictError(fmt.Sprintf("resolved instance name %q is also taken", resolved), nil).
			WithCode(ErrCodeNameTaken).
			WithStep(StepNameResolved)
	}

	return resolved, nil
}

// wireEnvironment uploads the wiring manifest and restarts the app so
// it picks up its database branch.
func (s *ProvisionService) wireEnvironment(
	ctx context.Context,
	host string,
	proj *stores.ProjectRecord,
	req ProvisionRequest,
	branches []string,
) error {
	password, err := naming.GeneratePassword(databasePasswordLength)
	if err != nil {
		return fmt.Errorf("failed to generate database password: %w", err)
	}

	manifest := envManifest{
		Project:          req.Project,
		Feature:          req.Feature,
		DatabaseProject:  proj.Database.ProjectRef,
		DatabaseBranch:   branches[0],
		DatabaseBranches: branches,
		DatabasePassword: password,
		SourceBranch:     req.Feature,
	}
	data, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to render environment manifest: %w", err)
	}

	if err := s.gw.Upload(ctx, host, manifestPath, data, 0o600); err != nil {
		return err
	}

	if _, err := s.gw.RunRemote(ctx, host, "sudo systemctl restart app"); err != nil {
		return err
	}

	return nil
}

// stepFailed wraps a step failure, records it in the audit log, and
// classifies it for the caller. Earlier successful steps are not
// rolled back.
func (s *ProvisionService) stepFailed(ctx context.Context, req ProvisionRequest, runID string, step Step, message string, err error) error {
	log.Error().
		Err(err).
		Str("run_id", runID).
		Str("project", req.Project).
		Str("feature", req.Feature).
		Str("step", string(step)).
		Msg("provisioning aborted")

	details := fmt.Sprintf(`{"run_id":%q,"step":%q}`, runID, step)
	s.auditEvent(ctx, "environment.provision_failed", req.Project, req.Feature, stores.AuditOutcomeFailed, &details)

	var orchErr *OrchestrationError
	if errors.As(err, &orchErr) {
		return orchErr.WithStep(step)
	}
	return NewRemoteError(message, err).WithStep(step).WithCode(ErrCodeStepFailed)
}

// auditEvent appends an audit entry. Audit failures are logged and
// swallowed; history must never block orchestration.
func (s *ProvisionService) auditEvent(ctx context.Context, action, project, feature string, outcome stores.AuditOutcome, details *string) {
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
