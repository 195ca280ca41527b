package engine

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/envforge/envforge/pkg/naming"
	"github.com/envforge/envforge/pkg/stores"
)

// Toolchain names the external CLIs the orchestrators drive. The
// engine only decides which calls to make and in what order; the CLIs
// themselves are external collaborators reached through the gateway.
type Toolchain struct {
	// Compute is the compute-instance provider CLI (e.g. "flyctl")
	Compute string

	// Database is the database-branching service CLI (e.g. "neonctl")
	Database string

	// SourceControl is the source-control host CLI (e.g. "gh")
	SourceControl string
}

// Step identifies a transition in the linear provisioning sequence.
type Step string

const (
	StepNameResolved            Step = "name-resolved"
	StepInstanceAllocated       Step = "instance-allocated"
	StepRepositoryCloned        Step = "repository-cloned"
	StepBranchCreated           Step = "branch-created"
	StepDatabaseBranchesCreated Step = "database-branches-created"
	StepEnvironmentWired        Step = "environment-wired"
	StepRecordPersisted         Step = "record-persisted"
)

// ProvisionRequest describes the feature environment to create.
type ProvisionRequest struct {
	// Project is the name of an existing project record.
	Project string

	// Feature is the logical feature/branch name to serve.
	Feature string

	// ConflictPolicy selects how an instance-name collision is handled.
	ConflictPolicy naming.Policy

	// Region overrides the project's database region for the instance,
	// optional.
	Region string
}

// ProvisionResult is returned on full provisioning success.
type ProvisionResult struct {
	Record stores.EnvironmentRecord
}

// TeardownRequest locates the environment to destroy.
type TeardownRequest struct {
	// Project and Feature form the lookup key.
	Project string
	Feature string

	// Force skips the interactive confirmation.
	Force bool
}

// ConfirmFunc asks the operator to confirm a destructive action.
// Returning false aborts cleanly with a cancellation signal.
type ConfirmFunc func(prompt string) (bool, error)

// BranchResult records the fate of one database branch during
// teardown. A branch counts as deleted only when both the
// protection-disable and the delete call completed.
type BranchResult struct {
	Name    string
	Deleted bool
	Err     error
}

// TeardownSummary aggregates the outcome of a best-effort teardown so
// a human can finish any remaining cleanup manually.
type TeardownSummary struct {
	// Instance is the compute instance name.
	Instance string

	// InstanceDeleted reports whether the instance-delete call
	// succeeded.
	InstanceDeleted bool

	// InstanceHint carries the manual command to finish instance
	// deletion when the call failed.
	InstanceHint string

	// Branches lists the per-branch outcomes in teardown order.
	Branches []BranchResult

	// RecordRemoved reports whether the local record was removed.
	// Removal is attempted unconditionally, even after remote failures.
	RecordRemoved bool

	// RepositoryURL and HostingURL name the project's still-intact
	// persistent resources.
	RepositoryURL string
	HostingURL    string
}

// DeletedBranches returns the identifiers of branches that were fully
// deleted.
func (s *TeardownSummary) DeletedBranches() []string {
	return lo.FilterMap(s.Branches, func(b BranchResult, _ int) (string, bool) {
		return b.Name, b.Deleted
	})
}

// FailedBranches returns the identifiers of branches whose deletion
// did not complete.
func (s *TeardownSummary) FailedBranches() []string {
	return lo.FilterMap(s.Branches, func(b BranchResult, _ int) (string, bool) {
		return b.Name, !b.Deleted
	})
}

// FullSuccess reports whether every remote resource was deleted.
func (s *TeardownSummary) FullSuccess() bool {
	return s.InstanceDeleted && len(s.FailedBranches()) == 0
}

// String renders the operator-facing summary.
func (s *TeardownSummary) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Environment %s torn down\n", s.Instance)

	deleted := s.DeletedBranches()
	failed := s.FailedBranches()
	if len(failed) == 0 {
		fmt.Fprintf(&b, "  database branches deleted: %d/%d\n", len(deleted), len(s.Branches))
	} else {
		fmt.Fprintf(&b, "  database branches deleted: %d/%d (failed: %s)\n",
			len(deleted), len(s.Branches), strings.Join(failed, ", "))
	}

	if s.InstanceDeleted {
		fmt.Fprintf(&b, "  instance deleted: yes\n")
	} else {
		fmt.Fprintf(&b, "  instance deleted: NO — finish manually: %s\n", s.InstanceHint)
	}

	if s.RecordRemoved {
		fmt.Fprintf(&b, "  local record removed: yes\n")
	} else {
		fmt.Fprintf(&b, "  local record removed: NO\n")
	}

	fmt.Fprintf(&b, "Still intact:\n")
	fmt.Fprintf(&b, "  repository: %s\n", s.RepositoryURL)
	fmt.Fprintf(&b, "  hosting:    %s", s.HostingURL)

	return b.String()
}

// envManifest is the wiring file uploaded to a freshly provisioned
// instance. The app reads it on start to find its database branch.
type envManifest struct {
	Project          string   `yaml:"project"`
	Feature          string   `yaml:"feature"`
	DatabaseProject  string   `yaml:"database_project"`
	DatabaseBranch   string   `yaml:"database_branch"`
	DatabaseBranches []string `yaml:"database_branches"`
	DatabasePassword string   `yaml:"database_password"`
	SourceBranch     string   `yaml:"source_branch"`
}
