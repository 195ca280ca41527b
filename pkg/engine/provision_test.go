package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/envforge/envforge/pkg/gateway"
	"github.com/envforge/envforge/pkg/naming"
	"github.com/envforge/envforge/pkg/stores"
)

var testTools = Toolchain{
	Compute:       "flyctl",
	Database:      "neonctl",
	SourceControl: "gh",
}

// scriptedGateway records every call and fails any call matching a
// configured pattern. A pattern matches the whole rendered call or a
// leading sequence of its tokens, so "branches delete ... add-auth"
// does not accidentally match the add-auth-test call.
type scriptedGateway struct {
	calls   []string
	failOn  map[string]error
	uploads map[string][]byte
}

func newScriptedGateway() *scriptedGateway {
	return &scriptedGateway{
		failOn:  map[string]error{},
		uploads: map[string][]byte{},
	}
}

func (g *scriptedGateway) record(call string) error {
	g.calls = append(g.calls, call)
	for pattern, err := range g.failOn {
		if call == pattern || strings.HasPrefix(call, pattern+" ") {
			return err
		}
	}
	return nil
}

func (g *scriptedGateway) RunCLI(_ context.Context, name string, args ...string) (gateway.Result, error) {
	if err := g.record("cli: " + name + " " + strings.Join(args, " ")); err != nil {
		return gateway.Result{ExitCode: 1}, err
	}
	return gateway.Result{}, nil
}

func (g *scriptedGateway) RunRemote(_ context.Context, host, command string) (gateway.Result, error) {
	if err := g.record("remote: " + host + ": " + command); err != nil {
		return gateway.Result{ExitCode: 1}, err
	}
	return gateway.Result{}, nil
}

func (g *scriptedGateway) Upload(_ context.Context, host, remotePath string, content []byte, _ os.FileMode) error {
	if err := g.record("upload: " + host + ": " + remotePath); err != nil {
		return err
	}
	g.uploads[host+":"+remotePath] = content
	return nil
}

func (g *scriptedGateway) callsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range g.calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func acmeProject() stores.ProjectRecord {
	return stores.ProjectRecord{
		Name:      "acme",
		CreatedAt: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC),
		SourceControl: stores.SourceControl{
			RepoURL: "git@github.com:acme/acme.git",
			Owner:   "acme",
			Repo:    "acme",
		},
		Hosting: stores.HostingTarget{
			URL:   "https://acme.fly.dev",
			AppID: "acme-app",
		},
		Database: stores.DatabaseProject{
			ProjectRef: "proj-ref-1",
			Region:     "fra",
		},
	}
}

func newProvisionFixture(t *testing.T) (*ProvisionService, *stores.MemoryEnvironmentStore, *scriptedGateway) {
	t.Helper()
	projects := stores.NewMemoryProjectStore()
	if err := projects.Upsert(acmeProject()); err != nil {
		t.Fatal(err)
	}
	envs := stores.NewMemoryEnvironmentStore()
	gw := newScriptedGateway()
	return NewProvisionService(projects, envs, gw, nil, testTools), envs, gw
}

func TestProvision_HappyPath(t *testing.T) {
	svc, envs, gw := newProvisionFixture(t)

	res, err := svc.Provision(context.Background(), ProvisionRequest{
		Project:        "acme",
		Feature:        "add-auth",
		ConflictPolicy: naming.PolicyFail,
	})
	if err != nil {
		t.Fatalf("provision failed: %v", err)
	}

	rec := res.Record
	if rec.Name != "acme-add-auth" {
		t.Errorf("instance name = %q, want acme-add-auth", rec.Name)
	}
	if rec.RemoteHost != "acme-add-auth.internal" {
		t.Errorf("remote host = %q", rec.RemoteHost)
	}
	want := []string{"add-auth", "add-auth-test"}
	if len(rec.DatabaseBranches) != 2 || rec.DatabaseBranches[0] != want[0] || rec.DatabaseBranches[1] != want[1] {
		t.Errorf("database branches = %v, want %v", rec.DatabaseBranches, want)
	}
	if rec.SourceBranch != "add-auth" {
		t.Errorf("source branch = %q", rec.SourceBranch)
	}

	// Record must be in the store.
	got, err := envs.GetByFeature("acme", "add-auth")
	if err != nil {
		t.Fatalf("record not persisted: %v", err)
	}
	if got.Name != rec.Name {
		t.Errorf("stored record name = %q", got.Name)
	}

	// The gateway must have seen the full sequence: one machine create,
	// two remote git calls, two branch creates, one upload, one restart.
	if n := len(gw.callsWithPrefix("cli: flyctl machine create")); n != 1 {
		t.Errorf("machine create calls = %d", n)
	}
	if n := len(gw.callsWithPrefix("cli: neonctl branches create")); n != 2 {
		t.Errorf("branch create calls = %d", n)
	}
	if n := len(gw.callsWithPrefix("upload: acme-add-auth.internal: app/.envforge.yaml")); n != 1 {
		t.Errorf("manifest uploads = %d", n)
	}
	manifest := string(gw.uploads["acme-add-auth.internal:app/.envforge.yaml"])
	if !strings.Contains(manifest, "database_branch: add-auth") {
		t.Errorf("manifest missing primary branch:\n%s", manifest)
	}
	if !strings.Contains(manifest, "database_password:") {
		t.Errorf("manifest missing password:\n%s", manifest)
	}
}

func TestProvision_UnknownProject(t *testing.T) {
	svc, _, gw := newProvisionFixture(t)

	_, err := svc.Provision(context.Background(), ProvisionRequest{
		Project: "ghost",
		Feature: "add-auth",
	})
	if !IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	if Hint(err) == "" {
		t.Error("expected a remediation hint")
	}
	if len(gw.calls) != 0 {
		t.Errorf("no remote calls expected, got %v", gw.calls)
	}
}

func TestProvision_DuplicateFeatureIsConflict(t *testing.T) {
	svc, envs, gw := newProvisionFixture(t)
	if err := envs.Upsert(stores.EnvironmentRecord{
		Name:    "acme-add-auth",
		Project: "acme",
		Feature: "add-auth",
	}); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Provision(context.Background(), ProvisionRequest{
		Project:        "acme",
		Feature:        "add-auth",
		ConflictPolicy: naming.PolicySuffix,
	})
	if !IsConflict(err) {
		t.Fatalf("expected conflict error, got %v", err)
	}
	// An active (project, feature) pair is a hard conflict; the suffix
	// policy must not be applied to work around it.
	if len(gw.calls) != 0 {
		t.Errorf("no remote calls expected, got %v", gw.calls)
	}
}

func TestProvision_NameCollisionSuffixPolicy(t *testing.T) {
	svc, envs, gw := newProvisionFixture(t)
	// Another feature of another project occupies the base name.
	if err := envs.Upsert(stores.EnvironmentRecord{
		Name:    "acme-add-auth",
		Project: "other",
		Feature: "legacy",
	}); err != nil {
		t.Fatal(err)
	}

	res, err := svc.Provision(context.Background(), ProvisionRequest{
		Project:        "acme",
		Feature:        "add-auth",
		ConflictPolicy: naming.PolicySuffix,
	})
	if err != nil {
		t.Fatalf("provision failed: %v", err)
	}
	if !strings.HasPrefix(res.Record.Name, "acme-add-auth-") {
		t.Errorf("expected suffixed name, got %q", res.Record.Name)
	}
	if res.Record.Name == "acme-add-auth" {
		t.Error("name was not suffixed")
	}
	if n := len(gw.callsWithPrefix("cli: flyctl machine create")); n != 1 {
		t.Errorf("machine create calls = %d", n)
	}
}

func TestProvision_NameCollisionFailPolicy(t *testing.T) {
	svc, envs, gw := newProvisionFixture(t)
	if err := envs.Upsert(stores.EnvironmentRecord{
		Name:    "acme-add-auth",
		Project: "other",
		Feature: "legacy",
	}); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Provision(context.Background(), ProvisionRequest{
		Project:        "acme",
		Feature:        "add-auth",
		ConflictPolicy: naming.PolicyFail,
	})
	if !IsConflict(err) {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if len(gw.calls) != 0 {
		t.Errorf("no remote calls expected, got %v", gw.calls)
	}
}

func TestProvision_MidSequenceFailureLeavesNoRecord(t *testing.T) {
	svc, envs, gw := newProvisionFixture(t)
	gw.failOn["cli: neonctl branches create --project-id proj-ref-1 --name add-auth-test"] =
		fmt.Errorf("branch quota exceeded")

	_, err := svc.Provision(context.Background(), ProvisionRequest{
		Project:        "acme",
		Feature:        "add-auth",
		ConflictPolicy: naming.PolicyFail,
	})
	if err == nil {
		t.Fatal("expected provisioning to fail")
	}
	if !IsRemote(err) {
		t.Errorf("expected remote classification, got %v", err)
	}

	var orchErr *OrchestrationError
	if !errors.As(err, &orchErr) {
		t.Fatalf("expected *OrchestrationError, got %T", err)
	}
	if orchErr.Step != StepDatabaseBranchesCreated {
		t.Errorf("failed step = %q, want %q", orchErr.Step, StepDatabaseBranchesCreated)
	}

	// No record for the pair, in spite of the instance and first branch
	// having been created remotely.
	if _, err := envs.GetByFeature("acme", "add-auth"); err == nil {
		t.Error("no environment record should exist after an aborted run")
	}
	// The sequence stopped: wiring and restart were never attempted.
	if n := len(gw.callsWithPrefix("upload:")); n != 0 {
		t.Errorf("expected no uploads after abort, got %d", n)
	}
}

func TestProvision_InstanceAllocationFailure(t *testing.T) {
	svc, envs, gw := newProvisionFixture(t)
	gw.failOn["cli: flyctl machine create"] = fmt.Errorf("capacity unavailable")

	_, err := svc.Provision(context.Background(), ProvisionRequest{
		Project:        "acme",
		Feature:        "add-auth",
		ConflictPolicy: naming.PolicyFail,
	})
	var orchErr *OrchestrationError
	if !errors.As(err, &orchErr) || orchErr.Step != StepInstanceAllocated {
		t.Fatalf("expected failure at %s, got %v", StepInstanceAllocated, err)
	}
	if _, err := envs.GetByFeature("acme", "add-auth"); err == nil {
		t.Error("no environment record should exist")
	}
	// Nothing past the allocation step may run.
	if n := len(gw.callsWithPrefix("remote:")); n != 0 {
		t.Errorf("expected no remote exec calls, got %d", n)
	}
}

func TestProvision_RegionOverride(t *testing.T) {
	svc, _, gw := newProvisionFixture(t)

	_, err := svc.Provision(context.Background(), ProvisionRequest{
		Project:        "acme",
		Feature:        "add-auth",
		ConflictPolicy: naming.PolicyFail,
		Region:         "iad",
	})
	if err != nil {
		t.Fatalf("provision failed: %v", err)
	}
	creates := gw.callsWithPrefix("cli: flyctl machine create")
	if len(creates) != 1 || !strings.Contains(creates[0], "--region iad") {
		t.Errorf("expected region override in create call, got %v", creates)
	}
}
