package stores

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestAuditStore(t *testing.T) *AuditStore {
	t.Helper()

	store, err := NewAuditStore(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("failed to create audit store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to init audit store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate audit store: %v", err)
	}

	return store
}

func TestAuditStore_AppendAndList(t *testing.T) {
	store := newTestAuditStore(t)
	ctx := context.Background()

	entries := []*AuditEntry{
		{Action: "environment.provisioned", Project: "acme", Feature: "add-auth", Outcome: AuditOutcomeSucceeded},
		{Action: "environment.teardown", Project: "acme", Feature: "add-auth", Outcome: AuditOutcomePartial},
		{Action: "environment.provisioned", Project: "globex", Feature: "fix-billing", Outcome: AuditOutcomeFailed},
	}
	for _, entry := range entries {
		if err := store.Append(ctx, entry); err != nil {
			t.Fatalf("append failed: %v", err)
		}
		if entry.ID == 0 {
			t.Errorf("expected append to populate the entry ID")
		}
		if entry.Timestamp.IsZero() {
			t.Errorf("expected append to populate the timestamp")
		}
	}

	all, err := store.List(ctx, nil, 10, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}

	project := "acme"
	filtered, err := store.List(ctx, &project, 10, 0)
	if err != nil {
		t.Fatalf("filtered list failed: %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("expected 2 acme entries, got %d", len(filtered))
	}
	for _, entry := range filtered {
		if entry.Project != "acme" {
			t.Errorf("filter leaked entry for project %q", entry.Project)
		}
	}
}

func TestAuditStore_MigrateIsIdempotent(t *testing.T) {
	store := newTestAuditStore(t)

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
}
