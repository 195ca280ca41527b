package commands

import (
	"io"
	"strings"
	"testing"
)

func TestCreate_RejectsUnknownConflictPolicy(t *testing.T) {
	cmd := newCreateCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"add-auth", "--project", "acme", "--on-conflict", "sufix"})

	// The flag must be rejected before any config or store is touched,
	// not deferred until a name collision happens to occur.
	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected an error for an unknown conflict policy")
	}
	if !strings.Contains(err.Error(), "on-conflict") || !strings.Contains(err.Error(), "sufix") {
		t.Errorf("error should name the flag and the bad value: %v", err)
	}
}
