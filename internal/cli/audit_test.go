package cli

import (
	"path/filepath"
	"testing"

	"github.com/ppiankov/meow/internal/eventlog"
	"github.com/ppiankov/meow/internal/meow"
)

func TestAuditVerifyCommandAcceptsValidLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")

	elog, err := eventlog.Open(path)
	if err != nil {
		t.Fatalf("eventlog.Open: %v", err)
	}
	if err := elog.Record("job-1", "r1", "p1", meow.StatusCreating, meow.StatusQueued, ""); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := elog.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := runAuditVerify(auditVerifyCmd, []string{path}); err != nil {
		t.Fatalf("runAuditVerify: %v", err)
	}
}

func TestAuditCommandIsRegisteredUnderRoot(t *testing.T) {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Use == "audit" {
			for _, sub := range cmd.Commands() {
				if sub.Name() == "verify" {
					return
				}
			}
			t.Fatal("audit command has no verify subcommand")
		}
	}
	t.Fatal("root command has no audit subcommand")
}
