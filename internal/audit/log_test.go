package audit

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/MirrorDNA-Reflection-Protocol/glyph-engine/internal/core/domain"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig(t.TempDir())
	cfg.SyncOnRecord = false
	return cfg
}

func openTestLog(t *testing.T, cfg Config) *Log {
	t.Helper()
	l, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func recordEntry(t *testing.T, l *Log, op domain.Operation, target string, outcome domain.Outcome, reason string) *domain.AuditEntry {
	t.Helper()
	entry, err := domain.NewAuditEntry(op, target, outcome, reason, domain.SourceUser)
	if err != nil {
		t.Fatalf("NewAuditEntry() error = %v", err)
	}
	if err := l.Record(context.Background(), entry); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	return entry
}

func TestLog_RecordChainsEntries(t *testing.T) {
	l := openTestLog(t, testConfig(t))

	if l.LastHash() != domain.GenesisAccumulator() {
		t.Fatalf("empty log head = %q, want genesis", l.LastHash())
	}

	first := recordEntry(t, l, domain.OpCreate, "gt-01abc", domain.OutcomeAccepted, "")
	second := recordEntry(t, l, domain.OpMutate, "gt-01abc", domain.OutcomeRejected, "token version conflict")

	if first.PrevHash != domain.GenesisAccumulator() {
		t.Errorf("first entry prev hash = %q, want genesis", first.PrevHash)
	}
	if second.PrevHash != first.Hash {
		t.Error("second entry does not link to the first")
	}
	if l.LastHash() != second.Hash {
		t.Error("chain head does not match the last recorded entry")
	}
	if l.Count() != 2 {
		t.Errorf("Count() = %d, want 2", l.Count())
	}
}

func TestLog_ReopenRecoversChainHead(t *testing.T) {
	cfg := testConfig(t)
	l := openTestLog(t, cfg)
	recordEntry(t, l, domain.OpCreate, "gt-01abc", domain.OutcomeAccepted, "")
	last := recordEntry(t, l, domain.OpForget, "gt-01abc", domain.OutcomeAccepted, "")
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened := openTestLog(t, cfg)
	if reopened.Count() != 2 {
		t.Errorf("Count() after reopen = %d, want 2", reopened.Count())
	}
	if reopened.LastHash() != last.Hash {
		t.Error("reopened chain head does not match the last entry")
	}

	// The chain continues across restarts.
	next := recordEntry(t, reopened, domain.OpCreate, "gt-02def", domain.OutcomeAccepted, "")
	if next.PrevHash != last.Hash {
		t.Error("post-reopen entry does not link to the pre-restart head")
	}
}

func TestLog_Query(t *testing.T) {
	l := openTestLog(t, testConfig(t))
	recordEntry(t, l, domain.OpCreate, "gt-01abc", domain.OutcomeAccepted, "")
	recordEntry(t, l, domain.OpMutate, "gt-01abc", domain.OutcomeRejected, "unauthorized")
	recordEntry(t, l, domain.OpCreate, "gt-02def", domain.OutcomeAccepted, "")

	ctx := context.Background()

	all, err := l.Query(ctx, domain.AuditFilter{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Query() returned %d entries, want 3", len(all))
	}

	rejected, err := l.Query(ctx, domain.AuditFilter{Outcome: domain.OutcomeRejected})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(rejected) != 1 || rejected[0].Reason != "unauthorized" {
		t.Errorf("rejected query = %+v, want the single rejection", rejected)
	}

	byTarget, err := l.Query(ctx, domain.AuditFilter{TargetID: "gt-01abc"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(byTarget) != 2 {
		t.Errorf("target query returned %d entries, want 2", len(byTarget))
	}

	limited, err := l.Query(ctx, domain.AuditFilter{Limit: 1})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(limited) != 1 || limited[0].Operation != domain.OpCreate {
		t.Errorf("limited query = %+v, want the oldest entry", limited)
	}
}

func TestLog_VerifyChain(t *testing.T) {
	l := openTestLog(t, testConfig(t))
	recordEntry(t, l, domain.OpCreate, "gt-01abc", domain.OutcomeAccepted, "")
	recordEntry(t, l, domain.OpForget, "gt-01abc", domain.OutcomeAccepted, "")

	if err := l.VerifyChain(context.Background()); err != nil {
		t.Fatalf("VerifyChain() error = %v", err)
	}
}

func TestLog_OpenRejectsTamperedFile(t *testing.T) {
	cfg := testConfig(t)
	l := openTestLog(t, cfg)
	recordEntry(t, l, domain.OpCreate, "gt-01abc", domain.OutcomeAccepted, "")
	recordEntry(t, l, domain.OpForget, "gt-01abc", domain.OutcomeAccepted, "")
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	path := filepath.Join(cfg.Dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	copy(data, `{"event_id":"ae-forged"`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Open(cfg); !domain.IsDomainError(err, "GE-SYS-5001") {
		t.Fatalf("Open() on tampered file error = %v, want GE-SYS-5001", err)
	}
}

func TestLog_RecordAfterClose(t *testing.T) {
	l := openTestLog(t, testConfig(t))
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	entry, err := domain.NewAuditEntry(domain.OpCreate, "gt-01abc", domain.OutcomeAccepted, "", domain.SourceSystem)
	if err != nil {
		t.Fatalf("NewAuditEntry() error = %v", err)
	}
	if err := l.Record(context.Background(), entry); !domain.IsDomainError(err, "GE-SYS-5001") {
		t.Fatalf("Record() after close error = %v, want GE-SYS-5001", err)
	}
}
