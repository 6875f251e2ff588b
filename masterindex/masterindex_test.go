package masterindex

import (
	"context"
	"testing"
	"time"

	"github.com/kartikbazzad/gasdb/coordination"
	"github.com/kartikbazzad/gasdb/gasdberr"
)

var ctx = context.Background()
var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestIndex() *MasterIndex {
	return New(coordination.NewMemory(), DefaultConfig())
}

func TestAddAndGetCollection(t *testing.T) {
	mi := newTestIndex()
	if err := mi.AddCollection(ctx, "users", "file-1", t0); err != nil {
		t.Fatal(err)
	}

	entry, ok, err := mi.GetCollection(ctx, "users")
	if err != nil || !ok {
		t.Fatalf("expected collection found, err=%v", err)
	}
	if entry.FileID != "file-1" {
		t.Errorf("expected fileId file-1, got %s", entry.FileID)
	}
	if !ValidateToken(entry.ModificationToken) {
		t.Errorf("expected well-formed token, got %q", entry.ModificationToken)
	}
}

func TestAddDuplicateCollectionFails(t *testing.T) {
	mi := newTestIndex()
	mi.AddCollection(ctx, "users", "file-1", t0)

	err := mi.AddCollection(ctx, "users", "file-2", t0)
	if err == nil {
		t.Fatal("expected error for duplicate collection")
	}
}

func TestAcquireReleaseLock(t *testing.T) {
	mi := newTestIndex()
	mi.AddCollection(ctx, "users", "file-1", t0)

	ok, err := mi.AcquireLock(ctx, "users", "op-1", t0)
	if err != nil || !ok {
		t.Fatalf("expected lock acquired, err=%v", err)
	}

	ok, err = mi.AcquireLock(ctx, "users", "op-2", t0)
	if err != nil || ok {
		t.Fatalf("expected second acquisition to fail while held, ok=%v err=%v", ok, err)
	}

	released, err := mi.ReleaseLock(ctx, "users", "op-2", t0)
	if err != nil || released {
		t.Fatalf("expected release by wrong opId to fail")
	}

	released, err = mi.ReleaseLock(ctx, "users", "op-1", t0)
	if err != nil || !released {
		t.Fatalf("expected release by correct opId to succeed, err=%v", err)
	}

	ok, err = mi.AcquireLock(ctx, "users", "op-2", t0)
	if err != nil || !ok {
		t.Fatalf("expected acquisition to succeed after release, err=%v", err)
	}
}

func TestLockExpiresAfterTimeout(t *testing.T) {
	mi := New(coordination.NewMemory(), Config{
		MasterIndexKey: "GASDB_MASTER_INDEX", LockTimeoutMs: 1000, ProcessMutexTimeoutMs: 1000,
		Version: 1, MaxHistoryEntries: 50,
	})
	mi.AddCollection(ctx, "users", "file-1", t0)
	mi.AcquireLock(ctx, "users", "op-1", t0)

	later := t0.Add(2 * time.Second)
	locked, err := mi.IsLocked(ctx, "users", later)
	if err != nil {
		t.Fatal(err)
	}
	if locked {
		t.Error("expected lock to have expired")
	}

	ok, err := mi.AcquireLock(ctx, "users", "op-2", later)
	if err != nil || !ok {
		t.Fatalf("expected new acquisition after expiry to succeed, err=%v", err)
	}
}

func TestCleanupExpiredLocks(t *testing.T) {
	mi := New(coordination.NewMemory(), Config{
		MasterIndexKey: "GASDB_MASTER_INDEX", LockTimeoutMs: 1000, ProcessMutexTimeoutMs: 1000,
		Version: 1, MaxHistoryEntries: 50,
	})
	mi.AddCollection(ctx, "users", "file-1", t0)
	mi.AcquireLock(ctx, "users", "op-1", t0)

	later := t0.Add(2 * time.Second)
	removed, err := mi.CleanupExpiredLocks(ctx, later)
	if err != nil {
		t.Fatal(err)
	}
	if !removed {
		t.Error("expected an expired lock to be removed")
	}
}

func TestHasConflict(t *testing.T) {
	mi := newTestIndex()
	mi.AddCollection(ctx, "users", "file-1", t0)

	entry, _, _ := mi.GetCollection(ctx, "users")

	conflict, err := mi.HasConflict(ctx, "users", entry.ModificationToken)
	if err != nil || conflict {
		t.Fatalf("expected no conflict for matching token, err=%v", err)
	}

	conflict, err = mi.HasConflict(ctx, "users", "stale-token")
	if err != nil || !conflict {
		t.Fatalf("expected conflict for stale token, err=%v", err)
	}
}

func TestResolveConflictRejectsUnsupportedStrategy(t *testing.T) {
	mi := newTestIndex()
	mi.AddCollection(ctx, "users", "file-1", t0)

	err := mi.ResolveConflict(ctx, "users", ConflictStrategy("MERGE"), "update", "{}", t0)
	if err == nil {
		t.Fatal("expected ConfigurationError for unsupported strategy")
	}
	if kind, _ := gasdberr.KindOf(err); kind != gasdberr.ConfigurationErr {
		t.Errorf("expected ConfigurationError, got %v", kind)
	}
}

func TestResolveConflictLastWriteWinsRotatesTokenAndRecordsHistory(t *testing.T) {
	mi := newTestIndex()
	mi.AddCollection(ctx, "users", "file-1", t0)
	before, _, _ := mi.GetCollection(ctx, "users")

	if err := mi.ResolveConflict(ctx, "users", LastWriteWins, "update", `{"name":"x"}`, t0); err != nil {
		t.Fatal(err)
	}

	after, _, _ := mi.GetCollection(ctx, "users")
	if after.ModificationToken == before.ModificationToken {
		t.Error("expected token rotated")
	}

	history, err := mi.GetModificationHistory(ctx, "users")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].Operation != "update" {
		t.Errorf("expected 1 history entry for update, got %+v", history)
	}
}

func TestModificationHistoryBounded(t *testing.T) {
	mi := New(coordination.NewMemory(), Config{
		MasterIndexKey: "GASDB_MASTER_INDEX", LockTimeoutMs: 30000, ProcessMutexTimeoutMs: 10000,
		Version: 1, MaxHistoryEntries: 3,
	})
	mi.AddCollection(ctx, "users", "file-1", t0)

	for i := 0; i < 5; i++ {
		if _, err := mi.RecordModification(ctx, "users", "update", "{}", 0, t0); err != nil {
			t.Fatal(err)
		}
	}

	history, err := mi.GetModificationHistory(ctx, "users")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 3 {
		t.Errorf("expected history bounded to 3 entries, got %d", len(history))
	}
}

func TestValidateTokenFormat(t *testing.T) {
	if !ValidateToken(generateToken(t0)) {
		t.Error("expected generated token to validate")
	}
	if ValidateToken("not-a-token!") {
		t.Error("expected malformed token to fail validation")
	}
	if ValidateToken("abc-xyz") {
		t.Error("expected token without numeric prefix to fail validation")
	}
}
