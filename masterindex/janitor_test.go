package masterindex

import (
	"testing"
	"time"

	"github.com/kartikbazzad/gasdb/coordination"
)

func TestJanitorSweepsExpiredLocks(t *testing.T) {
	mi := New(coordination.NewMemory(), Config{
		MasterIndexKey: "GASDB_MASTER_INDEX", LockTimeoutMs: 1, ProcessMutexTimeoutMs: 1000,
		Version: 1, MaxHistoryEntries: 50,
	})
	if err := mi.AddCollection(ctx, "users", "file-1", t0); err != nil {
		t.Fatal(err)
	}
	if _, err := mi.AcquireLock(ctx, "users", "op-1", t0); err != nil {
		t.Fatal(err)
	}

	j, err := NewJanitor(mi, 10*time.Millisecond, nil)
	if err != nil {
		t.Fatal(err)
	}
	j.Start()
	defer j.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		entry, ok, err := mi.GetCollection(ctx, "users")
		if err != nil {
			t.Fatal(err)
		}
		if ok && entry.LockStatus == nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("expected janitor to clear the expired lock within the deadline")
}

func TestJanitorStartIsIdempotent(t *testing.T) {
	mi := newTestIndex()
	j, err := NewJanitor(mi, time.Hour, nil)
	if err != nil {
		t.Fatal(err)
	}
	j.Start()
	j.Start()
	j.Stop()
}

func TestJanitorStopWithoutStartIsSafe(t *testing.T) {
	mi := newTestIndex()
	j, err := NewJanitor(mi, time.Hour, nil)
	if err != nil {
		t.Fatal(err)
	}
	j.Stop()
	j.Stop()
}
