package gasdb

import (
	"os"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MasterIndexKey != "GASDB_MASTER_INDEX" || cfg.LockTimeoutMs != 30000 || cfg.MaxHistoryEntries != 50 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	os.Setenv("GASDB_LOCK_TIMEOUT_MS", "5000")
	os.Setenv("GASDB_MAX_HISTORY_ENTRIES", "10")
	defer os.Unsetenv("GASDB_LOCK_TIMEOUT_MS")
	defer os.Unsetenv("GASDB_MAX_HISTORY_ENTRIES")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LockTimeoutMs != 5000 {
		t.Errorf("expected LockTimeoutMs overridden to 5000, got %d", cfg.LockTimeoutMs)
	}
	if cfg.MaxHistoryEntries != 10 {
		t.Errorf("expected MaxHistoryEntries overridden to 10, got %d", cfg.MaxHistoryEntries)
	}
}

func TestConfigToOptionsAppliesFields(t *testing.T) {
	cfg := Config{
		MasterIndexKey:        "CUSTOM_KEY",
		LockTimeoutMs:         1000,
		ProcessMutexTimeoutMs: 2000,
		MaxHistoryEntries:     5,
		FileIOMaxAttempts:     7,
		FileIOBackoffMs:       50,
	}
	opts := cfg.ToOptions(DefaultOptions())
	if opts.MasterIndexKey != "CUSTOM_KEY" || opts.LockTimeoutMs != 1000 || opts.FileIOMaxAttempts != 7 {
		t.Errorf("unexpected options after ToOptions: %+v", opts)
	}
	if opts.Files == nil || opts.Store == nil {
		t.Error("expected Files/Store collaborators preserved from base Options")
	}
}
