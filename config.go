package gasdb

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config mirrors the configuration table a Database is built from:
// MasterIndexKey, LockTimeoutMs, ProcessMutexTimeoutMs, Version,
// MaxHistoryEntries, FileIOMaxAttempts, FileIOBackoffMs. Constructing Options
// directly remains the primary path; Config/LoadConfig is an additive way to
// source the same fields from a file or the environment.
type Config struct {
	MasterIndexKey        string `mapstructure:"masterIndexKey"`
	LockTimeoutMs         int    `mapstructure:"lockTimeoutMs"`
	ProcessMutexTimeoutMs int    `mapstructure:"processMutexTimeoutMs"`
	Version               int    `mapstructure:"version"`
	MaxHistoryEntries     int    `mapstructure:"maxHistoryEntries"`
	FileIOMaxAttempts     int    `mapstructure:"fileIoMaxAttempts"`
	FileIOBackoffMs       int    `mapstructure:"fileIoBackoffMs"`
}

// LoadConfig reads path (if present) and any GASDB_-prefixed environment
// variable into a Config, the same file+env layering the teacher's
// pkg/config.Load does for its services, adapted to GASDB's own field set
// instead of an arbitrary caller struct.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		MasterIndexKey:        "GASDB_MASTER_INDEX",
		LockTimeoutMs:         30000,
		ProcessMutexTimeoutMs: 10000,
		Version:               1,
		MaxHistoryEntries:     50,
		FileIOMaxAttempts:     3,
		FileIOBackoffMs:       200,
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return cfg, fmt.Errorf("gasdb: failed to read config file %s: %w", path, err)
			}
		}
	}

	const prefix = "GASDB_"
	for _, envStr := range os.Environ() {
		pair := strings.SplitN(envStr, "=", 2)
		if len(pair) != 2 {
			continue
		}
		key, value := pair[0], pair[1]
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		propKey := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(key, prefix), "_", ""))
		v.Set(propKey, value)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("gasdb: failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// ToOptions applies cfg's fields onto opts, leaving Files/Store/Logger
// untouched since those are Go collaborators, not serializable config.
func (cfg Config) ToOptions(opts Options) Options {
	opts.MasterIndexKey = cfg.MasterIndexKey
	opts.LockTimeoutMs = cfg.LockTimeoutMs
	opts.ProcessMutexTimeoutMs = cfg.ProcessMutexTimeoutMs
	opts.MaxHistoryEntries = cfg.MaxHistoryEntries
	opts.FileIOMaxAttempts = cfg.FileIOMaxAttempts
	opts.FileIOBackoffMs = cfg.FileIOBackoffMs
	return opts
}
