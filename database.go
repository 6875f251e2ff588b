// Package gasdb is GASDB's Collection Facade (spec.md §4.8): the stable
// public API — Database and Collection — that callers use. It enforces
// argument validation and delegates every read and mutation to a
// per-collection coordinator.Coordinator.
//
// Database's shape (Open/CreateCollection/GetCollection/ListCollections/
// DropCollection, a name->instance registry behind a RWMutex) is rewritten
// from bundoc/database.go's Database/Open/CreateCollection method set, with
// the B+Tree/WAL/MVCC subsystem fields replaced by the Master Index,
// file service, and coordination store this spec's architecture actually
// needs.
package gasdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kartikbazzad/gasdb/coordination"
	"github.com/kartikbazzad/gasdb/coordinator"
	"github.com/kartikbazzad/gasdb/fileservice"
	"github.com/kartikbazzad/gasdb/gasdberr"
	"github.com/kartikbazzad/gasdb/gasdblog"
	"github.com/kartikbazzad/gasdb/masterindex"
	"github.com/kartikbazzad/gasdb/rules"
)

// Options configures a Database instance.
type Options struct {
	// MasterIndexKey is the coordination-store property key holding the
	// Master Index (default "GASDB_MASTER_INDEX").
	MasterIndexKey string
	// LockTimeoutMs is the virtual lock's expiry window (default 30000).
	LockTimeoutMs int
	// ProcessMutexTimeoutMs bounds acquisition of the coordination store's
	// process-wide mutex (default 10000).
	ProcessMutexTimeoutMs int
	// MaxHistoryEntries bounds each collection's retained modification
	// history (default 50).
	MaxHistoryEntries int
	// FileIOMaxAttempts / FileIOBackoffMs bound the Coordinator's blob I/O
	// retry budget (defaults 3 / 200ms).
	FileIOMaxAttempts int
	FileIOBackoffMs   int
	// LockJanitorInterval runs a background expired-lock sweep at this period
	// (default 1 minute). A negative value disables the janitor entirely;
	// correctness never depends on it, since every lock read self-expires.
	LockJanitorInterval time.Duration

	Files fileservice.Service
	Store coordination.Store

	Logger *gasdblog.Logger
}

// DefaultOptions returns an Options with spec.md §6's documented defaults
// and in-memory adapters, suitable for tests and the cmd/gasdb CLI.
func DefaultOptions() Options {
	return Options{
		MasterIndexKey:        "GASDB_MASTER_INDEX",
		LockTimeoutMs:         30000,
		ProcessMutexTimeoutMs: 10000,
		MaxHistoryEntries:     50,
		FileIOMaxAttempts:     3,
		FileIOBackoffMs:       200,
		LockJanitorInterval:   time.Minute,
		Files:                 fileservice.NewMemory(),
		Store:                 coordination.NewMemory(),
		Logger:                gasdblog.New(),
	}
}

// Database is GASDB's top-level entry point: one Master Index view over a
// coordination store, one file service, and a registry of open Collection
// instances.
type Database struct {
	masterIndex *masterindex.MasterIndex
	files       fileservice.Service
	logger      *gasdblog.Logger
	coordConfig coordinator.Config
	rules       *rules.Engine
	janitor     *masterindex.Janitor

	mu          sync.RWMutex
	collections map[string]*Collection
	closed      bool
}

// Rules returns the Database's shared access-rule engine, so a caller can
// attach CEL rules (engine.SetRule) before performing "As" operations that
// check them. Rules are disabled (allow-all) until a rule is set.
func (db *Database) Rules() *rules.Engine { return db.rules }

// Open constructs a Database over opts, filling in documented defaults for
// any zero-valued field.
func Open(opts Options) (*Database, error) {
	if opts.Files == nil || opts.Store == nil {
		return nil, gasdberr.NewError(gasdberr.InvalidArgument, "gasdb.Open", "Files and Store must both be provided", nil)
	}

	defaults := DefaultOptions()
	if opts.MasterIndexKey == "" {
		opts.MasterIndexKey = defaults.MasterIndexKey
	}
	if opts.LockTimeoutMs == 0 {
		opts.LockTimeoutMs = defaults.LockTimeoutMs
	}
	if opts.ProcessMutexTimeoutMs == 0 {
		opts.ProcessMutexTimeoutMs = defaults.ProcessMutexTimeoutMs
	}
	if opts.MaxHistoryEntries == 0 {
		opts.MaxHistoryEntries = defaults.MaxHistoryEntries
	}
	if opts.FileIOMaxAttempts == 0 {
		opts.FileIOMaxAttempts = defaults.FileIOMaxAttempts
	}
	if opts.FileIOBackoffMs == 0 {
		opts.FileIOBackoffMs = defaults.FileIOBackoffMs
	}
	if opts.Logger == nil {
		opts.Logger = defaults.Logger
	}
	if opts.LockJanitorInterval == 0 {
		opts.LockJanitorInterval = defaults.LockJanitorInterval
	}

	mi := masterindex.New(opts.Store, masterindex.Config{
		MasterIndexKey:        opts.MasterIndexKey,
		LockTimeoutMs:         opts.LockTimeoutMs,
		ProcessMutexTimeoutMs: opts.ProcessMutexTimeoutMs,
		Version:               1,
		MaxHistoryEntries:     opts.MaxHistoryEntries,
	})

	rulesEngine, err := rules.New()
	if err != nil {
		return nil, gasdberr.NewError(gasdberr.ConfigurationErr, "gasdb.Open", "failed to construct rules engine", err)
	}

	db := &Database{
		masterIndex: mi,
		files:       opts.Files,
		logger:      opts.Logger,
		rules:       rulesEngine,
		coordConfig: coordinator.Config{
			FileIOMaxAttempts:  opts.FileIOMaxAttempts,
			FileIOBackoffMs:    opts.FileIOBackoffMs,
			LockAcquireRetries: 5,
			LockRetryDelayMs:   50,
		},
		collections: make(map[string]*Collection),
	}

	if opts.LockJanitorInterval > 0 {
		janitor, err := masterindex.NewJanitor(mi, opts.LockJanitorInterval, opts.Logger)
		if err != nil {
			return nil, gasdberr.NewError(gasdberr.ConfigurationErr, "gasdb.Open", "failed to construct lock janitor", err)
		}
		janitor.Start()
		db.janitor = janitor
	}

	db.logger.Info("gasdb: database opened")
	return db, nil
}

// CreateCollection registers a new, empty collection named name and creates
// its backing blob.
func (db *Database) CreateCollection(name string) (*Collection, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil, errClosed("gasdb.CreateCollection")
	}
	if _, exists := db.collections[name]; exists {
		return nil, gasdberr.NewError(gasdberr.InvalidArgument, "gasdb.CreateCollection", "collection '"+name+"' already exists", nil)
	}

	ctx := context.Background()
	now := time.Now().UTC()

	emptyBlob := fmt.Sprintf(`{"name":%q,"metadata":{"created":%q,"lastUpdated":%q,"documentCount":0},"documents":{},"_order":[]}`,
		name, formatTime(now), formatTime(now))
	fileID, err := db.files.Create(ctx, name, []byte(emptyBlob), "")
	if err != nil {
		return nil, err
	}

	if err := db.masterIndex.AddCollection(ctx, name, fileID, now); err != nil {
		return nil, err
	}

	coll := db.newCollection(name, fileID)
	db.collections[name] = coll
	db.logger.Info("gasdb: created collection " + name)
	return coll, nil
}

// Collection returns a handle to an already-registered collection, failing
// with a MasterIndexError if it isn't registered.
func (db *Database) Collection(name string) (*Collection, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil, errClosed("gasdb.Collection")
	}

	if coll, ok := db.collections[name]; ok {
		return coll, nil
	}

	entry, ok, err := db.masterIndex.GetCollection(context.Background(), name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, gasdberr.NewError(gasdberr.MasterIndexError, "gasdb.Collection", "collection '"+name+"' does not exist", nil)
	}

	coll := db.newCollection(name, entry.FileID)
	db.collections[name] = coll
	return coll, nil
}

// ListCollections returns every registered collection's name.
func (db *Database) ListCollections() ([]string, error) {
	db.mu.RLock()
	closed := db.closed
	db.mu.RUnlock()
	if closed {
		return nil, errClosed("gasdb.ListCollections")
	}

	entries, err := db.masterIndex.GetCollections(context.Background())
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	return names, nil
}

// DropCollection deregisters name and deletes its backing blob.
func (db *Database) DropCollection(name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return errClosed("gasdb.DropCollection")
	}

	ctx := context.Background()
	entry, ok, err := db.masterIndex.GetCollection(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return gasdberr.NewError(gasdberr.MasterIndexError, "gasdb.DropCollection", "collection '"+name+"' does not exist", nil)
	}

	if err := db.masterIndex.RemoveCollection(ctx, name, time.Now().UTC()); err != nil {
		return err
	}
	if err := db.files.Delete(ctx, entry.FileID); err != nil {
		return err
	}

	delete(db.collections, name)
	db.logger.Info("gasdb: dropped collection " + name)
	return nil
}

// Close releases the Database. Open Collection handles become unusable.
func (db *Database) Close() error {
	db.mu.Lock()
	janitor := db.janitor
	db.closed = true
	db.collections = nil
	db.mu.Unlock()

	if janitor != nil {
		janitor.Stop()
	}
	return nil
}

func (db *Database) newCollection(name, fileID string) *Collection {
	return &Collection{
		name:        name,
		coordinator: coordinator.New(name, fileID, db.masterIndex, db.files, db.coordConfig),
		logger:      db.logger,
		rules:       db.rules,
	}
}

func validateName(name string) error {
	if name == "" {
		return gasdberr.NewError(gasdberr.InvalidArgument, "gasdb", "collection name must not be empty", nil)
	}
	return nil
}

func errClosed(op string) error {
	return gasdberr.NewError(gasdberr.InvalidArgument, op, "database is closed", nil)
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
