// Package masterindex implements GASDB's Master Index (spec.md §3, §4.6): a
// typed view over one JSON value kept under a configured key in the
// coordination store — the collection registry, virtual locks, modification
// tokens, and bounded modification history.
//
// Grounded on bundoc/metadata.go's MetadataManager: an RWMutex-guarded,
// load-whole-blob / modify / save-whole-blob JSON catalog. The teacher keeps
// that catalog in a local file under its own mutex; here the same
// read-modify-write shape operates against a coordination.Store property
// under the store's process-wide mutex (spec.md §5's "script-level lock"),
// because the registry is shared across independent processes, not just
// goroutines in one.
package masterindex

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"regexp"
	"time"

	"github.com/kartikbazzad/gasdb/coordination"
	"github.com/kartikbazzad/gasdb/gasdberr"
)

// LockInfo records who holds a collection's virtual lock and when it
// expires.
type LockInfo struct {
	LockedBy  string    `json:"lockedBy"`
	LockedAt  time.Time `json:"lockedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CollectionEntry is one collection's registry record.
type CollectionEntry struct {
	Name              string    `json:"name"`
	FileID            string    `json:"fileId"`
	Created           time.Time `json:"created"`
	LastUpdated       time.Time `json:"lastUpdated"`
	DocumentCount     int       `json:"documentCount"`
	ModificationToken string    `json:"modificationToken"`
	LockStatus        *LockInfo `json:"lockStatus"`
}

// HistoryEntry records one modification for a collection's bounded history.
type HistoryEntry struct {
	Operation string    `json:"operation"`
	Timestamp time.Time `json:"timestamp"`
	Data      string    `json:"data"`
}

// document is the JSON shape persisted at the configured property key.
type indexDocument struct {
	Version             int                        `json:"version"`
	LastUpdated         time.Time                  `json:"lastUpdated"`
	Collections         map[string]CollectionEntry `json:"collections"`
	Locks               map[string]LockInfo        `json:"locks"`
	ModificationHistory map[string][]HistoryEntry  `json:"modificationHistory"`
}

func emptyDocument(version int) indexDocument {
	return indexDocument{
		Version:             version,
		LastUpdated:         time.Time{},
		Collections:         make(map[string]CollectionEntry),
		Locks:               make(map[string]LockInfo),
		ModificationHistory: make(map[string][]HistoryEntry),
	}
}

var tokenPattern = regexp.MustCompile(`^\d+-[a-z0-9]+$`)

const tokenAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// ConflictStrategy names a resolveConflict strategy. Only LastWriteWins is
// supported; spec.md §4.6 mandates rejecting any other strategy explicitly.
type ConflictStrategy string

const LastWriteWins ConflictStrategy = "LAST_WRITE_WINS"

// Config holds the tunables spec.md §6 names for the Master Index.
type Config struct {
	MasterIndexKey        string
	LockTimeoutMs         int
	ProcessMutexTimeoutMs int
	Version               int
	MaxHistoryEntries     int
}

// DefaultConfig returns spec.md §6's documented defaults.
func DefaultConfig() Config {
	return Config{
		MasterIndexKey:        "GASDB_MASTER_INDEX",
		LockTimeoutMs:         30000,
		ProcessMutexTimeoutMs: 10000,
		Version:               1,
		MaxHistoryEntries:     50,
	}
}

// MasterIndex is a typed accessor over a coordination.Store property.
type MasterIndex struct {
	store  coordination.Store
	config Config
}

// New returns a MasterIndex operating over store under config.
func New(store coordination.Store, config Config) *MasterIndex {
	return &MasterIndex{store: store, config: config}
}

// withMutex reloads the current document, lets fn mutate it, and persists
// the result — all under the store's process-wide mutex, per spec.md §4.6's
// "each mutating operation first reloads the current property value so that
// interleaved writers are observed."
func (mi *MasterIndex) withMutex(ctx context.Context, now time.Time, fn func(doc *indexDocument) error) error {
	handle, ok, err := mi.store.TryAcquireProcessMutex(ctx, mi.config.ProcessMutexTimeoutMs)
	if err != nil {
		return gasdberr.NewError(gasdberr.LockTimeout, "masterindex", "process mutex acquisition failed", err)
	}
	if !ok {
		return gasdberr.NewError(gasdberr.LockTimeout, "masterindex", "timed out acquiring process mutex", nil)
	}
	defer mi.store.ReleaseProcessMutex(ctx, handle)

	doc, err := mi.load(ctx)
	if err != nil {
		return err
	}

	if err := fn(&doc); err != nil {
		return err
	}

	doc.LastUpdated = now
	return mi.save(ctx, doc)
}

func (mi *MasterIndex) load(ctx context.Context) (indexDocument, error) {
	raw, ok, err := mi.store.GetProperty(ctx, mi.config.MasterIndexKey)
	if err != nil {
		return indexDocument{}, gasdberr.NewError(gasdberr.MasterIndexError, "masterindex.load", "failed to read property", err)
	}
	if !ok {
		return emptyDocument(mi.config.Version), nil
	}

	var doc indexDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return indexDocument{}, gasdberr.NewError(gasdberr.InvalidFileFormat, "masterindex.load", "failed to parse master index", err)
	}
	if doc.Collections == nil {
		doc.Collections = make(map[string]CollectionEntry)
	}
	if doc.Locks == nil {
		doc.Locks = make(map[string]LockInfo)
	}
	if doc.ModificationHistory == nil {
		doc.ModificationHistory = make(map[string][]HistoryEntry)
	}
	return doc, nil
}

func (mi *MasterIndex) save(ctx context.Context, doc indexDocument) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return gasdberr.NewError(gasdberr.MasterIndexError, "masterindex.save", "failed to marshal master index", err)
	}
	if err := mi.store.SetProperty(ctx, mi.config.MasterIndexKey, string(b)); err != nil {
		return gasdberr.NewError(gasdberr.MasterIndexError, "masterindex.save", "failed to write property", err)
	}
	return nil
}

// readOnly loads the current document without taking the process mutex, for
// operations spec.md §4.7 allows to skip the virtual lock (reads).
func (mi *MasterIndex) readOnly(ctx context.Context) (indexDocument, error) {
	return mi.load(ctx)
}

// AddCollection registers a new collection. Fails InvalidArgument if name is
// empty or already registered.
func (mi *MasterIndex) AddCollection(ctx context.Context, name, fileID string, now time.Time) error {
	if name == "" {
		return gasdberr.NewError(gasdberr.InvalidArgument, "masterindex.AddCollection", "name must not be empty", nil)
	}
	return mi.withMutex(ctx, now, func(doc *indexDocument) error {
		if _, exists := doc.Collections[name]; exists {
			return gasdberr.NewError(gasdberr.InvalidArgument, "masterindex.AddCollection", "collection '"+name+"' already exists", nil)
		}
		doc.Collections[name] = CollectionEntry{
			Name:              name,
			FileID:            fileID,
			Created:           now,
			LastUpdated:       now,
			DocumentCount:     0,
			ModificationToken: mi.generateTokenLocked(),
		}
		return nil
	})
}

// GetCollection returns a collection's registry entry.
func (mi *MasterIndex) GetCollection(ctx context.Context, name string) (CollectionEntry, bool, error) {
	doc, err := mi.readOnly(ctx)
	if err != nil {
		return CollectionEntry{}, false, err
	}
	entry, ok := doc.Collections[name]
	return entry, ok, nil
}

// GetCollections returns every registered collection's entry.
func (mi *MasterIndex) GetCollections(ctx context.Context) (map[string]CollectionEntry, error) {
	doc, err := mi.readOnly(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Collections, nil
}

// UpdateCollectionMetadata applies patch to a collection's registry entry.
func (mi *MasterIndex) UpdateCollectionMetadata(ctx context.Context, name string, now time.Time, patch func(entry *CollectionEntry)) error {
	return mi.withMutex(ctx, now, func(doc *indexDocument) error {
		entry, ok := doc.Collections[name]
		if !ok {
			return gasdberr.NewError(gasdberr.MasterIndexError, "masterindex.UpdateCollectionMetadata", "collection '"+name+"' not registered", nil)
		}
		patch(&entry)
		entry.LastUpdated = now
		doc.Collections[name] = entry
		return nil
	})
}

// RemoveCollection deregisters name, also clearing any lock and history.
func (mi *MasterIndex) RemoveCollection(ctx context.Context, name string, now time.Time) error {
	return mi.withMutex(ctx, now, func(doc *indexDocument) error {
		delete(doc.Collections, name)
		delete(doc.Locks, name)
		delete(doc.ModificationHistory, name)
		return nil
	})
}

// AcquireLock attempts to acquire name's virtual lock for opId. Returns
// false (not an error) if already held and unexpired.
func (mi *MasterIndex) AcquireLock(ctx context.Context, name, opID string, now time.Time) (bool, error) {
	if name == "" || opID == "" {
		return false, gasdberr.NewError(gasdberr.InvalidArgument, "masterindex.AcquireLock", "name and opId must not be empty", nil)
	}

	acquired := false
	err := mi.withMutex(ctx, now, func(doc *indexDocument) error {
		cleanupExpiredLocksLocked(doc, now)

		if existing, held := doc.Locks[name]; held && now.Before(existing.ExpiresAt) {
			acquired = false
			return nil
		}

		lock := LockInfo{
			LockedBy:  opID,
			LockedAt:  now,
			ExpiresAt: now.Add(time.Duration(mi.config.LockTimeoutMs) * time.Millisecond),
		}
		doc.Locks[name] = lock

		if entry, ok := doc.Collections[name]; ok {
			entry.LockStatus = &lock
			doc.Collections[name] = entry
		}

		acquired = true
		return nil
	})
	return acquired, err
}

// ReleaseLock releases name's lock iff it is currently held by opID.
func (mi *MasterIndex) ReleaseLock(ctx context.Context, name, opID string, now time.Time) (bool, error) {
	released := false
	err := mi.withMutex(ctx, now, func(doc *indexDocument) error {
		existing, held := doc.Locks[name]
		if !held || existing.LockedBy != opID {
			released = false
			return nil
		}
		delete(doc.Locks, name)
		if entry, ok := doc.Collections[name]; ok {
			entry.LockStatus = nil
			doc.Collections[name] = entry
		}
		released = true
		return nil
	})
	return released, err
}

// IsLocked reports whether name currently has an unexpired lock, lazily
// clearing an expired one.
func (mi *MasterIndex) IsLocked(ctx context.Context, name string, now time.Time) (bool, error) {
	locked := false
	err := mi.withMutex(ctx, now, func(doc *indexDocument) error {
		existing, held := doc.Locks[name]
		if !held {
			locked = false
			return nil
		}
		if now.Before(existing.ExpiresAt) {
			locked = true
			return nil
		}
		delete(doc.Locks, name)
		if entry, ok := doc.Collections[name]; ok {
			entry.LockStatus = nil
			doc.Collections[name] = entry
		}
		locked = false
		return nil
	})
	return locked, err
}

// CleanupExpiredLocks removes every expired lock, reporting whether any were
// removed.
func (mi *MasterIndex) CleanupExpiredLocks(ctx context.Context, now time.Time) (bool, error) {
	removedAny := false
	err := mi.withMutex(ctx, now, func(doc *indexDocument) error {
		removedAny = cleanupExpiredLocksLocked(doc, now)
		return nil
	})
	return removedAny, err
}

func cleanupExpiredLocksLocked(doc *indexDocument, now time.Time) bool {
	removed := false
	for name, lock := range doc.Locks {
		if !now.Before(lock.ExpiresAt) {
			delete(doc.Locks, name)
			if entry, ok := doc.Collections[name]; ok {
				entry.LockStatus = nil
				doc.Collections[name] = entry
			}
			removed = true
		}
	}
	return removed
}

// GenerateToken returns a fresh opaque modification token of the form
// "<millis>-<random-base36>".
func GenerateToken(now time.Time) string {
	return generateToken(now)
}

func generateToken(now time.Time) string {
	const randLen = 8
	buf := make([]byte, randLen)
	for i := range buf {
		buf[i] = tokenAlphabet[rand.Intn(len(tokenAlphabet))]
	}
	return fmt.Sprintf("%d-%s", now.UnixMilli(), string(buf))
}

func (mi *MasterIndex) generateTokenLocked() string {
	return generateToken(time.Now())
}

// ValidateToken reports whether s matches the token pattern
// ^\d+-[a-z0-9]+$.
func ValidateToken(s string) bool {
	return tokenPattern.MatchString(s)
}

// HasConflict reports whether name's stored modification token differs from
// expectedToken. A collection that doesn't exist yet has no conflict.
func (mi *MasterIndex) HasConflict(ctx context.Context, name, expectedToken string) (bool, error) {
	entry, ok, err := mi.GetCollection(ctx, name)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return entry.ModificationToken != expectedToken, nil
}

// ResolveConflict applies newData under strategy, rotating the token and
// recording history. Only LastWriteWins is supported; any other strategy
// fails with a Configuration error, per spec.md §4.6.
func (mi *MasterIndex) ResolveConflict(ctx context.Context, name string, strategy ConflictStrategy, operation, data string, now time.Time) error {
	if strategy != LastWriteWins {
		return gasdberr.NewError(gasdberr.ConfigurationErr, "masterindex.ResolveConflict",
			fmt.Sprintf("unsupported conflict strategy %q", strategy), nil)
	}

	return mi.withMutex(ctx, now, func(doc *indexDocument) error {
		entry, ok := doc.Collections[name]
		if !ok {
			return gasdberr.NewError(gasdberr.MasterIndexError, "masterindex.ResolveConflict", "collection '"+name+"' not registered", nil)
		}
		entry.ModificationToken = generateToken(now)
		entry.LastUpdated = now
		doc.Collections[name] = entry

		appendHistoryLocked(doc, name, operation, data, now, mi.config.MaxHistoryEntries)
		return nil
	})
}

// RecordModification rotates name's modification token, updates its
// documentCount, and appends a bounded history entry — the single combined
// step spec.md §4.7's write protocol performs after a successful blob save
// (step 6: "updateCollectionMetadata(..., modificationToken, lastUpdated);
// record in history").
func (mi *MasterIndex) RecordModification(ctx context.Context, name, operation, data string, documentCount int, now time.Time) (newToken string, err error) {
	err = mi.withMutex(ctx, now, func(doc *indexDocument) error {
		entry, ok := doc.Collections[name]
		if !ok {
			return gasdberr.NewError(gasdberr.MasterIndexError, "masterindex.RecordModification", "collection '"+name+"' not registered", nil)
		}
		newToken = generateToken(now)
		entry.ModificationToken = newToken
		entry.LastUpdated = now
		entry.DocumentCount = documentCount
		doc.Collections[name] = entry

		appendHistoryLocked(doc, name, operation, data, now, mi.config.MaxHistoryEntries)
		return nil
	})
	return newToken, err
}

func appendHistoryLocked(doc *indexDocument, name, operation, data string, now time.Time, maxEntries int) {
	entries := doc.ModificationHistory[name]
	entries = append(entries, HistoryEntry{Operation: operation, Timestamp: now, Data: data})
	if len(entries) > maxEntries {
		entries = entries[len(entries)-maxEntries:]
	}
	doc.ModificationHistory[name] = entries
}

// GetModificationHistory returns name's retained bounded history sequence.
func (mi *MasterIndex) GetModificationHistory(ctx context.Context, name string) ([]HistoryEntry, error) {
	doc, err := mi.readOnly(ctx)
	if err != nil {
		return nil, err
	}
	return doc.ModificationHistory[name], nil
}
