// Package coordinator implements GASDB's Collection Coordinator (spec.md
// §4.7): the per-collection critical section that acquires the virtual
// lock, loads the blob (reusing a cached snapshot when its token still
// matches), applies one Document Engine operation, saves the blob, rotates
// the modification token, and releases the lock — unconditionally, even on
// failure.
//
// No teacher equivalent exists — bundoc's concurrency model is internal
// MVCC snapshots with no external lock/reload protocol — so the state
// machine itself is built from spec.md §4.7; the bounded-retry/backoff
// shape for file IO borrows the small "attempts with exponential backoff"
// idiom common across the example pack's storage-adapter code rather than
// any single teacher file.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/kartikbazzad/gasdb/codec"
	"github.com/kartikbazzad/gasdb/docengine"
	"github.com/kartikbazzad/gasdb/document"
	"github.com/kartikbazzad/gasdb/fileservice"
	"github.com/kartikbazzad/gasdb/gasdberr"
	"github.com/kartikbazzad/gasdb/masterindex"
)

// Config holds the Coordinator's retry/backoff tunables (spec.md §6).
type Config struct {
	FileIOMaxAttempts int
	FileIOBackoffMs   int
	LockAcquireRetries int
	LockRetryDelayMs  int
}

// DefaultConfig returns spec.md §6's documented defaults.
func DefaultConfig() Config {
	return Config{FileIOMaxAttempts: 3, FileIOBackoffMs: 200, LockAcquireRetries: 5, LockRetryDelayMs: 50}
}

// blobMetadata mirrors spec.md §3's Collection Blob metadata block.
type blobMetadata struct {
	Created       time.Time `json:"created"`
	LastUpdated   time.Time `json:"lastUpdated"`
	DocumentCount int       `json:"documentCount"`
}

// blob mirrors spec.md §3's Collection Blob exactly: name, metadata,
// documents. Order is carried alongside documents (not part of the spec's
// named top-level keys, but needed to honour §4.5's "order of returned
// documents preserves the storage insertion order" across a reload, since
// Go map iteration order cannot).
type blob struct {
	Name      string                    `json:"name"`
	Metadata  blobMetadata              `json:"metadata"`
	Documents map[string]document.M     `json:"documents"`
	Order     []string                  `json:"_order"`
}

// Coordinator owns one collection's critical section and its in-memory
// snapshot cache. Database hands the same *Coordinator to every caller of a
// given collection, so mu serializes every Read and Mutate in this process
// against each other — spec.md §5's "acquire→load→apply→save→rotate→release
// is not interleaved with any other operation on the same collection in the
// same process", and §9's "use a per-collection queue or a single task
// running to completion per operation". The virtual lock in masterIndex only
// ever has to arbitrate across processes; mu is what makes that safe within
// one.
type Coordinator struct {
	name        string
	fileID      string
	masterIndex *masterindex.MasterIndex
	files       fileservice.Service
	config      Config

	mu          sync.Mutex
	cachedToken string
	cachedAt    time.Time
	hasCache    bool
	engine      *docengine.Engine
}

// New returns a Coordinator for the named, already-registered collection.
func New(name, fileID string, mi *masterindex.MasterIndex, files fileservice.Service, config Config) *Coordinator {
	return &Coordinator{name: name, fileID: fileID, masterIndex: mi, files: files, config: config}
}

// View runs fn against the current snapshot, reloading from the file
// service first if the cached snapshot's token no longer matches the Master
// Index (spec.md §4.7's read protocol). It never takes the virtual lock,
// but it does hold mu for fn's whole duration, so fn never observes the
// engine's maps concurrently with a Mutate's in-place edits on the same
// Coordinator.
func (c *Coordinator) View(ctx context.Context, fn func(e *docengine.Engine) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok, err := c.masterIndex.GetCollection(ctx, c.name)
	if err != nil {
		return err
	}
	if !ok {
		return gasdberr.NewError(gasdberr.MasterIndexError, "coordinator.View", "collection '"+c.name+"' not registered", nil)
	}

	if !c.hasCache || c.cachedToken != entry.ModificationToken {
		if _, err := c.reload(ctx, entry.ModificationToken); err != nil {
			return err
		}
	}
	return fn(c.engine)
}

func (c *Coordinator) reload(ctx context.Context, expectedToken string) (*docengine.Engine, error) {
	payload, err := c.readFileWithRetry(ctx)
	if err != nil {
		return nil, err
	}

	var b blob
	decoded, err := codec.Deserialise(string(payload))
	if err != nil {
		return nil, err
	}
	m, ok := decoded.(document.M)
	if !ok {
		return nil, gasdberr.NewError(gasdberr.InvalidFileFormat, "coordinator.reload", "collection blob is not an object", nil)
	}
	b = blobFromDocument(m)

	meta := docengine.Metadata{Created: b.Metadata.Created, LastUpdated: b.Metadata.LastUpdated, DocumentCount: b.Metadata.DocumentCount}
	c.engine = docengine.Load(b.Documents, b.Order, meta)
	c.cachedToken = expectedToken
	c.hasCache = true
	return c.engine, nil
}

// Mutate runs op against the collection's current engine inside the full
// write protocol: acquire lock (with retry/backoff budget), load-or-reuse
// the snapshot, apply op, persist the result, rotate the token, release the
// lock unconditionally.
func (c *Coordinator) Mutate(ctx context.Context, operation string, now time.Time, op func(e *docengine.Engine) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	opID := newOperationID()

	acquired, err := c.acquireLockWithRetry(ctx, opID, now)
	if err != nil {
		return err
	}
	if !acquired {
		return gasdberr.NewError(gasdberr.LockTimeout, "coordinator.Mutate", "failed to acquire lock for '"+c.name+"' within budget", nil)
	}
	defer c.masterIndex.ReleaseLock(ctx, c.name, opID, now)

	entry, ok, err := c.masterIndex.GetCollection(ctx, c.name)
	if err != nil {
		return err
	}
	if !ok {
		return gasdberr.NewError(gasdberr.MasterIndexError, "coordinator.Mutate", "collection '"+c.name+"' not registered", nil)
	}

	if !c.hasCache || c.cachedToken != entry.ModificationToken {
		if _, err := c.reload(ctx, entry.ModificationToken); err != nil {
			return err
		}
	}

	if err := op(c.engine); err != nil {
		return err
	}

	meta := c.engine.Metadata()
	docs, order := c.engine.Documents()
	b := blob{
		Name:      c.name,
		Metadata:  blobMetadata{Created: meta.Created, LastUpdated: now, DocumentCount: meta.DocumentCount},
		Documents: docs,
		Order:     order,
	}

	payload, err := codec.Serialise(blobToDocument(b))
	if err != nil {
		return err
	}
	if err := c.writeFileWithRetry(ctx, []byte(payload)); err != nil {
		return err
	}

	newToken, err := c.masterIndex.RecordModification(ctx, c.name, operation, payload, meta.DocumentCount, now)
	if err != nil {
		return err
	}

	c.cachedToken = newToken
	c.hasCache = true
	return nil
}

func (c *Coordinator) acquireLockWithRetry(ctx context.Context, opID string, now time.Time) (bool, error) {
	delay := time.Duration(c.config.LockRetryDelayMs) * time.Millisecond
	for attempt := 0; attempt <= c.config.LockAcquireRetries; attempt++ {
		ok, err := c.masterIndex.AcquireLock(ctx, c.name, opID, now)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		if attempt < c.config.LockAcquireRetries {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return false, nil
}

func (c *Coordinator) readFileWithRetry(ctx context.Context) ([]byte, error) {
	var lastErr error
	backoff := time.Duration(c.config.FileIOBackoffMs) * time.Millisecond
	for attempt := 1; attempt <= c.config.FileIOMaxAttempts; attempt++ {
		payload, err := c.files.Read(ctx, c.fileID)
		if err == nil {
			return payload, nil
		}
		lastErr = err
		if attempt < c.config.FileIOMaxAttempts {
			time.Sleep(backoff * time.Duration(attempt))
		}
	}
	return nil, gasdberr.NewError(gasdberr.FileIO, "coordinator.readFile", "exhausted retry budget reading collection blob", lastErr)
}

func (c *Coordinator) writeFileWithRetry(ctx context.Context, payload []byte) error {
	var lastErr error
	backoff := time.Duration(c.config.FileIOBackoffMs) * time.Millisecond
	for attempt := 1; attempt <= c.config.FileIOMaxAttempts; attempt++ {
		if err := c.files.Write(ctx, c.fileID, payload); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt < c.config.FileIOMaxAttempts {
			time.Sleep(backoff * time.Duration(attempt))
		}
	}
	return gasdberr.NewError(gasdberr.FileIO, "coordinator.writeFile", "exhausted retry budget writing collection blob", lastErr)
}

func blobToDocument(b blob) document.M {
	docs := document.M{}
	for id, d := range b.Documents {
		docs[id] = d
	}
	order := make([]document.Value, len(b.Order))
	for i, id := range b.Order {
		order[i] = id
	}
	return document.M{
		"name": b.Name,
		"metadata": document.M{
			"created":       b.Metadata.Created,
			"lastUpdated":   b.Metadata.LastUpdated,
			"documentCount": float64(b.Metadata.DocumentCount),
		},
		"documents": docs,
		"_order":    order,
	}
}

func blobFromDocument(m document.M) blob {
	b := blob{Documents: map[string]document.M{}}

	if name, ok := m["name"].(string); ok {
		b.Name = name
	}
	if meta, ok := m["metadata"].(document.M); ok {
		if created, ok := meta["created"].(time.Time); ok {
			b.Metadata.Created = created
		}
		if lastUpdated, ok := meta["lastUpdated"].(time.Time); ok {
			b.Metadata.LastUpdated = lastUpdated
		}
		if count, ok := meta["documentCount"].(float64); ok {
			b.Metadata.DocumentCount = int(count)
		}
	}
	if docs, ok := m["documents"].(document.M); ok {
		for id, v := range docs {
			if d, ok := v.(document.M); ok {
				b.Documents[id] = d
			}
		}
	}
	if order, ok := m["_order"].([]document.Value); ok {
		for _, v := range order {
			if id, ok := v.(string); ok {
				b.Order = append(b.Order, id)
			}
		}
	}
	return b
}
