// Package docengine implements GASDB's Document Engine (spec.md §4.5): an
// in-memory `_id -> Document` map with CRUD operations that route non-trivial
// filters through the Query Engine and all updates through the Update
// Engine. State here is pure given its inputs — it owns nothing across
// calls; the Coordinator owns load/save around it.
//
// Grounded on bundoc/collection.go's control-flow shape (validate, mutate,
// rotate counts) for Insert/FindByID/updateLocked, but with the B+Tree index
// maintenance stripped out — GASDB has no secondary indexes, only the `_id`
// map itself.
package docengine

import (
	"time"

	"github.com/google/uuid"
	"github.com/kartikbazzad/gasdb/codec"
	"github.com/kartikbazzad/gasdb/document"
	"github.com/kartikbazzad/gasdb/gasdberr"
	"github.com/kartikbazzad/gasdb/query"
	"github.com/kartikbazzad/gasdb/update"
)

// Metadata tracks the collection-level counters spec.md §3 requires on the
// blob alongside its documents.
type Metadata struct {
	Created       time.Time
	LastUpdated   time.Time
	DocumentCount int
}

// WriteResult mirrors the MongoDB-shaped {matchedCount, modifiedCount,
// acknowledged} result spec.md §4.5 and §4.8 require.
type WriteResult struct {
	MatchedCount  int
	ModifiedCount int
	Acknowledged  bool
}

// DeleteResult mirrors {deletedCount, acknowledged}.
type DeleteResult struct {
	DeletedCount int
	Acknowledged bool
}

// Engine holds one collection's documents plus its metadata block. Every
// entry point deep-clones on the way in and out so callers can never mutate
// stored state through a returned or passed reference.
type Engine struct {
	docs     map[string]document.M
	order    []string
	metadata Metadata
}

// New returns an empty Engine with metadata.Created/LastUpdated set to now.
func New(now time.Time) *Engine {
	return &Engine{
		docs:     make(map[string]document.M),
		order:    nil,
		metadata: Metadata{Created: now, LastUpdated: now},
	}
}

// Load reconstructs an Engine from a previously-saved blob's documents and
// metadata (used by the Coordinator after FileService.read+Codec.deserialise).
// order is rebuilt from iteration since map order is not itself persisted;
// callers that need exact insertion-order fidelity across reloads must
// persist order separately (the Coordinator stores it as part of the blob —
// see coordinator.blob).
func Load(docs map[string]document.M, order []string, meta Metadata) *Engine {
	e := &Engine{docs: make(map[string]document.M, len(docs)), metadata: meta}
	for _, id := range order {
		if d, ok := docs[id]; ok {
			e.docs[id] = codec.DeepClone(d).(document.M)
			e.order = append(e.order, id)
		}
	}
	return e
}

// Documents returns the current `_id -> Document` map and insertion-order
// list, deep-cloned, for the Coordinator to persist.
func (e *Engine) Documents() (map[string]document.M, []string) {
	out := make(map[string]document.M, len(e.docs))
	for id, doc := range e.docs {
		out[id] = codec.DeepClone(doc).(document.M)
	}
	orderCopy := append([]string{}, e.order...)
	return out, orderCopy
}

// Metadata returns the current metadata block.
func (e *Engine) Metadata() Metadata {
	return e.metadata
}

// Insert adds doc, generating a UUIDv4 `_id` if absent, failing DuplicateKey
// if the (possibly caller-supplied) `_id` already exists.
func (e *Engine) Insert(doc document.M, now time.Time) (string, error) {
	clone := codec.DeepClone(doc).(document.M)

	id, hasID := document.GetID(clone)
	if !hasID {
		id = uuid.NewString()
		clone[document.IDField] = id
	}

	if _, exists := e.docs[id]; exists {
		return "", gasdberr.NewError(gasdberr.DuplicateKey, "docengine.Insert", "_id '"+id+"' already exists", nil)
	}

	e.docs[id] = clone
	e.order = append(e.order, id)
	e.touch(now, +1)
	return id, nil
}

// FindByID returns the document with the given id and whether it exists.
func (e *Engine) FindByID(id string) (document.M, bool) {
	doc, ok := e.docs[id]
	if !ok {
		return nil, false
	}
	return codec.DeepClone(doc).(document.M), true
}

// ExistsByID reports whether id is present.
func (e *Engine) ExistsByID(id string) bool {
	_, ok := e.docs[id]
	return ok
}

// FindAll returns every document in insertion order.
func (e *Engine) FindAll() []document.M {
	out := make([]document.M, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, codec.DeepClone(e.docs[id]).(document.M))
	}
	return out
}

// Count returns the total number of documents.
func (e *Engine) Count() int {
	return len(e.order)
}

// FindByQuery returns the first match in insertion order, or (nil, false).
func (e *Engine) FindByQuery(filter document.M) (document.M, bool, error) {
	q, fastID, err := e.compile(filter)
	if err != nil {
		return nil, false, err
	}
	if fastID != "" {
		doc, ok := e.FindByID(fastID)
		return doc, ok, nil
	}

	for _, id := range e.order {
		doc := e.docs[id]
		if q == nil || q.Matches(doc) {
			return codec.DeepClone(doc).(document.M), true, nil
		}
	}
	return nil, false, nil
}

// FindMany returns all matches in insertion order.
func (e *Engine) FindMany(filter document.M) ([]document.M, error) {
	q, fastID, err := e.compile(filter)
	if err != nil {
		return nil, err
	}
	if fastID != "" {
		if doc, ok := e.FindByID(fastID); ok {
			return []document.M{doc}, nil
		}
		return []document.M{}, nil
	}

	out := []document.M{}
	for _, id := range e.order {
		doc := e.docs[id]
		if q == nil || q.Matches(doc) {
			out = append(out, codec.DeepClone(doc).(document.M))
		}
	}
	return out, nil
}

// CountByQuery returns the number of matches.
func (e *Engine) CountByQuery(filter document.M) (int, error) {
	matches, err := e.FindMany(filter)
	if err != nil {
		return 0, err
	}
	return len(matches), nil
}

// UpdateByID applies expr to the document with the given id, failing
// DocumentNotFound if absent.
func (e *Engine) UpdateByID(id string, expr document.M, now time.Time) (WriteResult, error) {
	doc, ok := e.docs[id]
	if !ok {
		return WriteResult{}, gasdberr.NewError(gasdberr.DocumentNotFound, "docengine.UpdateByID", "no document with _id '"+id+"'", nil)
	}
	return e.applyUpdateTo(id, doc, expr, now)
}

// UpdateByQuery updates the first document matching filter, failing
// DocumentNotFound if none match.
func (e *Engine) UpdateByQuery(filter document.M, expr document.M, now time.Time) (WriteResult, error) {
	if err := update.Validate(expr); err != nil {
		return WriteResult{}, err
	}
	q, fastID, err := e.compile(filter)
	if err != nil {
		return WriteResult{}, err
	}

	id, doc, found := e.firstMatch(q, fastID)
	if !found {
		return WriteResult{}, gasdberr.NewError(gasdberr.DocumentNotFound, "docengine.UpdateByQuery", "no document matched the filter", nil)
	}
	return e.applyUpdateTo(id, doc, expr, now)
}

// UpdateMany updates every document matching filter, succeeding with zero
// counts if none match.
func (e *Engine) UpdateMany(filter document.M, expr document.M, now time.Time) (WriteResult, error) {
	if err := update.Validate(expr); err != nil {
		return WriteResult{}, err
	}
	q, fastID, err := e.compile(filter)
	if err != nil {
		return WriteResult{}, err
	}

	ids := e.matchIDs(q, fastID)
	result := WriteResult{Acknowledged: true}
	for _, id := range ids {
		r, err := e.applyUpdateTo(id, e.docs[id], expr, now)
		if err != nil {
			return WriteResult{}, err
		}
		result.MatchedCount += r.MatchedCount
		result.ModifiedCount += r.ModifiedCount
	}
	return result, nil
}

// ReplaceByID replaces the document with the given id, failing
// DocumentNotFound if absent, preserving `_id`.
func (e *Engine) ReplaceByID(id string, replacement document.M, now time.Time) (WriteResult, error) {
	doc, ok := e.docs[id]
	if !ok {
		return WriteResult{}, gasdberr.NewError(gasdberr.DocumentNotFound, "docengine.ReplaceByID", "no document with _id '"+id+"'", nil)
	}
	return e.applyUpdateTo(id, doc, replacement, now)
}

// ReplaceByQuery replaces the first document matching filter, succeeding
// with zero counts if none match (the spec.md §4.5 asymmetry with
// UpdateByQuery).
func (e *Engine) ReplaceByQuery(filter document.M, replacement document.M, now time.Time) (WriteResult, error) {
	q, fastID, err := e.compile(filter)
	if err != nil {
		return WriteResult{}, err
	}

	id, doc, found := e.firstMatch(q, fastID)
	if !found {
		return WriteResult{Acknowledged: true}, nil
	}
	return e.applyUpdateTo(id, doc, replacement, now)
}

// DeleteByID removes the document with the given id, a no-op (zero count) if
// absent.
func (e *Engine) DeleteByID(id string, now time.Time) DeleteResult {
	if _, ok := e.docs[id]; !ok {
		return DeleteResult{Acknowledged: true}
	}
	e.removeAt(id)
	e.touch(now, -1)
	return DeleteResult{DeletedCount: 1, Acknowledged: true}
}

// DeleteByQuery removes the first document matching filter.
func (e *Engine) DeleteByQuery(filter document.M, now time.Time) (DeleteResult, error) {
	q, fastID, err := e.compile(filter)
	if err != nil {
		return DeleteResult{}, err
	}
	id, _, found := e.firstMatch(q, fastID)
	if !found {
		return DeleteResult{Acknowledged: true}, nil
	}
	e.removeAt(id)
	e.touch(now, -1)
	return DeleteResult{DeletedCount: 1, Acknowledged: true}, nil
}

// DeleteMany removes every document matching filter.
func (e *Engine) DeleteMany(filter document.M, now time.Time) (DeleteResult, error) {
	q, fastID, err := e.compile(filter)
	if err != nil {
		return DeleteResult{}, err
	}
	ids := e.matchIDs(q, fastID)
	for _, id := range ids {
		e.removeAt(id)
	}
	if len(ids) > 0 {
		e.touch(now, -len(ids))
	}
	return DeleteResult{DeletedCount: len(ids), Acknowledged: true}, nil
}

// compile implements spec.md §4.5's filter-analysis fast path: an empty
// filter matches everything (q == nil, fastID == ""); a filter that is
// exactly {_id: literal string} bypasses the Query Engine entirely
// (fastID != ""); anything else compiles through the Query Engine.
func (e *Engine) compile(filter document.M) (q *query.Query, fastID string, err error) {
	if len(filter) == 0 {
		return nil, "", nil
	}
	if len(filter) == 1 {
		if v, ok := filter[document.IDField]; ok {
			if id, ok := v.(string); ok {
				return nil, id, nil
			}
		}
	}

	compiled, err := query.NewEngine().Compile(filter)
	if err != nil {
		return nil, "", err
	}
	return compiled, "", nil
}

func (e *Engine) firstMatch(q *query.Query, fastID string) (id string, doc document.M, found bool) {
	if fastID != "" {
		doc, ok := e.docs[fastID]
		return fastID, doc, ok
	}
	for _, id := range e.order {
		doc := e.docs[id]
		if q == nil || q.Matches(doc) {
			return id, doc, true
		}
	}
	return "", nil, false
}

func (e *Engine) matchIDs(q *query.Query, fastID string) []string {
	if fastID != "" {
		if _, ok := e.docs[fastID]; ok {
			return []string{fastID}
		}
		return nil
	}
	var ids []string
	for _, id := range e.order {
		if q == nil || q.Matches(e.docs[id]) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (e *Engine) applyUpdateTo(id string, doc document.M, expr document.M, now time.Time) (WriteResult, error) {
	res, err := update.Apply(doc, expr)
	if err != nil {
		return WriteResult{}, err
	}

	e.docs[id] = res.Document
	if res.Modified {
		e.metadata.LastUpdated = now
	}
	return WriteResult{MatchedCount: 1, ModifiedCount: boolToCount(res.Modified), Acknowledged: true}, nil
}

func (e *Engine) removeAt(id string) {
	delete(e.docs, id)
	for i, existing := range e.order {
		if existing == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

func (e *Engine) touch(now time.Time, delta int) {
	e.metadata.LastUpdated = now
	e.metadata.DocumentCount += delta
}

func boolToCount(b bool) int {
	if b {
		return 1
	}
	return 0
}
