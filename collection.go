package gasdb

import (
	"context"
	"sync"
	"time"

	"github.com/kartikbazzad/gasdb/coordinator"
	"github.com/kartikbazzad/gasdb/docengine"
	"github.com/kartikbazzad/gasdb/document"
	"github.com/kartikbazzad/gasdb/gasdberr"
	"github.com/kartikbazzad/gasdb/gasdblog"
	"github.com/kartikbazzad/gasdb/rules"
	"github.com/kartikbazzad/gasdb/schema"
)

// InsertOneResult mirrors MongoDB's {acknowledged, insertedId} shape.
type InsertOneResult struct {
	Acknowledged bool
	InsertedID   string
}

// UpdateResult mirrors MongoDB's {matchedCount, modifiedCount, acknowledged}
// shape.
type UpdateResult struct {
	MatchedCount  int
	ModifiedCount int
	Acknowledged  bool
}

// DeleteResult mirrors MongoDB's {deletedCount, acknowledged} shape.
type DeleteResult struct {
	DeletedCount int
	Acknowledged bool
}

// Collection is a thin, validating wrapper over one collection's
// coordinator.Coordinator — spec.md §4.8's Facade. It owns no document
// state of its own; every call delegates to the Coordinator, which owns the
// lock/load/apply/save/rotate/release critical section.
type Collection struct {
	name        string
	coordinator *coordinator.Coordinator
	logger      *gasdblog.Logger
	rules       *rules.Engine

	schemaMu  sync.RWMutex
	schemaDef *schema.Schema

	lazyLoaded bool
	isDirty    bool
}

// SetSchema attaches a JSON Schema that insertOne/replaceOne will enforce
// from then on. Passing an empty string clears it, reverting to no
// validation. Setting the same schema currently in effect (modulo key order
// and whitespace) is a no-op rather than a recompile.
func (c *Collection) SetSchema(schemaJSON string) error {
	c.schemaMu.Lock()
	defer c.schemaMu.Unlock()
	if schemaJSON == "" {
		c.schemaDef = nil
		return nil
	}
	if c.schemaDef != nil {
		if same, err := schema.Equal(c.schemaDef.Raw(), schemaJSON); err == nil && same {
			return nil
		}
	}
	compiled, err := schema.Compile(schemaJSON)
	if err != nil {
		return err
	}
	c.schemaDef = compiled
	return nil
}

func (c *Collection) checkSchema(doc document.M) error {
	c.schemaMu.RLock()
	s := c.schemaDef
	c.schemaMu.RUnlock()
	if s == nil {
		return nil
	}
	return s.Check(doc)
}

func (c *Collection) checkRule(op rules.Operation, auth *rules.AuthContext, resource document.M) error {
	if c.rules == nil {
		return nil
	}
	allowed, err := c.rules.Allow(c.name, op, auth, resource)
	if err != nil {
		return gasdberr.NewError(gasdberr.InvalidArgument, "Collection", "rule evaluation failed", err)
	}
	if !allowed {
		return gasdberr.NewError(gasdberr.PermissionDenied, "Collection", "operation denied by access rule", nil)
	}
	return nil
}

// InsertOneAs is InsertOne with an access-rule check against auth first.
func (c *Collection) InsertOneAs(auth *rules.AuthContext, doc document.M) (InsertOneResult, error) {
	if err := c.checkRule(rules.OpCreate, auth, doc); err != nil {
		return InsertOneResult{}, err
	}
	return c.InsertOne(doc)
}

// FindOneAs is FindOne with an access-rule check against auth first.
func (c *Collection) FindOneAs(auth *rules.AuthContext, filter document.M) (document.M, bool, error) {
	if err := c.checkRule(rules.OpRead, auth, filter); err != nil {
		return nil, false, err
	}
	return c.FindOne(filter)
}

// FindAs is Find with an access-rule check against auth first.
func (c *Collection) FindAs(auth *rules.AuthContext, filter document.M) ([]document.M, error) {
	if err := c.checkRule(rules.OpList, auth, filter); err != nil {
		return nil, err
	}
	return c.Find(filter)
}

// UpdateOneAs is UpdateOne with an access-rule check against auth first. The
// rule evaluates against the document the filter currently matches (falling
// back to the filter itself if nothing matches yet), so a rule like
// `request.auth.uid == resource.ownerId` can inspect the resource being
// modified rather than just the query.
func (c *Collection) UpdateOneAs(auth *rules.AuthContext, filter, upd document.M) (UpdateResult, error) {
	resource := c.ruleResource(filter)
	if err := c.checkRule(rules.OpUpdate, auth, resource); err != nil {
		return UpdateResult{}, err
	}
	return c.UpdateOne(filter, upd)
}

// DeleteOneAs is DeleteOne with an access-rule check against auth first, the
// same resource-lookup behaviour as UpdateOneAs.
func (c *Collection) DeleteOneAs(auth *rules.AuthContext, filter document.M) (DeleteResult, error) {
	resource := c.ruleResource(filter)
	if err := c.checkRule(rules.OpDelete, auth, resource); err != nil {
		return DeleteResult{}, err
	}
	return c.DeleteOne(filter)
}

// ruleResource returns the document filter currently matches, or filter
// itself if none does (or reading fails) — a best-effort resource for
// access-rule evaluation.
func (c *Collection) ruleResource(filter document.M) document.M {
	if doc, found, err := c.FindOne(filter); err == nil && found {
		return doc
	}
	return filter
}

func (c *Collection) ctx() context.Context { return context.Background() }

func (c *Collection) now() time.Time { return time.Now().UTC() }

// InsertOne inserts doc, generating `_id` if absent.
func (c *Collection) InsertOne(doc document.M) (InsertOneResult, error) {
	if doc == nil {
		return InsertOneResult{}, gasdberr.NewError(gasdberr.InvalidArgument, "Collection.InsertOne", "doc must not be nil", nil)
	}
	if err := c.checkSchema(doc); err != nil {
		return InsertOneResult{}, err
	}

	var insertedID string
	err := c.coordinator.Mutate(c.ctx(), "insert", c.now(), func(e *docengine.Engine) error {
		id, err := e.Insert(doc, c.now())
		if err != nil {
			return err
		}
		insertedID = id
		return nil
	})
	if err != nil {
		return InsertOneResult{}, err
	}
	c.markTouched()
	return InsertOneResult{Acknowledged: true, InsertedID: insertedID}, nil
}

// FindOne returns the first document matching filter, or (nil, false).
func (c *Collection) FindOne(filter document.M) (document.M, bool, error) {
	if err := validateFilter(filter); err != nil {
		return nil, false, err
	}
	var doc document.M
	var found bool
	err := c.view(func(e *docengine.Engine) error {
		d, f, err := e.FindByQuery(filter)
		doc, found = d, f
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return doc, found, nil
}

// Find returns every document matching filter.
func (c *Collection) Find(filter document.M) ([]document.M, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	var docs []document.M
	err := c.view(func(e *docengine.Engine) error {
		found, err := e.FindMany(filter)
		docs = found
		return err
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// CountDocuments returns the number of documents matching filter.
func (c *Collection) CountDocuments(filter document.M) (int, error) {
	if err := validateFilter(filter); err != nil {
		return 0, err
	}
	var count int
	err := c.view(func(e *docengine.Engine) error {
		n, err := e.CountByQuery(filter)
		count = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateOne applies upd to the first document matching filter, failing
// DocumentNotFound if none match.
func (c *Collection) UpdateOne(filter, upd document.M) (UpdateResult, error) {
	if err := validateFilter(filter); err != nil {
		return UpdateResult{}, err
	}
	if err := validateUpdate(upd); err != nil {
		return UpdateResult{}, err
	}

	var result docengine.WriteResult
	err := c.coordinator.Mutate(c.ctx(), "update", c.now(), func(e *docengine.Engine) error {
		r, err := e.UpdateByQuery(filter, upd, c.now())
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return UpdateResult{}, err
	}
	c.markTouched()
	return UpdateResult{MatchedCount: result.MatchedCount, ModifiedCount: result.ModifiedCount, Acknowledged: result.Acknowledged}, nil
}

// UpdateMany applies upd to every document matching filter.
func (c *Collection) UpdateMany(filter, upd document.M) (UpdateResult, error) {
	if err := validateFilter(filter); err != nil {
		return UpdateResult{}, err
	}
	if err := validateUpdate(upd); err != nil {
		return UpdateResult{}, err
	}

	var result docengine.WriteResult
	err := c.coordinator.Mutate(c.ctx(), "update", c.now(), func(e *docengine.Engine) error {
		r, err := e.UpdateMany(filter, upd, c.now())
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return UpdateResult{}, err
	}
	c.markTouched()
	return UpdateResult{MatchedCount: result.MatchedCount, ModifiedCount: result.ModifiedCount, Acknowledged: result.Acknowledged}, nil
}

// ReplaceOne replaces the first document matching filter, succeeding with
// zero counts if none match.
func (c *Collection) ReplaceOne(filter, replacement document.M) (UpdateResult, error) {
	if err := validateFilter(filter); err != nil {
		return UpdateResult{}, err
	}
	if replacement == nil {
		return UpdateResult{}, gasdberr.NewError(gasdberr.InvalidArgument, "Collection.ReplaceOne", "replacement must not be nil", nil)
	}
	if err := c.checkSchema(replacement); err != nil {
		return UpdateResult{}, err
	}

	var result docengine.WriteResult
	err := c.coordinator.Mutate(c.ctx(), "replace", c.now(), func(e *docengine.Engine) error {
		r, err := e.ReplaceByQuery(filter, replacement, c.now())
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return UpdateResult{}, err
	}
	c.markTouched()
	return UpdateResult{MatchedCount: result.MatchedCount, ModifiedCount: result.ModifiedCount, Acknowledged: result.Acknowledged}, nil
}

// DeleteOne removes the first document matching filter.
func (c *Collection) DeleteOne(filter document.M) (DeleteResult, error) {
	if err := validateFilter(filter); err != nil {
		return DeleteResult{}, err
	}

	var result docengine.DeleteResult
	err := c.coordinator.Mutate(c.ctx(), "delete", c.now(), func(e *docengine.Engine) error {
		r, err := e.DeleteByQuery(filter, c.now())
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return DeleteResult{}, err
	}
	c.markTouched()
	return DeleteResult{DeletedCount: result.DeletedCount, Acknowledged: result.Acknowledged}, nil
}

// DeleteMany removes every document matching filter.
func (c *Collection) DeleteMany(filter document.M) (DeleteResult, error) {
	if err := validateFilter(filter); err != nil {
		return DeleteResult{}, err
	}

	var result docengine.DeleteResult
	err := c.coordinator.Mutate(c.ctx(), "delete", c.now(), func(e *docengine.Engine) error {
		r, err := e.DeleteMany(filter, c.now())
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return DeleteResult{}, err
	}
	c.markTouched()
	return DeleteResult{DeletedCount: result.DeletedCount, Acknowledged: result.Acknowledged}, nil
}

// view runs fn against the collection's current snapshot under the
// Coordinator's lock, so fn never observes the engine's maps while a
// concurrent Mutate is editing them in place.
func (c *Collection) view(fn func(e *docengine.Engine) error) error {
	err := c.coordinator.View(c.ctx(), fn)
	if err != nil {
		return err
	}
	c.lazyLoaded = true
	return nil
}

func (c *Collection) markTouched() {
	c.lazyLoaded = true
	c.isDirty = true
}

func validateFilter(filter document.M) error {
	if filter == nil {
		return gasdberr.NewError(gasdberr.InvalidArgument, "Collection", "filter must not be nil (use an empty document.M{} to match everything)", nil)
	}
	return nil
}

func validateUpdate(upd document.M) error {
	if upd == nil {
		return gasdberr.NewError(gasdberr.InvalidArgument, "Collection", "update must not be nil", nil)
	}
	return nil
}
