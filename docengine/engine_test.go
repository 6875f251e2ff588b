package docengine

import (
	"testing"
	"time"

	"github.com/kartikbazzad/gasdb/document"
	"github.com/kartikbazzad/gasdb/gasdberr"
)

var now = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestInsertGeneratesIDAndRejectsDuplicate(t *testing.T) {
	e := New(now)

	id, err := e.Insert(document.M{"name": "a"}, now)
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("expected generated _id")
	}

	_, err = e.Insert(document.M{"_id": id, "name": "b"}, now)
	if err == nil {
		t.Fatal("expected DuplicateKey")
	}
	if kind, _ := gasdberr.KindOf(err); kind != gasdberr.DuplicateKey {
		t.Errorf("expected DuplicateKey, got %v", kind)
	}
}

func TestInsertClonesDocumentEgressAndIngress(t *testing.T) {
	e := New(now)
	src := document.M{"_id": "a", "tags": []document.Value{"x"}}
	if _, err := e.Insert(src, now); err != nil {
		t.Fatal(err)
	}
	src["tags"].([]document.Value)[0] = "mutated"

	stored, ok := e.FindByID("a")
	if !ok {
		t.Fatal("expected document to be found")
	}
	if stored["tags"].([]document.Value)[0] != "x" {
		t.Errorf("expected stored document unaffected by external mutation")
	}

	stored["tags"].([]document.Value)[0] = "also-mutated"
	stored2, _ := e.FindByID("a")
	if stored2["tags"].([]document.Value)[0] != "x" {
		t.Errorf("expected egress clone independence")
	}
}

func TestFindAllPreservesInsertionOrder(t *testing.T) {
	e := New(now)
	var ids []string
	for _, name := range []string{"c", "a", "b"} {
		id, err := e.Insert(document.M{"name": name}, now)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	all := e.FindAll()
	for i, doc := range all {
		gotID, _ := document.GetID(doc)
		if gotID != ids[i] {
			t.Errorf("index %d: expected insertion order preserved", i)
		}
	}
}

func TestEmptyFilterFastPathReturnsAll(t *testing.T) {
	e := New(now)
	e.Insert(document.M{"name": "a"}, now)
	e.Insert(document.M{"name": "b"}, now)

	many, err := e.FindMany(document.M{})
	if err != nil {
		t.Fatal(err)
	}
	if len(many) != 2 {
		t.Errorf("expected 2 documents, got %d", len(many))
	}
}

func TestIDOnlyFilterBypassesQueryEngine(t *testing.T) {
	e := New(now)
	id, _ := e.Insert(document.M{"name": "a"}, now)

	doc, found, err := e.FindByQuery(document.M{"_id": id})
	if err != nil {
		t.Fatal(err)
	}
	if !found || doc["name"] != "a" {
		t.Errorf("expected direct _id lookup to find document")
	}

	_, found, err = e.FindByQuery(document.M{"_id": "missing"})
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Errorf("expected no match for missing _id")
	}
}

func TestUpdateByIDFailsDocumentNotFound(t *testing.T) {
	e := New(now)
	_, err := e.UpdateByID("missing", document.M{"$set": document.M{"a": 1.0}}, now)
	if err == nil {
		t.Fatal("expected DocumentNotFound")
	}
	if kind, _ := gasdberr.KindOf(err); kind != gasdberr.DocumentNotFound {
		t.Errorf("expected DocumentNotFound, got %v", kind)
	}
}

func TestUpdateByQueryFailsOnNoMatchButReplaceByQuerySucceeds(t *testing.T) {
	e := New(now)
	e.Insert(document.M{"name": "a"}, now)

	_, err := e.UpdateByQuery(document.M{"name": "nope"}, document.M{"$set": document.M{"x": 1.0}}, now)
	if err == nil {
		t.Fatal("expected DocumentNotFound for updateByQuery with no matches")
	}

	result, err := e.ReplaceByQuery(document.M{"name": "nope"}, document.M{"name": "still-nope"}, now)
	if err != nil {
		t.Fatalf("expected replaceByQuery with no matches to succeed, got %v", err)
	}
	if result.MatchedCount != 0 || result.ModifiedCount != 0 || !result.Acknowledged {
		t.Errorf("expected zero-count acknowledged result, got %+v", result)
	}
}

func TestUpdateManySucceedsWithZeroCountsOnNoMatch(t *testing.T) {
	e := New(now)
	result, err := e.UpdateMany(document.M{"name": "nope"}, document.M{"$set": document.M{"x": 1.0}}, now)
	if err != nil {
		t.Fatal(err)
	}
	if result.MatchedCount != 0 || !result.Acknowledged {
		t.Errorf("expected zero-count acknowledged result, got %+v", result)
	}
}

func TestUpdateManyUpdatesAllMatches(t *testing.T) {
	e := New(now)
	e.Insert(document.M{"status": "pending"}, now)
	e.Insert(document.M{"status": "pending"}, now)
	e.Insert(document.M{"status": "done"}, now)

	result, err := e.UpdateMany(document.M{"status": "pending"}, document.M{"$set": document.M{"status": "done"}}, now)
	if err != nil {
		t.Fatal(err)
	}
	if result.MatchedCount != 2 || result.ModifiedCount != 2 {
		t.Errorf("expected 2 matched and modified, got %+v", result)
	}

	count, _ := e.CountByQuery(document.M{"status": "done"})
	if count != 3 {
		t.Errorf("expected all 3 documents done, got %d", count)
	}
}

func TestUpdateByQueryUpdatesOnlyFirstMatch(t *testing.T) {
	e := New(now)
	e.Insert(document.M{"status": "pending"}, now)
	e.Insert(document.M{"status": "pending"}, now)

	result, err := e.UpdateByQuery(document.M{"status": "pending"}, document.M{"$set": document.M{"status": "done"}}, now)
	if err != nil {
		t.Fatal(err)
	}
	if result.MatchedCount != 1 {
		t.Errorf("expected exactly 1 matched, got %+v", result)
	}

	count, _ := e.CountByQuery(document.M{"status": "pending"})
	if count != 1 {
		t.Errorf("expected 1 remaining pending, got %d", count)
	}
}

func TestMatchedNotModifiedCount(t *testing.T) {
	e := New(now)
	e.Insert(document.M{"_id": "a", "status": "done"}, now)

	result, err := e.UpdateByID("a", document.M{"$set": document.M{"status": "done"}}, now)
	if err != nil {
		t.Fatal(err)
	}
	if result.MatchedCount != 1 || result.ModifiedCount != 0 {
		t.Errorf("expected matched-not-modified, got %+v", result)
	}
}

func TestDeleteByIDAndDeleteMany(t *testing.T) {
	e := New(now)
	id1, _ := e.Insert(document.M{"status": "x"}, now)
	e.Insert(document.M{"status": "x"}, now)
	e.Insert(document.M{"status": "y"}, now)

	delResult := e.DeleteByID(id1, now)
	if delResult.DeletedCount != 1 {
		t.Errorf("expected 1 deleted, got %+v", delResult)
	}
	if e.Count() != 2 {
		t.Errorf("expected 2 remaining, got %d", e.Count())
	}

	manyResult, err := e.DeleteMany(document.M{"status": "x"}, now)
	if err != nil {
		t.Fatal(err)
	}
	if manyResult.DeletedCount != 1 {
		t.Errorf("expected 1 deleted by query, got %+v", manyResult)
	}
	if e.Count() != 1 {
		t.Errorf("expected 1 remaining, got %d", e.Count())
	}
}

func TestDeleteNonexistentIsZeroCountNotError(t *testing.T) {
	e := New(now)
	result := e.DeleteByID("missing", now)
	if result.DeletedCount != 0 || !result.Acknowledged {
		t.Errorf("expected zero-count acknowledged result, got %+v", result)
	}
}

func TestDocumentCountInvariant(t *testing.T) {
	e := New(now)
	e.Insert(document.M{"a": 1.0}, now)
	e.Insert(document.M{"a": 2.0}, now)
	e.DeleteByID(mustFirstID(e), now)

	if e.Metadata().DocumentCount != e.Count() {
		t.Errorf("documentCount %d != len(documents) %d", e.Metadata().DocumentCount, e.Count())
	}
}

func mustFirstID(e *Engine) string {
	all := e.FindAll()
	id, _ := document.GetID(all[0])
	return id
}
