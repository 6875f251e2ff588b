package gasdb

import (
	"testing"

	"github.com/kartikbazzad/gasdb/document"
	"github.com/kartikbazzad/gasdb/gasdberr"
	"github.com/kartikbazzad/gasdb/rules"
)

func TestSetSchemaRejectsInvalidInsert(t *testing.T) {
	db := newTestDB(t)
	coll, _ := db.CreateCollection("users")

	if err := coll.SetSchema(`{"type":"object","required":["name"],"properties":{"name":{"type":"string"}}}`); err != nil {
		t.Fatal(err)
	}

	if _, err := coll.InsertOne(document.M{"age": 10.0}); err == nil {
		t.Fatal("expected schema validation to reject a document missing 'name'")
	}

	if _, err := coll.InsertOne(document.M{"name": "Anna"}); err != nil {
		t.Fatalf("expected valid document to pass, got %v", err)
	}
}

func TestSetSchemaSameSchemaIsNoOp(t *testing.T) {
	db := newTestDB(t)
	coll, _ := db.CreateCollection("users")

	if err := coll.SetSchema(`{"type":"object","required":["name"]}`); err != nil {
		t.Fatal(err)
	}
	// Same schema, different key order/whitespace: should not recompile or
	// otherwise change the enforced schema.
	if err := coll.SetSchema(`{
		"required": ["name"],
		"type": "object"
	}`); err != nil {
		t.Fatal(err)
	}

	if _, err := coll.InsertOne(document.M{"age": 10.0}); err == nil {
		t.Fatal("expected the still-enforced schema to reject a document missing 'name'")
	}
}

func TestClearingSchemaAllowsAnyDocument(t *testing.T) {
	db := newTestDB(t)
	coll, _ := db.CreateCollection("users")
	coll.SetSchema(`{"type":"object","required":["name"]}`)
	coll.SetSchema("")

	if _, err := coll.InsertOne(document.M{"age": 10.0}); err != nil {
		t.Fatalf("expected no schema to allow any document, got %v", err)
	}
}

func TestRuleDeniesInsertOneAs(t *testing.T) {
	db := newTestDB(t)
	coll, _ := db.CreateCollection("users")
	db.Rules().SetRule("users", rules.OpCreate, "false")

	_, err := coll.InsertOneAs(&rules.AuthContext{UID: "u1"}, document.M{"_id": "a"})
	if err == nil {
		t.Fatal("expected rule to deny insert")
	}
	if kind, _ := gasdberr.KindOf(err); kind != gasdberr.PermissionDenied {
		t.Errorf("expected PermissionDenied, got %v", kind)
	}
}

func TestRuleAllowsWhenOwnerMatches(t *testing.T) {
	db := newTestDB(t)
	coll, _ := db.CreateCollection("docs")
	db.Rules().SetRule("docs", rules.OpUpdate, "request.auth.uid == resource.ownerId")

	coll.InsertOne(document.M{"_id": "d1", "ownerId": "u1"})

	_, err := coll.UpdateOneAs(&rules.AuthContext{UID: "u2"}, document.M{"_id": "d1"}, document.M{"$set": document.M{"x": 1.0}})
	if err == nil {
		t.Fatal("expected non-owner update denied")
	}

	_, err = coll.UpdateOneAs(&rules.AuthContext{UID: "u1"}, document.M{"_id": "d1"}, document.M{"$set": document.M{"x": 1.0}})
	if err != nil {
		t.Fatalf("expected owner update allowed, got %v", err)
	}
}

func TestNoRuleSetAllowsAsVariants(t *testing.T) {
	db := newTestDB(t)
	coll, _ := db.CreateCollection("free")

	if _, err := coll.InsertOneAs(nil, document.M{"_id": "f1"}); err != nil {
		t.Fatalf("expected allow with no rule set, got %v", err)
	}
	if _, _, err := coll.FindOneAs(nil, document.M{"_id": "f1"}); err != nil {
		t.Fatalf("expected allow with no rule set, got %v", err)
	}
}
