package main

import (
	"testing"
)

func TestParseDocumentRoundTripsDate(t *testing.T) {
	doc, err := parseDocument(`{"name":"Anna","born":"2024-01-01T00:00:00.000Z"}`)
	if err != nil {
		t.Fatal(err)
	}
	if doc["name"] != "Anna" {
		t.Errorf("expected name Anna, got %v", doc["name"])
	}
}

func TestParseDocumentRejectsNonObject(t *testing.T) {
	if _, err := parseDocument(`[1,2,3]`); err == nil {
		t.Fatal("expected an error for a non-object JSON value")
	}
}

func TestParseFilterEmptyStringMatchesEverything(t *testing.T) {
	filter, err := parseFilter("  ")
	if err != nil {
		t.Fatal(err)
	}
	if len(filter) != 0 {
		t.Errorf("expected an empty filter, got %v", filter)
	}
}

func TestSplitTwoJSONArgs(t *testing.T) {
	first, second, ok := splitTwoJSONArgs(`{"_id":"a"} {"$set":{"x":1}}`)
	if !ok {
		t.Fatal("expected a successful split")
	}
	if first != `{"_id":"a"}` {
		t.Errorf("unexpected first: %s", first)
	}
	if second != `{"$set":{"x":1}}` {
		t.Errorf("unexpected second: %s", second)
	}
}

func TestSplitTwoJSONArgsRejectsSingleObject(t *testing.T) {
	if _, _, ok := splitTwoJSONArgs(`{"_id":"a"}`); ok {
		t.Fatal("expected split to fail with only one JSON object present")
	}
}

func TestFormatValueDate(t *testing.T) {
	doc, err := parseDocument(`{"born":"2024-01-01T00:00:00.000Z"}`)
	if err != nil {
		t.Fatal(err)
	}
	if got := formatValue(doc["born"]); got != "2024-01-01T00:00:00.000Z" {
		t.Errorf("expected formatted date, got %s", got)
	}
}
