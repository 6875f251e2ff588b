package fileservice

import (
	"context"
	"testing"

	"github.com/kartikbazzad/gasdb/gasdberr"
)

func TestMemoryCreateReadWriteDelete(t *testing.T) {
	ctx := context.Background()
	svc := NewMemory()

	id, err := svc.Create(ctx, "collection-a", []byte(`{"a":1}`), "")
	if err != nil {
		t.Fatal(err)
	}

	data, err := svc.Read(ctx, id)
	if err != nil || string(data) != `{"a":1}` {
		t.Fatalf("expected round-trip payload, got %q err=%v", data, err)
	}

	if err := svc.Write(ctx, id, []byte(`{"a":2}`)); err != nil {
		t.Fatal(err)
	}
	data, _ = svc.Read(ctx, id)
	if string(data) != `{"a":2}` {
		t.Errorf("expected overwritten payload, got %q", data)
	}

	exists, _ := svc.Exists(ctx, id)
	if !exists {
		t.Error("expected file to exist")
	}

	if err := svc.Delete(ctx, id); err != nil {
		t.Fatal(err)
	}
	exists, _ = svc.Exists(ctx, id)
	if exists {
		t.Error("expected file removed")
	}
}

func TestMemoryReadMissingIsFileNotFound(t *testing.T) {
	ctx := context.Background()
	svc := NewMemory()

	_, err := svc.Read(ctx, "missing")
	if err == nil {
		t.Fatal("expected FileNotFound")
	}
	if kind, _ := gasdberr.KindOf(err); kind != gasdberr.FileNotFound {
		t.Errorf("expected FileNotFound, got %v", kind)
	}
}

func TestMemoryPayloadIsolation(t *testing.T) {
	ctx := context.Background()
	svc := NewMemory()

	payload := []byte(`{"a":1}`)
	id, _ := svc.Create(ctx, "x", payload, "")
	payload[0] = 'X'

	data, _ := svc.Read(ctx, id)
	if data[0] == 'X' {
		t.Error("expected stored payload independent of caller's slice")
	}
}
