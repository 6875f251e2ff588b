// Package fileservice defines GASDB's file-service interface (spec.md §6):
// the object-store collaborator the Coordinator reads and writes collection
// blobs through.
//
// No teacher equivalent exists — bundoc owns its own on-disk pager instead
// of delegating to an external blob store — so this is built directly from
// spec.md §6's operation list, adapters named in SPEC_FULL.md's DOMAIN
// section.
package fileservice

import (
	"context"
	"time"
)

// Metadata describes a stored file.
type Metadata struct {
	ID           string
	Name         string
	ModifiedTime time.Time
}

// Service is the file-service interface consumed by the Coordinator. All
// operations may fail with a gasdberr Kind of QuotaExceeded, PermissionDenied,
// FileNotFound, or a transient FileIO error retryable at the Coordinator
// layer.
type Service interface {
	// Create stores payload under a new file named name (optionally scoped
	// under parentId, a folder/prefix concept some backends support and
	// others ignore) and returns its fileId.
	Create(ctx context.Context, name string, payload []byte, parentID string) (fileID string, err error)
	// Read returns the current payload for fileID.
	Read(ctx context.Context, fileID string) ([]byte, error)
	// Write overwrites fileID's payload atomically.
	Write(ctx context.Context, fileID string, payload []byte) error
	// Delete removes fileID.
	Delete(ctx context.Context, fileID string) error
	// Exists reports whether fileID is present.
	Exists(ctx context.Context, fileID string) (bool, error)
	// Metadata returns fileID's descriptor.
	Metadata(ctx context.Context, fileID string) (Metadata, error)
}
