package gasdb

import "github.com/kartikbazzad/gasdb/gasdberr"

// Error, Kind and the Kind constants are re-exported at the root package so
// callers of the Facade never need to import the internal gasdberr package
// directly — the taxonomy of spec.md §7 is part of the public surface.
type Error = gasdberr.Error
type Kind = gasdberr.Kind

const (
	InvalidArgument   = gasdberr.InvalidArgument
	InvalidQuery      = gasdberr.InvalidQuery
	InvalidUpdate     = gasdberr.InvalidUpdate
	DocumentNotFound  = gasdberr.DocumentNotFound
	DuplicateKey      = gasdberr.DuplicateKey
	ConflictErrorKind = gasdberr.ConflictErrorKind
	LockTimeout       = gasdberr.LockTimeout
	FileIO            = gasdberr.FileIO
	InvalidFileFormat = gasdberr.InvalidFileFormat
	MasterIndexError  = gasdberr.MasterIndexError
	ConfigurationErr  = gasdberr.ConfigurationErr
	InvalidPath       = gasdberr.InvalidPath
	QuotaExceeded     = gasdberr.QuotaExceeded
	PermissionDenied  = gasdberr.PermissionDenied
	FileNotFound      = gasdberr.FileNotFound
)

// KindOf and Is forward to gasdberr so callers can inspect error kinds
// without an extra import.
func KindOf(err error) (Kind, bool) { return gasdberr.KindOf(err) }
func Is(err error, kind Kind) bool  { return gasdberr.Is(err, kind) }
