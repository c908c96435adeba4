package core

import (
	"errors"
	"fmt"
)

// Import error kinds. Match with errors.Is; the typed errors below carry
// the detail and unwrap to their kind.
var (
	ErrUnknownTable       = errors.New("unknown table")
	ErrInvalidMapping     = errors.New("invalid field mapping")
	ErrMissingColumn      = errors.New("missing required column")
	ErrPartialImport      = errors.New("import aborted")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrPlanExecuted       = errors.New("import plan already executed")
)

// MappingError reports a selected mapping that cannot be executed.
type MappingError struct {
	Field  string
	Reason string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidMapping, e.Field, e.Reason)
}

func (e *MappingError) Unwrap() error { return ErrInvalidMapping }

// MissingColumnError reports a mapped source column absent from the file.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: %q", ErrMissingColumn, e.Column)
}

func (e *MissingColumnError) Unwrap() error { return ErrMissingColumn }

// PartialImportError reports the first failing row of an aborted import.
// Row is the 0-based index into the data rows; nothing was committed.
type PartialImportError struct {
	Row int
	Err error
}

func (e *PartialImportError) Error() string {
	return fmt.Sprintf("%s at row %d: %v", ErrPartialImport, e.Row, e.Err)
}

func (e *PartialImportError) Unwrap() []error { return []error{ErrPartialImport, e.Err} }

// StorageError wraps a transient failure of the storage collaborator.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStorageUnavailable, e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error { return []error{ErrStorageUnavailable, e.Err} }

// RowError is returned by a BulkInserter when a specific row is rejected.
// The importer turns it into a PartialImportError.
type RowError struct {
	Index int
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Index, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }
