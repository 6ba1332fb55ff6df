package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for validation.
var (
	ErrMissingID        = errors.New("id is required")
	ErrMissingKind      = errors.New("kind is required")
	ErrMissingAccession = errors.New("accession is required")
	ErrMissingXref      = errors.New("xref attributes are required for xref nodes")
	ErrInvalidXrefKind  = errors.New("xref kind must be unification, relationship or publication")
)

// Sentinel errors for graph lookups and edits.
var (
	ErrNodeNotFound     = errors.New("node not found")
	ErrDuplicateID      = errors.New("duplicate node id")
	ErrKindConflict     = errors.New("node kind conflict")
	ErrUnknownReference = errors.New("reference to unknown node")
)

// Sentinel errors for the merge pipeline.
var (
	ErrMergeInvariant   = errors.New("merge invariant violated")
	ErrStoreFailure     = errors.New("target store failure")
	ErrMappingBuild     = errors.New("mapping table build failed")
	ErrUnknownNamespace = errors.New("unknown mapping namespace")
	ErrEmptyNamespace   = errors.New("no warehouse references for namespace")
)

// InvariantError reports replaced nodes that were still referenced after
// the rewrite pass.
type InvariantError struct {
	Document  string
	Survivors []string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %d replaced node(s) still referenced after rewrite: %s",
		e.Document, len(e.Survivors), strings.Join(e.Survivors, ", "))
}

// Unwrap lets errors.Is match ErrMergeInvariant.
func (e *InvariantError) Unwrap() error { return ErrMergeInvariant }

// ErrFieldTooLong returns an error indicating a field exceeds its maximum length.
func ErrFieldTooLong(field string, maxLen int) error {
	return fmt.Errorf("%s exceeds maximum length of %d", field, maxLen)
}
