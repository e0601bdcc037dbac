package repository

import "errors"

var (
	// ErrNotFound is returned when a lookup by id/business_id/hash finds
	// no row.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write would violate a uniqueness
	// invariant the caller did not account for.
	ErrConflict = errors.New("conflict")
)

// BusinessIDConflictError reports that business_id already belongs to
// a different content row (spec §4.1's "business_id is globally
// unique"). No Store method returns it: UpsertContent updates the
// existing row on a business_id collision.
type BusinessIDConflictError struct {
	BusinessID string
}

func (e *BusinessIDConflictError) Error() string {
	return "business_id already in use: " + e.BusinessID
}

func (e *BusinessIDConflictError) Is(target error) bool {
	return target == ErrConflict
}
