package ginternals

import "errors"

var (
	// ErrObjectNotFound is returned when a git object cannot be found
	// in the object database
	ErrObjectNotFound = errors.New("object not found")

	// ErrRefNotFound is returned when trying to act on a reference
	// that doesn't exist
	ErrRefNotFound = errors.New("reference not found")

	// ErrRefNameInvalid is returned when the name of a reference
	// is not valid
	ErrRefNameInvalid = errors.New("reference name is not valid")

	// ErrRefInvalid is returned when a reference file contains
	// unexpected data
	ErrRefInvalid = errors.New("reference is not valid")
)
