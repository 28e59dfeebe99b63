package fault

import "errors"

// Predefined errors for record id handling.
var (
	// ErrInvalidId indicates an id that is zero, negative or otherwise unusable
	// as a primary key.
	ErrInvalidId = errors.New("invalid id")

	// ErrInvalidIdFormat indicates that the string representation of an id
	// could not be parsed as a base 10 integer.
	ErrInvalidIdFormat = errors.New("invalid id format")

	// ErrIdNotIssued indicates the id generator could not persist a new value,
	// so no id was handed out.
	ErrIdNotIssued = errors.New("id not issued")
)
