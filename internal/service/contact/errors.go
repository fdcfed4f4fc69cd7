package contact

import "errors"

var (
	// ErrNotFound is returned when a contact does not exist for the user.
	ErrNotFound = errors.New("contact not found")

	// ErrEmailExists is returned when creating a contact whose email is
	// already taken within the user's tenant.
	ErrEmailExists = errors.New("a contact with this email already exists")

	// ErrSelfMerge is returned when primary and secondary ids are equal.
	ErrSelfMerge = errors.New("cannot merge a contact with itself")

	// ErrDuplicateNotFound is returned for an unknown duplicate pair id.
	ErrDuplicateNotFound = errors.New("duplicate pair not found")
)
