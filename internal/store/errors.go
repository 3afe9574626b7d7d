package store

import "errors"

// ErrNotFound is returned by store methods when the requested record does
// not exist. Callers check for it with errors.Is.
var ErrNotFound = errors.New("record not found")

// ErrConflict names an insert or update that would violate a unique
// constraint (e.g. a duplicate Job UUID). The gorm-backed stores do not
// return it: they pass the driver's constraint error through unchanged.
var ErrConflict = errors.New("record already exists")
