package cas

import "errors"

// ErrNotFound is returned when a requested object does not exist.
var ErrNotFound = errors.New("object not found")

// ErrHashMismatch is returned when a loaded payload does not hash to its
// address. It is fatal: it means the store's immutability assumption was
// violated.
var ErrHashMismatch = errors.New("object hash mismatch")

// ErrIndexCorrupt is returned when the similarity index disagrees with the
// object tree. Fatal for the same reason.
var ErrIndexCorrupt = errors.New("similarity index corrupt")

// ErrBadRef is returned for malformed symbolic ref names.
var ErrBadRef = errors.New("invalid ref name")
