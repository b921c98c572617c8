// Package errors holds the sentinel errors for the six kinds of failure
// §7 enumerates, grouped the way the reference corpus groups its own
// sentinel error values.
package errors

import "errors"

// Kind 1: configuration refusal, raised synchronously at construction.
var (
	ErrLopsidedHooks  = errors.New("nedb: afterSerialization and beforeDeserialization must both be set or both be absent")
	ErrHooksNotInverse = errors.New("nedb: afterSerialization/beforeDeserialization are not inverses")
	ErrReservedFilename = errors.New("nedb: filename must not end in '~'")
)

// Kind 2: key validation. FieldNameError from internal/value carries the
// specific field and reason; this sentinel lets callers errors.Is a
// generic check when they don't need the detail.
var ErrInvalidFieldName = errors.New("nedb: invalid field name")

// Kind 3: unique constraint violation. Wraps index.ErrUniqueViolation at
// the Datastore boundary so callers depending only on this package see a
// stable sentinel.
var ErrUniqueViolation = errors.New("nedb: unique constraint violation")

// Kind 4: modifier/operator misuse, surfaced per-operation from
// internal/query; re-exported here for callers that only import
// internal/errors.
var ErrInvalidModifier = errors.New("nedb: invalid modifier or operator usage")

// Kind 5: corruption.
var ErrCorruptionThresholdExceeded = errors.New("nedb: corrupt line fraction exceeds threshold; load refused")

// Kind 6: I/O.
var ErrIO = errors.New("nedb: I/O error")

// Other operational errors surfaced directly to callers.
var (
	ErrNotFound        = errors.New("nedb: no document matches _id")
	ErrMissingFieldName = errors.New("nedb: ensureIndex requires a fieldName")
	ErrIndexNotFound   = errors.New("nedb: no such index")
	ErrClosed          = errors.New("nedb: datastore is closed")
)
