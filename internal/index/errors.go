package index

import "errors"

// ErrUniqueViolation is returned by Insert/Update/UpdateMultiple when a
// unique index already holds a different document under one of the keys
// being inserted (§4.4).
var ErrUniqueViolation = errors.New("index: unique constraint violation")
