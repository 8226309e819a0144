package errors

import "errors"

// ErrOptimisticLock is returned by the store when a versioned write finds
// the record changed since it was read.
var ErrOptimisticLock = errors.New("record was modified by another operation")
