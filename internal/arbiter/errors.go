package arbiter

import "errors"

// Arbiter errors.
var (
	// ErrAlreadyDecided is returned when restoring state onto an
	// arbiter that has already committed to an affinity.
	ErrAlreadyDecided = errors.New("arbiter: affinity already decided")

	// ErrStoreFailed wraps persistence failures.
	ErrStoreFailed = errors.New("arbiter: store operation failed")
)
