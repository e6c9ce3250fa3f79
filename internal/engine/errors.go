package engine

import (
	"errors"
	"fmt"
)

// Error kinds per spec.md §7. Each is a sentinel tested with errors.Is;
// callers distinguish malformed input (reject the call) from an
// invariant violation (fatal, abort) without string matching.
var (
	// ErrMalformedInput covers records whose case events are not
	// contiguous in input order. Table-level faults (a missing required
	// column, a non-numeric duration) are reported by internal/logio as
	// plain errors that do not wrap this sentinel.
	ErrMalformedInput = errors.New("malformed input")

	// ErrInvalidParameter covers k < 1, t outside [0,1), or epsilon <= 0
	// when DP is enabled.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInvariantViolation covers a surviving sequence missing from the
	// distance table, or any other internal consistency failure. The
	// engine never recovers from this — it always bubbles to the caller.
	ErrInvariantViolation = errors.New("engine invariant violation")
)

// wrapf attaches operation context to a sentinel error while keeping it
// unwrappable via errors.Is, following internal/db's fmt.Errorf("...: %w")
// wrapping convention.
func wrapf(kind error, format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, kind)...)
}
