package overlay

import "errors"

// Sentinel errors for the overlay core, following the "package-level
// errors.New value, package-prefixed message" idiom.
var (
	// ErrInvalidParameter covers duplicate connection ids, duplicate public
	// keys, a peer presenting the owner's own id, or a zero-valued id.
	ErrInvalidParameter = errors.New("overlay: invalid parameter")

	// ErrCapacityExceeded is returned when a table is full and the
	// candidate does not displace any incumbent.
	ErrCapacityExceeded = errors.New("overlay: capacity exceeded")

	// ErrOutOfRange is returned when a client admission is attempted
	// outside the vault's close-group radius.
	ErrOutOfRange = errors.New("overlay: node outside close-group range")

	// ErrNotFound is returned by ClientRoutingTable.DropNodes and
	// DropConnection when no entry matches.
	ErrNotFound = errors.New("overlay: node not found")

	// ErrUnreachable indicates an internal invariant was violated. It
	// should never be observed on a correct call sequence.
	ErrUnreachable = errors.New("overlay: unreachable state (invariant violated)")
)
