package waitlist

import "errors"

// Surfaced errors: anything that would make the live queue incorrect or
// inconsistent reaches the caller. Degraded prediction or notification
// quality never does.
var (
	// ErrNotFound signals an unknown waitlist or position. No retry.
	ErrNotFound = errors.New("waitlist: not found")

	// ErrInvalidTransition signals an illegal status change. The caller
	// must re-read state before retrying.
	ErrInvalidTransition = errors.New("waitlist: invalid status transition")

	// ErrWaitlistClosed signals a join attempt on a waitlist that does not
	// accept new parties.
	ErrWaitlistClosed = errors.New("waitlist: closed to new parties")
)
