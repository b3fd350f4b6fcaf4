// Package timeout implements the single-thread priority heap of pending
// process wakeups described by the runtime's timeout service, plus the
// worker loop that drains suspensions, fires expired entries, and
// periodically defragments the heap.
package timeout

import "time"

// Token is a reference-counted deadline object. A process holds the same
// *Token the heap entry references; validity is checked by pointer
// identity, never by re-deriving it from the process, which is how the
// cyclic Process<->Timeout ownership problem is avoided (see DESIGN.md).
type Token struct {
	Deadline time.Time
}

// NewToken creates a token that expires after the given duration.
func NewToken(after time.Duration) *Token {
	return &Token{Deadline: time.Now().Add(after)}
}

// RemainingUntil reports the duration until the token's deadline, or false
// if it has already passed.
func (t *Token) RemainingUntil(now time.Time) (time.Duration, bool) {
	if !now.Before(t.Deadline) {
		return 0, false
	}
	return t.Deadline.Sub(now), true
}
