package core

import "sync/atomic"

// Aborter is a thread-safe monotonic cancellation flag, per §5's
// "Interrupt token" redesign note: a shared flag passed by reference and
// checked at enumerated suspension points (between percentile samples,
// between concentration-engine cycles, between adjustment candidates).
// Once triggered it never resets.
type Aborter struct {
	flag atomic.Bool
}

// NewAborter returns a fresh, untriggered Aborter.
func NewAborter() *Aborter { return &Aborter{} }

// Trigger sets the flag. Safe to call from any goroutine, any number of times.
func (a *Aborter) Trigger() { a.flag.Store(true) }

// Triggered reports whether Trigger has been called.
func (a *Aborter) Triggered() bool { return a.flag.Load() }
