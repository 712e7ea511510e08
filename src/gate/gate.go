// Package gate provides the single-slot flag that keeps at most one
// capture cycle in flight.
package gate

import "sync/atomic"

// Gate is a compare-and-swap flag. A rejected TryAcquire is final for that
// caller; nothing is queued.
type Gate struct {
	busy atomic.Bool
}

// TryAcquire sets the flag if it is clear and reports whether it did.
func (g *Gate) TryAcquire() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Release clears the flag.
func (g *Gate) Release() {
	g.busy.Store(false)
}

// Busy reports whether a cycle currently holds the gate.
func (g *Gate) Busy() bool {
	return g.busy.Load()
}
