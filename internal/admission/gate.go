// Package admission caps how many generation calls may run at once.
//
// The gate sheds load instead of queueing: when every slot is taken, Acquire
// fails immediately and the caller answers with a busy message.
package admission

import (
	"errors"
	"sync"
)

// DefaultCapacity is used when a gate is created with a non-positive capacity.
const DefaultCapacity = 5

// ErrRejected is returned by Acquire when the gate is at capacity.
var ErrRejected = errors.New("admission rejected: capacity exceeded")

// Gate is a bounded usage counter guarded by a single mutex.
// It is safe for concurrent use.
type Gate struct {
	capacity int

	mu       sync.Mutex
	inUse    int
	acquired int64
	released int64
	rejected int64
}

// Stats is a point-in-time view of a gate's counters.
type Stats struct {
	Capacity int
	InUse    int
	Acquired int64
	Released int64
	Rejected int64
}

// NewGate creates a gate with the given capacity.
func NewGate(capacity int) *Gate {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Gate{capacity: capacity}
}

// Acquire takes one slot without blocking. It returns ErrRejected when the
// gate is full.
func (g *Gate) Acquire() (*Ticket, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inUse >= g.capacity {
		g.rejected++
		return nil, ErrRejected
	}
	g.inUse++
	g.acquired++
	return &Ticket{gate: g}, nil
}

func (g *Gate) release() {
	g.mu.Lock()
	g.inUse--
	g.released++
	g.mu.Unlock()
}

// Capacity returns the maximum number of concurrent tickets.
func (g *Gate) Capacity() int {
	return g.capacity
}

// InUse returns the number of tickets currently held.
func (g *Gate) InUse() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inUse
}

// Stats returns the gate's counters.
func (g *Gate) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Stats{
		Capacity: g.capacity,
		InUse:    g.inUse,
		Acquired: g.acquired,
		Released: g.released,
		Rejected: g.rejected,
	}
}

// Ticket is one unit of gate capacity. Release returns it; calls after the
// first are no-ops, so a deferred Release can back up an explicit one.
type Ticket struct {
	gate *Gate
	once sync.Once
}

// Release returns the ticket's slot to the gate.
func (t *Ticket) Release() {
	if t == nil {
		return
	}
	t.once.Do(t.gate.release)
}
