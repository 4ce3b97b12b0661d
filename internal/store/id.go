package store

import (
	"sync"
	"time"
)

// IDLayout is the time layout of record ids (YYYYMMDD_HHMMSS).
const IDLayout = "20060102_150405"

// IDGenerator proposes ids for new records. Allocate appends a collision
// suffix when the proposed id is already taken.
type IDGenerator interface {
	NewID() string
}

// TimestampIDs proposes the current local time formatted with IDLayout.
type TimestampIDs struct {
	// Now returns the wall clock; nil means time.Now.
	Now func() time.Time
}

// NewID implements IDGenerator.
func (g TimestampIDs) NewID() string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	return now().Format(IDLayout)
}

// FixedIDs proposes a fixed sequence of ids, repeating the last one once
// the sequence is exhausted. For tests.
type FixedIDs struct {
	mu   sync.Mutex
	ids  []string
	next int
}

// NewFixedIDs returns a generator yielding ids in order.
func NewFixedIDs(ids ...string) *FixedIDs {
	if len(ids) == 0 {
		ids = []string{"00000000_000000"}
	}
	return &FixedIDs{ids: ids}
}

// NewID implements IDGenerator.
func (g *FixedIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.ids[g.next]
	if g.next < len(g.ids)-1 {
		g.next++
	}
	return id
}
