package sequence

import "sync/atomic"

// Sequencer generates strictly monotonic sequence IDs starting at start+1.
// Each owner keeps its own instance; there is no package-level counter.
type Sequencer struct {
	last atomic.Uint64
}

// New creates a sequencer whose first Next returns start+1.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(start)
	return s
}

// Next returns the next sequence ID.
func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current returns the last issued sequence, or the start value if none.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}
