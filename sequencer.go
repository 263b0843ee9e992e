package dex

// Sequencer issues strictly increasing order identifiers for one engine
// instance. Ids double as the time component of price-time priority, so a
// lower id always means an earlier order.
//
// It is an explicit object rather than package state so that the engine can
// snapshot and restore it together with the rest of its records.
type Sequencer struct {
	last uint64
}

// NewSequencer starts the sequence at zero; the first Next call returns 1.
func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// Next returns the next order id.
func (s *Sequencer) Next() uint64 {
	s.last++
	return s.last
}

// Last returns the most recently issued id.
func (s *Sequencer) Last() uint64 {
	return s.last
}

// restore rewinds or advances the counter to a snapshotted position.
func (s *Sequencer) restore(last uint64) {
	s.last = last
}
