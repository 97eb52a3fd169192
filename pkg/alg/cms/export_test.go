package cms

import "slices"

// Counters returns a copy of the flattened counter matrix.
func (s *Sketch) Counters() []uint64 {
	return slices.Clone(s.counters)
}
