package tugofwar

import "slices"

// Sums returns a copy of the row accumulators.
func (s *Sketch) Sums() []int64 {
	return slices.Clone(s.sums)
}
