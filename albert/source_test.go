package albert

import (
	"fmt"
)

// scriptedSource replays pre-recorded draws. Shuffle is the identity. Once a queue is
// exhausted it returns 0, which means: no offset/jitter, span length 1, and MASK replacement.
type scriptedSource struct {
	ints   []int
	floats []float64
	cats   []int
}

var _ Source = &scriptedSource{}

func (s *scriptedSource) IntN(n int) int {
	if len(s.ints) == 0 {
		return 0
	}
	v := s.ints[0]
	s.ints = s.ints[1:]
	if v < 0 || v >= n {
		panic(fmt.Sprintf("scripted IntN(%d) value %d out of range", n, v))
	}
	return v
}

func (s *scriptedSource) Float64() float64 {
	if len(s.floats) == 0 {
		return 0
	}
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

func (s *scriptedSource) Shuffle(int, func(i, j int)) {}

func (s *scriptedSource) Categorical(weights []float64) int {
	if len(s.cats) == 0 {
		return 0
	}
	v := s.cats[0]
	s.cats = s.cats[1:]
	if v < 0 || v >= len(weights) {
		panic(fmt.Sprintf("scripted Categorical value %d out of range for %d weights", v, len(weights)))
	}
	return v
}

// iota1 returns the ids 1..n.
func iota1(n int) []int {
	ids := make([]int, n)
	for ii := range ids {
		ids[ii] = ii + 1
	}
	return ids
}
