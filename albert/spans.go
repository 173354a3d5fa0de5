package albert

import (
	"github.com/pkg/errors"
)

// jitterWindow bounds the random shift of a span start: a span of length n starts
// at its candidate position plus a uniform value in [0, jitterWindow-n].
const jitterWindow = 5

// errMaskBudgetExceeded flags a logic error: more positions masked than the budget allows.
var errMaskBudgetExceeded = errors.New("mask budget exceeded")

// SpanSampler selects the spans to mask in a sequence.
type SpanSampler struct {
	// MaxLabel is the mask budget.
	MaxLabel int

	// Stride is the distance between candidate span starts.
	Stride int

	// Weights are the relative weights of span lengths 1..len(Weights).
	Weights []float64
}

// SelectSpans picks disjoint spans over tokens[:length], never masking position 0 or
// any position holding sepID.
//
// Candidate starts are every Stride-th position, visited in random order. For each
// one a span length is drawn from Weights, and its start is shifted by a small random
// jitter. Spans that would exceed the budget, start at 0, run out of bounds, overlap an
// already masked position or cover a separator are skipped, not retried.
//
// It returns ErrMaskingFailed if no span could be accepted.
func (s SpanSampler) SelectSpans(rng Source, tokens []int, length, sepID int) (*MaskSet, error) {
	if length > len(tokens) {
		return nil, errors.Errorf("length %d larger than the sequence (%d tokens)", length, len(tokens))
	}
	candidates := make([]int, 0, length/s.Stride+1)
	for ii := 0; ii < length; ii += s.Stride {
		candidates = append(candidates, ii)
	}
	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	masked := make([]bool, length)
	numMasked := 0
	var accepted []Span
	for _, candidate := range candidates {
		if numMasked >= s.MaxLabel {
			break
		}
		drawLen := rng.Categorical(s.Weights) + 1
		if numMasked+drawLen > s.MaxLabel {
			continue
		}
		start := candidate + rng.IntN(jitterWindow-drawLen+1)
		if start == 0 {
			// Position 0 is CLS.
			continue
		}
		if !s.isFree(tokens, masked, start, drawLen, sepID) {
			continue
		}
		for ii := start; ii < start+drawLen; ii++ {
			masked[ii] = true
		}
		numMasked += drawLen
		accepted = append(accepted, Span{Start: start, Length: drawLen})
	}

	positions := make([]int, 0, s.MaxLabel)
	for pos, isMasked := range masked {
		if isMasked {
			positions = append(positions, pos)
		}
	}
	if len(positions) > s.MaxLabel {
		panic(errors.Wrapf(errMaskBudgetExceeded, "%d positions masked, budget is %d", len(positions), s.MaxLabel))
	}
	if len(positions) == 0 {
		return nil, errors.Wrapf(ErrMaskingFailed, "no span accepted in a sequence of length %d", length)
	}
	count := len(positions)
	for len(positions) < s.MaxLabel {
		positions = append(positions, 0)
	}
	return &MaskSet{
		Masked:    masked,
		Positions: positions,
		Count:     count,
		Accepted:  accepted,
	}, nil
}

// isFree reports whether the span [start, start+n) fits in the sequence, isn't masked
// yet and doesn't cover a separator.
func (s SpanSampler) isFree(tokens []int, masked []bool, start, n, sepID int) bool {
	for ii := start; ii < start+n; ii++ {
		if ii >= len(masked) || masked[ii] || tokens[ii] == sepID {
			return false
		}
	}
	return true
}
