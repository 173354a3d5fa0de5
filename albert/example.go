package albert

import (
	"fmt"
	"strings"
)

// Segment type values, parallel to Example.Tokens.
const (
	TypeCLS    = 0
	TypeFirst  = 1
	TypeSecond = 2
)

// Example is one masked-language-model training record.
//
// Tokens and SegmentTypes have MaxLen+1 entries, TargetIDs and TargetPositions have
// exactly MaxLabel entries. Unused entries are padded with 0.
type Example struct {
	// Tokens holds the corrupted sequence: CLS, first segment, SEP, second segment.
	Tokens []int

	// TargetIDs holds the original ids of the masked positions, in ascending position order.
	TargetIDs []int

	// TargetPositions holds the masked positions, parallel to TargetIDs.
	TargetPositions []int

	// SegmentTypes is 0 for the CLS position and padding, 1 for the first segment
	// (including its closing SEP) and 2 for the second segment.
	SegmentTypes []int

	// OrderLabel is 1 if the segments appear in their original order, 0 if swapped.
	OrderLabel int

	// Length is the number of emitted positions, CLS included.
	Length int

	// NumMasked is the number of non-padding entries in TargetIDs/TargetPositions.
	NumMasked int
}

// String implements fmt.Stringer, for debugging.
func (ex *Example) String() string {
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "Example{order=%d, len=%d, masked=%d\n", ex.OrderLabel, ex.Length, ex.NumMasked)
	_, _ = fmt.Fprintf(&sb, "  tokens=%v\n", ex.Tokens[:ex.Length])
	_, _ = fmt.Fprintf(&sb, "  types=%v\n", ex.SegmentTypes[:ex.Length])
	_, _ = fmt.Fprintf(&sb, "  targets=%v\n", ex.TargetIDs[:ex.NumMasked])
	_, _ = fmt.Fprintf(&sb, "  positions=%v\n}", ex.TargetPositions[:ex.NumMasked])
	return sb.String()
}

// Span is a contiguous run of positions masked together.
type Span struct {
	Start, Length int
}

// End returns the position right after the span.
func (s Span) End() int { return s.Start + s.Length }

// MaskSet is the result of span selection.
type MaskSet struct {
	// Masked is indexed by position.
	Masked []bool

	// Positions lists the masked positions in ascending order, padded with 0 to MaxLabel entries.
	Positions []int

	// Count is the number of masked positions (non-padding entries of Positions).
	Count int

	// Accepted lists the spans in the order they were accepted.
	Accepted []Span
}

// Spans returns the accepted spans in acceptance order.
func (m *MaskSet) Spans() []Span {
	return m.Accepted
}
