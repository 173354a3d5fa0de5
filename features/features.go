// Package features lays out batches of albert.Example records as the int64 tensors consumed by the
// pretraining model.
//
// Each batch has the features:
//
//   - "tokens": [N, MaxLen+1], the corrupted token ids.
//   - "target_positions": [N, MaxLabel], the masked positions, padded with 0.
//   - "segment_types": [N, MaxLen+1], 0 (CLS and padding), 1 (first segment) or 2 (second segment).
//   - "order_label": [N], 1 if the segments are in their original order.
//   - "target_ids": [N, MaxLabel], the original ids at the masked positions, padded with 0. This is the label.
package features

import (
	"github.com/gomlx/albertdata/albert"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// Feature names, in the order they are written.
const (
	Tokens          = "tokens"
	TargetPositions = "target_positions"
	SegmentTypes    = "segment_types"
	OrderLabel      = "order_label"
	TargetIDs       = "target_ids"
)

// Names lists the feature names in order.
var Names = []string{Tokens, TargetPositions, SegmentTypes, OrderLabel, TargetIDs}

// Batch is a set of examples sharing the same MaxLen and MaxLabel.
type Batch struct {
	SeqLen, NumLabels int
	Examples          []*albert.Example
}

// NewBatch creates an empty batch for examples built with cfg.
func NewBatch(cfg albert.Config) *Batch {
	return &Batch{SeqLen: cfg.MaxLen + 1, NumLabels: cfg.MaxLabel}
}

// Add appends ex to the batch, checking its dimensions.
func (b *Batch) Add(ex *albert.Example) error {
	if len(ex.Tokens) != b.SeqLen || len(ex.SegmentTypes) != b.SeqLen {
		return errors.Errorf("example has %d tokens and %d segment types, batch expects %d",
			len(ex.Tokens), len(ex.SegmentTypes), b.SeqLen)
	}
	if len(ex.TargetIDs) != b.NumLabels || len(ex.TargetPositions) != b.NumLabels {
		return errors.Errorf("example has %d target ids and %d target positions, batch expects %d",
			len(ex.TargetIDs), len(ex.TargetPositions), b.NumLabels)
	}
	b.Examples = append(b.Examples, ex)
	return nil
}

// Len returns the number of examples in the batch.
func (b *Batch) Len() int { return len(b.Examples) }

// Reset empties the batch, keeping its dimensions.
func (b *Batch) Reset() { b.Examples = nil }

// Shape returns the dimensions of the named feature.
func (b *Batch) Shape(name string) ([]int, error) {
	n := b.Len()
	switch name {
	case Tokens, SegmentTypes:
		return []int{n, b.SeqLen}, nil
	case TargetPositions, TargetIDs:
		return []int{n, b.NumLabels}, nil
	case OrderLabel:
		return []int{n}, nil
	}
	return nil, errors.Errorf("unknown feature %q", name)
}

// Flat returns the named feature as a flat row-major int64 slice.
func (b *Batch) Flat(name string) ([]int64, error) {
	dims, err := b.Shape(name)
	if err != nil {
		return nil, err
	}
	size := 1
	for _, dim := range dims {
		size *= dim
	}
	flat := make([]int64, 0, size)
	for _, ex := range b.Examples {
		switch name {
		case Tokens:
			flat = appendInt64(flat, ex.Tokens)
		case SegmentTypes:
			flat = appendInt64(flat, ex.SegmentTypes)
		case TargetPositions:
			flat = appendInt64(flat, ex.TargetPositions)
		case TargetIDs:
			flat = appendInt64(flat, ex.TargetIDs)
		case OrderLabel:
			flat = append(flat, int64(ex.OrderLabel))
		}
	}
	return flat, nil
}

// Tensors materializes every feature as a GoMLX tensor, keyed by feature name.
func (b *Batch) Tensors() (map[string]*tensors.Tensor, error) {
	if b.Len() == 0 {
		return nil, errors.New("can't create tensors from an empty batch")
	}
	result := make(map[string]*tensors.Tensor, len(Names))
	for _, name := range Names {
		dims, err := b.Shape(name)
		if err != nil {
			return nil, err
		}
		flat, err := b.Flat(name)
		if err != nil {
			return nil, err
		}
		result[name] = tensors.FromFlatDataAndDimensions(flat, dims...)
	}
	return result, nil
}

func appendInt64(dst []int64, values []int) []int64 {
	for _, v := range values {
		dst = append(dst, int64(v))
	}
	return dst
}
