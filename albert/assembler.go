// Package albert builds masked-language-model training examples for ALBERT-style
// pretraining.
//
// Given the token ids of one line of text, an Assembler splits them into two segments,
// possibly swapping their order (the sentence-order label), frames them with CLS/SEP
// markers, masks a few contiguous spans and records the masked tokens as targets.
//
// Example:
//
//	asm, err := albert.NewAssembler(albert.DefaultConfig(), albert.NewRand(seed))
//	if err != nil {
//		panic(err)
//	}
//	ex, err := asm.Assemble(tokenizer.Encode(line), tokenizer.VocabSize())
//	if albert.IsSkippable(err) {
//		// Log and move on to the next line.
//	}
//
// An Assembler is not safe for concurrent use; create one per worker, each with its own Source.
package albert

import (
	"github.com/pkg/errors"
)

// SpecialIDs are the marker ids reserved right after the vocabulary.
type SpecialIDs struct {
	CLS, Mask, SEP int
}

// SpecialIDsFor returns the marker ids for a vocabulary of the given size.
func SpecialIDsFor(vocabSize int) SpecialIDs {
	return SpecialIDs{CLS: vocabSize, Mask: vocabSize + 1, SEP: vocabSize + 2}
}

// Assembler builds Example records from token ids.
type Assembler struct {
	config  Config
	rng     Source
	sampler SpanSampler
}

// NewAssembler validates config and returns an Assembler drawing randomness from rng.
func NewAssembler(config Config, rng Source) (*Assembler, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid albert.Config")
	}
	if rng == nil {
		return nil, errors.New("albert.NewAssembler requires a non-nil Source")
	}
	return &Assembler{
		config: config,
		rng:    rng,
		sampler: SpanSampler{
			MaxLabel: config.MaxLabel,
			Stride:   config.CandidateStride,
			Weights:  config.SpanWeights,
		},
	}, nil
}

// Config returns the configuration of the Assembler.
func (a *Assembler) Config() Config {
	return a.config
}

// Assemble builds one Example from the ids of an encoded line.
//
// The markers CLS, MASK and SEP take the ids vocabSize, vocabSize+1 and vocabSize+2.
// A random offset of up to MaxOffset tokens is skipped, and at most MaxLen-1 tokens are
// used after it. The usable range is split at a random midpoint within its middle third;
// the token at the midpoint is dropped to make room for the separator.
//
// It returns an error wrapping ErrTooShort if a third of the usable range is shorter
// than MinThirdLen, or ErrMaskingFailed if no span could be masked.
func (a *Assembler) Assemble(ids []int, vocabSize int) (*Example, error) {
	if vocabSize < 2 {
		return nil, errors.Errorf("vocabSize must be at least 2, got %d", vocabSize)
	}
	cfg := a.config
	special := SpecialIDsFor(vocabSize)
	ex := &Example{
		Tokens:       make([]int, cfg.MaxLen+1),
		SegmentTypes: make([]int, cfg.MaxLen+1),
	}
	ex.Tokens[0] = special.CLS
	if a.rng.Float64() <= 0.5 {
		ex.OrderLabel = 1
	}

	total := len(ids)
	off := a.rng.IntN(cfg.MaxOffset + 1)
	end := min(total, off+cfg.MaxLen-1)
	usable := end - off
	thirdLen := usable / 3
	if usable <= 0 || thirdLen < cfg.MinThirdLen {
		return nil, errors.Wrapf(ErrTooShort, "%d usable tokens (offset %d of %d)", max(usable, 0), off, total)
	}
	mid := off + thirdLen + a.rng.IntN(thirdLen)

	segA, segB := ids[off:mid], ids[mid+1:end]
	first, second := segA, segB
	if ex.OrderLabel == 0 {
		first, second = segB, segA
	}
	k := 1
	for _, id := range first {
		ex.Tokens[k] = id
		ex.SegmentTypes[k] = TypeFirst
		k++
	}
	ex.Tokens[k] = special.SEP
	ex.SegmentTypes[k] = TypeFirst
	k++
	for _, id := range second {
		ex.Tokens[k] = id
		ex.SegmentTypes[k] = TypeSecond
		k++
	}
	ex.Length = k

	mask, err := a.sampler.SelectSpans(a.rng, ex.Tokens, k, special.SEP)
	if err != nil {
		return nil, err
	}
	ex.TargetIDs = cfg.Corruption.corruptPositions(a.rng, ex.Tokens, mask, special.Mask, vocabSize)
	ex.TargetPositions = mask.Positions
	ex.NumMasked = mask.Count
	return ex, nil
}
