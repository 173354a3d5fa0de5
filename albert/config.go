package albert

import (
	"github.com/pkg/errors"
)

// Default values used by DefaultConfig.
const (
	DefaultMaxLen          = 199
	DefaultMaxLabel        = 28
	DefaultMaxOffset       = 3
	DefaultMinThirdLen     = 5
	DefaultCandidateStride = 4
	DefaultMaxSpanLen      = 3
	DefaultMaskProb        = 0.8
	DefaultRandomProb      = 0.5
)

// DefaultSpanWeights are the relative weights of span lengths 1, 2 and 3.
var DefaultSpanWeights = []float64{6, 3, 2}

// Config holds the tuning knobs of an Assembler.
//
// All fields are plain values so that several configurations can be used side by side.
type Config struct {
	// MaxLen is the number of content slots; emitted sequences have MaxLen+1 positions.
	MaxLen int

	// MaxLabel is the mask budget: at most MaxLabel positions are masked, and the
	// target arrays are padded to exactly MaxLabel entries.
	MaxLabel int

	// MaxOffset is the largest random offset (inclusive) skipped at the start of the input.
	MaxOffset int

	// MinThirdLen is the minimum length of a third of the usable range, below which
	// the input is considered too short.
	MinThirdLen int

	// CandidateStride is the distance between candidate span starts.
	CandidateStride int

	// SpanWeights are the relative weights of span lengths 1..len(SpanWeights).
	SpanWeights []float64

	// Corruption configures how masked positions are replaced.
	Corruption CorruptionConfig
}

// CorruptionConfig holds the probabilities of the corruption policy.
type CorruptionConfig struct {
	// MaskProb is the probability of replacing a masked position with the MASK id.
	MaskProb float64

	// RandomProb is the probability, among the positions not replaced by MASK, of
	// replacing with a random vocabulary id. The rest keep their original id.
	RandomProb float64
}

// DefaultConfig returns the configuration used for ALBERT pretraining.
func DefaultConfig() Config {
	return Config{
		MaxLen:          DefaultMaxLen,
		MaxLabel:        DefaultMaxLabel,
		MaxOffset:       DefaultMaxOffset,
		MinThirdLen:     DefaultMinThirdLen,
		CandidateStride: DefaultCandidateStride,
		SpanWeights:     append([]float64(nil), DefaultSpanWeights...),
		Corruption: CorruptionConfig{
			MaskProb:   DefaultMaskProb,
			RandomProb: DefaultRandomProb,
		},
	}
}

// Validate checks that the configuration can produce examples.
func (c Config) Validate() error {
	if c.MaxLen < 3 {
		return errors.Errorf("MaxLen must be >= 3, got %d", c.MaxLen)
	}
	if c.MaxLabel <= 0 {
		return errors.Errorf("MaxLabel must be > 0, got %d", c.MaxLabel)
	}
	if c.MaxLabel > c.MaxLen {
		return errors.Errorf("MaxLabel (%d) can't be larger than MaxLen (%d)", c.MaxLabel, c.MaxLen)
	}
	if c.MaxOffset < 0 {
		return errors.Errorf("MaxOffset must be >= 0, got %d", c.MaxOffset)
	}
	if c.MinThirdLen < 1 {
		return errors.Errorf("MinThirdLen must be >= 1, got %d", c.MinThirdLen)
	}
	if c.CandidateStride < 1 {
		return errors.Errorf("CandidateStride must be >= 1, got %d", c.CandidateStride)
	}
	if len(c.SpanWeights) == 0 {
		return errors.New("SpanWeights can't be empty")
	}
	if len(c.SpanWeights) > jitterWindow {
		return errors.Errorf("at most %d span lengths are supported, got %d", jitterWindow, len(c.SpanWeights))
	}
	var sum float64
	for i, w := range c.SpanWeights {
		if w < 0 {
			return errors.Errorf("SpanWeights[%d] is negative (%g)", i, w)
		}
		sum += w
	}
	if sum <= 0 {
		return errors.New("SpanWeights must have a positive sum")
	}
	if c.Corruption.MaskProb < 0 || c.Corruption.MaskProb > 1 {
		return errors.Errorf("Corruption.MaskProb must be in [0, 1], got %g", c.Corruption.MaskProb)
	}
	if c.Corruption.RandomProb < 0 || c.Corruption.RandomProb > 1 {
		return errors.Errorf("Corruption.RandomProb must be in [0, 1], got %g", c.Corruption.RandomProb)
	}
	return nil
}
