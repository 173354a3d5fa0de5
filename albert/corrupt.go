package albert

// Replacement is the decision of the corruption policy for one masked position:
// either keep the original token or replace it with ID.
type Replacement struct {
	Keep bool
	ID   int
}

// KeepOriginal leaves the token unchanged.
var KeepOriginal = Replacement{Keep: true}

// ReplaceWith replaces the token with id.
func ReplaceWith(id int) Replacement { return Replacement{ID: id} }

// Apply returns the token to store at the position, given its original value.
func (r Replacement) Apply(original int) int {
	if r.Keep {
		return original
	}
	return r.ID
}

// Decide implements the corruption policy for the draws p and p2, both uniform in [0, 1).
//
// With p <= cfg.MaskProb the token is replaced by maskID. Otherwise, with p2 <= cfg.RandomProb
// it's replaced by randomID(), else it's kept.
func (cfg CorruptionConfig) Decide(p, p2 float64, maskID int, randomID func() int) Replacement {
	if p > cfg.MaskProb {
		if p2 <= cfg.RandomProb {
			return ReplaceWith(randomID())
		}
		return KeepOriginal
	}
	return ReplaceWith(maskID)
}

// Corrupt draws the corruption decision for one masked position. Random replacements
// are uniform over [1, vocabSize-1], so vocabSize must be at least 2.
func (cfg CorruptionConfig) Corrupt(rng Source, maskID, vocabSize int) Replacement {
	p := rng.Float64()
	p2 := rng.Float64()
	return cfg.Decide(p, p2, maskID, func() int { return 1 + rng.IntN(vocabSize-1) })
}

// corruptPositions records the original ids of the masked positions as targets, and
// overwrites tokens according to the policy. targets is padded with 0 to len(mask.Positions).
func (cfg CorruptionConfig) corruptPositions(rng Source, tokens []int, mask *MaskSet, maskID, vocabSize int) (targets []int) {
	targets = make([]int, len(mask.Positions))
	for ii, pos := range mask.Positions[:mask.Count] {
		original := tokens[pos]
		targets[ii] = original
		tokens[pos] = cfg.Corrupt(rng, maskID, vocabSize).Apply(original)
	}
	return
}
