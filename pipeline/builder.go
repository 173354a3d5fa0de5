package pipeline

import (
	"github.com/gomlx/albertdata/albert"
	"github.com/gomlx/albertdata/tokenizers/api"
	"github.com/gomlx/albertdata/tokenizers/normalize"
	"github.com/pkg/errors"
)

// ErrEncodeFailed is returned by Builder.Build when the tokenizer fails to encode a line.
// Like albert.ErrTooShort, the line should be skipped.
var ErrEncodeFailed = errors.New("tokenizer failed")

// IsSkippable reports whether err is a per-line failure, after which the run carries on with the next line.
func IsSkippable(err error) bool {
	return albert.IsSkippable(err) || errors.Is(err, ErrEncodeFailed)
}

// Builder turns one line of raw text into an example: normalize, encode, assemble.
//
// A Builder owns its random state and is not safe for concurrent use. The tokenizer may be shared.
type Builder struct {
	normalizer normalize.Normalizer
	tokenizer  api.Tokenizer
	assembler  *albert.Assembler
}

// NewBuilder creates a Builder drawing randomness from rng.
func NewBuilder(tok api.Tokenizer, normalizer normalize.Normalizer, cfg albert.Config, rng albert.Source) (*Builder, error) {
	if tok == nil {
		return nil, errors.New("pipeline.NewBuilder requires a tokenizer")
	}
	asm, err := albert.NewAssembler(cfg, rng)
	if err != nil {
		return nil, err
	}
	return &Builder{normalizer: normalizer, tokenizer: tok, assembler: asm}, nil
}

// Build returns the example for text. Errors matching IsSkippable mean the line should be skipped.
func (b *Builder) Build(text string) (*albert.Example, error) {
	ids, err := b.encode(b.normalizer.Normalize(text))
	if err != nil {
		return nil, err
	}
	return b.assembler.Assemble(ids, b.tokenizer.VocabSize())
}

// encode uses TryEncode when the tokenizer offers it, so that failures aren't mistaken for short text.
func (b *Builder) encode(text string) ([]int, error) {
	tryEncoder, ok := b.tokenizer.(api.TryEncoder)
	if !ok {
		return b.tokenizer.Encode(text), nil
	}
	ids, err := tryEncoder.TryEncode(text)
	if err != nil {
		return nil, errors.Wrapf(ErrEncodeFailed, "%v", err)
	}
	return ids, nil
}
