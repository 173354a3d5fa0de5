// Package sentencepiece implements an api.Tokenizer based on the SentencePiece tokenizer.
package sentencepiece

import (
	esentencepiece "github.com/eliben/go-sentencepiece"
	"github.com/gomlx/albertdata/hub"
	"github.com/gomlx/albertdata/tokenizers/api"
	"github.com/pkg/errors"
)

// DefaultFile is the SentencePiece model file name in HuggingFace repositories.
const DefaultFile = "tokenizer.model"

// New creates a SentencePiece tokenizer from the model file in repo: config.File, or "tokenizer.model"
// if not set. The file must be a SentencePiece Model proto.
func New(config *api.Config, repo *hub.Repo) (*Tokenizer, error) {
	fileName := DefaultFile
	if config != nil && config.File != "" {
		fileName = config.File
	}
	modelPath, err := repo.DownloadFile(fileName)
	if err != nil {
		return nil, errors.WithMessagef(err, "can't download %q from %s", fileName, repo)
	}
	return NewFromFile(modelPath)
}

// NewFromFile creates a SentencePiece tokenizer from a local model file (the "spm_model_path").
func NewFromFile(modelPath string) (*Tokenizer, error) {
	proc, err := esentencepiece.NewProcessorFromPath(modelPath)
	if err != nil {
		return nil, errors.Wrapf(err, "can't create sentencepiece tokenizer from %q", modelPath)
	}
	info := proc.ModelInfo()
	if info.VocabularySize < 2 {
		return nil, errors.Errorf("sentencepiece model %q has a vocabulary of %d pieces", modelPath, info.VocabularySize)
	}
	return &Tokenizer{
		Processor: proc,
		Info:      info,
	}, nil
}

// Tokenizer implements api.Tokenizer based on the SentencePiece tokenizer by Google.
type Tokenizer struct {
	*esentencepiece.Processor
	Info *esentencepiece.ModelInfo
}

// Compile time assert that sentencepiece.Tokenizer implements api.Tokenizer interface.
var _ api.Tokenizer = &Tokenizer{}

// Encode returns the text encoded into a sequence of ids.
func (p *Tokenizer) Encode(text string) []int {
	tokens := p.Processor.Encode(text)
	ids := make([]int, len(tokens))
	for ii, t := range tokens {
		ids[ii] = t.ID
	}
	return ids
}

// Decode returns the text from a sequence of ids.
func (p *Tokenizer) Decode(ids []int) string {
	return p.Processor.Decode(ids)
}

// VocabSize returns the number of pieces in the model.
func (p *Tokenizer) VocabSize() int {
	return p.Info.VocabularySize
}

// SpecialTokenID returns the token for the given symbol, or an error if not known.
func (p *Tokenizer) SpecialTokenID(token api.SpecialToken) (int, error) {
	switch token {
	case api.TokUnknown:
		return p.Info.UnknownID, nil
	case api.TokPad:
		return p.Info.PadID, nil
	case api.TokBeginningOfSentence:
		return p.Info.BeginningOfSentenceID, nil
	case api.TokEndOfSentence:
		return p.Info.EndOfSentenceID, nil
	default:
		return 0, errors.Errorf("unknown special token: %s (%d)", token, int(token))
	}
}
