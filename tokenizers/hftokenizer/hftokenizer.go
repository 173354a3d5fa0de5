// Package hftokenizer implements an api.Tokenizer for HuggingFace's tokenizer.json format, and for plain
// BERT "vocab.txt" WordPiece vocabularies.
//
// It wraps github.com/sugarme/tokenizer, which supports the WordPiece (BERT), BPE (GPT-2, RoBERTa) and
// Unigram models.
package hftokenizer

import (
	"github.com/gomlx/albertdata/hub"
	"github.com/gomlx/albertdata/tokenizers/api"
	"github.com/pkg/errors"
	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/model/wordpiece"
	"github.com/sugarme/tokenizer/normalizer"
	"github.com/sugarme/tokenizer/pretokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	"k8s.io/klog/v2"
)

// Default file names in HuggingFace repositories.
const (
	DefaultFile      = "tokenizer.json"
	DefaultVocabFile = "vocab.txt"
)

// Tokenizer implements api.Tokenizer on top of a sugarme/tokenizer.Tokenizer.
type Tokenizer struct {
	config *api.Config
	tk     *tk.Tokenizer
}

// Compile time assert that Tokenizer implements api.Tokenizer and api.TryEncoder interfaces.
var (
	_ api.Tokenizer  = &Tokenizer{}
	_ api.TryEncoder = &Tokenizer{}
)

// New creates a HuggingFace tokenizer from the tokenizer.json file in repo (or config.File, if set).
func New(config *api.Config, repo *hub.Repo) (*Tokenizer, error) {
	fileName := DefaultFile
	if config != nil && config.File != "" {
		fileName = config.File
	}
	tokenizerFile, err := repo.DownloadFile(fileName)
	if err != nil {
		return nil, errors.WithMessagef(err, "can't download %q from %s", fileName, repo)
	}
	return NewFromFile(config, tokenizerFile)
}

// NewFromFile creates a HuggingFace tokenizer from a local tokenizer.json file path.
func NewFromFile(config *api.Config, filePath string) (*Tokenizer, error) {
	t, err := pretrained.FromFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load tokenizer.json file %q", filePath)
	}
	return &Tokenizer{config: config, tk: t}, nil
}

// NewFromVocabRepo creates a BERT-style WordPiece tokenizer from the vocab.txt file in repo (or config.File, if set).
func NewFromVocabRepo(config *api.Config, repo *hub.Repo) (*Tokenizer, error) {
	fileName := DefaultVocabFile
	if config != nil && config.File != "" {
		fileName = config.File
	}
	vocabFile, err := repo.DownloadFile(fileName)
	if err != nil {
		return nil, errors.WithMessagef(err, "can't download %q from %s", fileName, repo)
	}
	return NewFromVocab(config, vocabFile)
}

// NewFromVocab creates a BERT-style WordPiece tokenizer (lowercasing BERT normalizer and pre-tokenizer)
// from a "vocab.txt" file, with one token per line.
func NewFromVocab(config *api.Config, vocabPath string) (*Tokenizer, error) {
	unk := "[UNK]"
	if config != nil && config.UnkToken != "" {
		unk = config.UnkToken
	}
	wp, err := wordpiece.NewWordPieceFromFile(vocabPath, unk)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load WordPiece vocabulary %q", vocabPath)
	}
	t := tk.NewTokenizer(wp)
	t.WithNormalizer(normalizer.NewBertNormalizer(true, true, true, true))
	t.WithPreTokenizer(pretokenizer.NewBertPreTokenizer())
	return &Tokenizer{config: config, tk: t}, nil
}

// Encode converts text to a sequence of token IDs, without adding special tokens.
//
// Text the underlying tokenizer can't encode is logged and yields no ids. Use TryEncode to get the error.
func (t *Tokenizer) Encode(text string) []int {
	ids, err := t.TryEncode(text)
	if err != nil {
		klog.Warningf("hftokenizer: %v", err)
		return nil
	}
	return ids
}

// TryEncode implements api.TryEncoder.
func (t *Tokenizer) TryEncode(text string) ([]int, error) {
	en, err := t.tk.Encode(tk.NewSingleEncodeInput(tk.NewInputSequence(text)), false)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %d bytes of text", len(text))
	}
	return en.GetIds(), nil
}

// Decode converts a sequence of token IDs back to text, skipping special tokens.
func (t *Tokenizer) Decode(ids []int) string {
	return t.tk.Decode(ids, true)
}

// VocabSize returns the size of the vocabulary, including added tokens.
func (t *Tokenizer) VocabSize() int {
	return t.tk.GetVocabSize(true)
}

// TokenToID converts a token string to its ID.
func (t *Tokenizer) TokenToID(token string) (int, bool) {
	return t.tk.TokenToId(token)
}

// SpecialTokenID returns the ID for a given special token, looked up by its conventional BERT/RoBERTa
// content or by the content set in the config.
func (t *Tokenizer) SpecialTokenID(token api.SpecialToken) (int, error) {
	for _, content := range t.candidates(token) {
		if content == "" {
			continue
		}
		if id, ok := t.tk.TokenToId(content); ok {
			return id, nil
		}
	}
	return 0, errors.Errorf("special token %s not found", token)
}

func (t *Tokenizer) candidates(token api.SpecialToken) []string {
	var c api.Config
	if t.config != nil {
		c = *t.config
	}
	switch token {
	case api.TokUnknown:
		return []string{c.UnkToken, "[UNK]", "<unk>"}
	case api.TokPad:
		return []string{c.PadToken, "[PAD]", "<pad>"}
	case api.TokClassification, api.TokBeginningOfSentence:
		return []string{c.ClsToken, "[CLS]", "<s>"}
	case api.TokEndOfSentence:
		return []string{c.SepToken, "[SEP]", "</s>"}
	case api.TokMask:
		return []string{c.MaskToken, "[MASK]", "<mask>"}
	}
	return nil
}
