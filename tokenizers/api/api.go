// Package api defines the Tokenizer API, the boundary between text and the example builder.
// It's a separate package to break the cyclic dependency, and allow the users to import `tokenizers` and get the
// default implementations.
package api

import "fmt"

// Tokenizer converts text to "tokens" (integer ids) and back.
//
// Ids are in the range [0, VocabSize()). The example builder reserves the ids right after the vocabulary
// for its own markers, so VocabSize must account for every id Encode can return.
type Tokenizer interface {
	// Encode converts text to ids. Text that can't be encoded yields no ids.
	Encode(text string) []int
	Decode([]int) string

	// VocabSize returns the number of distinct ids.
	VocabSize() int

	// SpecialTokenID returns ID for given special token if registered, or an error if not.
	SpecialTokenID(token SpecialToken) (int, error)
}

// TryEncoder is implemented by tokenizers whose encoding can fail. Callers that want to tell a failure apart
// from empty text use TryEncode instead of Tokenizer.Encode.
type TryEncoder interface {
	TryEncode(text string) ([]int, error)
}

// Config selects and configures a Tokenizer.
type Config struct {
	// Type is the tokenizer implementation: "sentencepiece", "hf" (tokenizer.json) or "wordpiece" (BERT vocab.txt).
	Type string

	// ModelPath is a local model file: a SentencePiece ".model", a HuggingFace "tokenizer.json" or a "vocab.txt".
	ModelPath string

	// Repo is a HuggingFace repository id to download the model file from, used if ModelPath is empty.
	Repo string

	// File is the file within Repo. Defaults to "tokenizer.model" for SentencePiece, "tokenizer.json" for hf and
	// "vocab.txt" for wordpiece.
	File string

	// UnkToken, PadToken, ClsToken, SepToken, MaskToken are the special token contents, used by tokenizers
	// that look them up by name.
	UnkToken, PadToken, ClsToken, SepToken, MaskToken string
}

// SpecialToken is an enum of commonly used special tokens.
type SpecialToken int

const (
	TokBeginningOfSentence SpecialToken = iota
	TokEndOfSentence
	TokUnknown
	TokPad
	TokMask
	TokClassification
	TokSpecialTokensCount
)

var specialTokenNames = [...]string{
	"beginning_of_sentence",
	"end_of_sentence",
	"unknown",
	"pad",
	"mask",
	"classification",
}

// String implements fmt.Stringer.
func (t SpecialToken) String() string {
	if t < 0 || int(t) >= len(specialTokenNames) {
		return fmt.Sprintf("SpecialToken(%d)", int(t))
	}
	return specialTokenNames[t]
}
