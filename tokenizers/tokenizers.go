// Package tokenizers creates the subword encoder configured for a run.
//
// The implementations live in the sub-packages: sentencepiece (ALBERT's own tokenizer) and hftokenizer
// (HuggingFace tokenizer.json, or a BERT WordPiece vocab.txt). The interface is defined in tokenizers/api.
package tokenizers

import (
	"github.com/gomlx/albertdata/hub"
	"github.com/gomlx/albertdata/tokenizers/api"
	"github.com/gomlx/albertdata/tokenizers/hftokenizer"
	"github.com/gomlx/albertdata/tokenizers/sentencepiece"
	"github.com/pkg/errors"
)

// Tokenizer is an alias to api.Tokenizer.
type Tokenizer = api.Tokenizer

// Config is an alias to api.Config.
type Config = api.Config

// New creates the tokenizer described by config: from config.ModelPath if set, otherwise downloaded from repo.
func New(config *api.Config, repo *hub.Repo) (api.Tokenizer, error) {
	if config == nil {
		return nil, errors.New("tokenizers.New requires a config")
	}
	if config.ModelPath == "" && repo == nil {
		return nil, errors.New("tokenizer config has neither a model path nor a repo")
	}
	switch config.Type {
	case "sentencepiece", "":
		if config.ModelPath != "" {
			return asTokenizer(sentencepiece.NewFromFile(config.ModelPath))
		}
		return asTokenizer(sentencepiece.New(config, repo))
	case "hf":
		if config.ModelPath != "" {
			return asTokenizer(hftokenizer.NewFromFile(config, config.ModelPath))
		}
		return asTokenizer(hftokenizer.New(config, repo))
	case "wordpiece":
		if config.ModelPath != "" {
			return asTokenizer(hftokenizer.NewFromVocab(config, config.ModelPath))
		}
		return asTokenizer(hftokenizer.NewFromVocabRepo(config, repo))
	}
	return nil, errors.Errorf("unknown tokenizer type %q", config.Type)
}

// asTokenizer converts a concrete tokenizer to the interface, without turning a nil pointer into a non-nil
// interface.
func asTokenizer[T api.Tokenizer](tok T, err error) (api.Tokenizer, error) {
	if err != nil {
		return nil, err
	}
	return tok, nil
}
