package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/albertdata/albert"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	v := New()
	v.Set("tokenizer.model_path", "/models/spiece.model")
	cfg, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, "sentencepiece", cfg.Tokenizer.Type)
	assert.Equal(t, FormatParquet, cfg.Output.Format)
	assert.Equal(t, albert.DefaultConfig(), cfg.AlbertConfig())
	assert.Equal(t, "/models/spiece.model", cfg.TokenizerConfig().ModelPath)
	assert.GreaterOrEqual(t, cfg.Pipeline.Workers, 1)
	assert.Nil(t, cfg.Repo())
}

func TestLoad_File(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
tokenizer:
  type: hf
  repo: albert/albert-base-v2
example:
  max_len: 127
  max_label: 20
  span_weights: [1, 1]
pipeline:
  workers: 3
  seed: 42
output:
  format: safetensors
normalize:
  nfkc: true
`), 0o644))

	cfg, err := Load(New(), configPath)
	require.NoError(t, err)
	assert.Equal(t, "hf", cfg.Tokenizer.Type)
	assert.Equal(t, "albert/albert-base-v2", cfg.Tokenizer.Repo)
	require.NotNil(t, cfg.Repo())
	assert.Equal(t, "main", cfg.Repo().Revision)
	assert.Equal(t, 3, cfg.Pipeline.Workers)
	assert.Equal(t, uint64(42), cfg.Pipeline.Seed)
	assert.Equal(t, FormatSafetensors, cfg.Output.Format)
	assert.True(t, cfg.Normalizer().NFKC)

	ac := cfg.AlbertConfig()
	assert.Equal(t, 127, ac.MaxLen)
	assert.Equal(t, 20, ac.MaxLabel)
	assert.Equal(t, []float64{1, 1}, ac.SpanWeights)
	assert.Equal(t, albert.DefaultMaxOffset, ac.MaxOffset)

	opts := cfg.PipelineOptions()
	assert.Equal(t, 3, opts.Workers)
	assert.Equal(t, uint64(42), opts.Seed)
	assert.Equal(t, ac, opts.Albert)
	assert.True(t, opts.Normalizer.NFKC)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("ALBERTDATA_TOKENIZER_MODEL_PATH", "/env/spiece.model")
	t.Setenv("ALBERTDATA_EXAMPLE_MAX_LABEL", "10")
	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "/env/spiece.model", cfg.Tokenizer.ModelPath)
	assert.Equal(t, 10, cfg.AlbertConfig().MaxLabel)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, key string
		value     any
	}{
		{"no model", "tokenizer.type", "sentencepiece"},
		{"bad tokenizer", "tokenizer.type", "bpe"},
		{"bad format", "output.format", "csv"},
		{"no workers", "pipeline.workers", 0},
		{"bad max_label", "example.max_label", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			if tt.name != "no model" {
				v.Set("tokenizer.model_path", "/models/spiece.model")
			}
			v.Set(tt.key, tt.value)
			_, err := Load(v, "")
			require.Error(t, err)
		})
	}

	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoad_WordPiece(t *testing.T) {
	v := New()
	v.Set("tokenizer.type", "wordpiece")
	v.Set("tokenizer.model_path", "/models/vocab.txt")
	cfg, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, "wordpiece", cfg.TokenizerConfig().Type)
}
