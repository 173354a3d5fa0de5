package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/albertdata/albert"
	"github.com/gomlx/albertdata/corpus"
	"github.com/gomlx/albertdata/features"
	"github.com/gomlx/albertdata/pipeline"
	"github.com/gomlx/albertdata/tokenizers/api"
	"github.com/gomlx/albertdata/tokenizers/normalize"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewCLI()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "albertgen version dev\n", out)
}

func TestGenerate_InvalidConfig(t *testing.T) {
	_, err := execute(t, "generate", "--model", "/models/spiece.model", "--format", "csv")
	require.ErrorContains(t, err, "output.format")

	_, err = execute(t, "generate", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestInputLines(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.txt")
	second := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(first, []byte("one\n\ntwo\n"), 0o644))
	require.NoError(t, os.WriteFile(second, []byte("three"), 0o644))

	var texts []string
	for line, err := range inputLines([]string{first, second}) {
		require.NoError(t, err)
		texts = append(texts, line.Text)
	}
	assert.Equal(t, []string{"one", "two", "three"}, texts)

	var gotErr error
	for _, err := range inputLines([]string{filepath.Join(dir, "missing.txt")}) {
		gotErr = err
	}
	require.Error(t, gotErr)
}

// indexTokenizer encodes each word as its length plus one.
type indexTokenizer struct{}

func (indexTokenizer) Encode(text string) []int {
	var ids []int
	for _, word := range strings.Fields(text) {
		ids = append(ids, len(word)+1)
	}
	return ids
}
func (indexTokenizer) Decode([]int) string { return "" }
func (indexTokenizer) VocabSize() int      { return 50 }
func (indexTokenizer) SpecialTokenID(api.SpecialToken) (int, error) {
	return 0, errors.New("no special tokens")
}

// writeShards runs the pipeline over a few long lines and returns the shard writer.
func writeShards(t *testing.T, format string) (*pipeline.ShardWriter, pipeline.Stats) {
	var lines []corpus.Line
	for ii := range 12 {
		lines = append(lines, corpus.Line{Number: ii + 1, Text: strings.Repeat("lorem ipsum dolor sit amet ", 20)})
	}
	p, err := pipeline.New(indexTokenizer{}, pipeline.Options{
		Albert:     albert.DefaultConfig(),
		Normalizer: normalize.Normalizer{},
		Workers:    2,
		Seed:       5,
		BatchSize:  5,
	})
	require.NoError(t, err)
	sw, err := pipeline.NewShardWriter(t.TempDir(), "test", format)
	require.NoError(t, err)
	seq := func(yield func(corpus.Line, error) bool) {
		for _, line := range lines {
			if !yield(line, nil) {
				return
			}
		}
	}
	stats, err := p.Run(context.Background(), seq, sw)
	require.NoError(t, err)
	require.NotEmpty(t, sw.Paths)
	return sw, stats
}

func TestInspect(t *testing.T) {
	for _, format := range []string{pipeline.FormatParquet, pipeline.FormatSafetensors} {
		t.Run(format, func(t *testing.T) {
			sw, _ := writeShards(t, format)
			out, err := execute(t, "inspect", "-n", "2", sw.Paths[0])
			require.NoError(t, err)
			assert.Contains(t, out, format)
			assert.Contains(t, out, "#0")
			assert.Contains(t, out, "#1")
			assert.NotContains(t, out, "#2")
			assert.Contains(t, out, "order_label=")
			if format == pipeline.FormatSafetensors {
				assert.Contains(t, out, features.TargetPositions)
				assert.Contains(t, out, sw.RunID)
				// Shards are read back as int64 tensors: the first one holds a full batch of 5.
				assert.Contains(t, out, fmt.Sprintf("(%s)[5 %d]", dtypes.Int64, albert.DefaultMaxLen+1))
				assert.Contains(t, out, fmt.Sprintf("(%s)[5]", dtypes.Int64))
			}
		})
	}

	_, err := execute(t, "inspect", "shard.csv")
	require.Error(t, err)
	_, err = execute(t, "inspect")
	require.Error(t, err)
}

func TestRenderSummary(t *testing.T) {
	sw, stats := writeShards(t, pipeline.FormatParquet)
	summary := renderSummary(stats, sw, 0)
	assert.Contains(t, summary, sw.RunID)
	assert.Contains(t, summary, fmt.Sprintf("%d (parquet)", len(sw.Paths)))
	assert.Contains(t, summary, "examples")
}
