package pipeline

import (
	"context"
	"fmt"
	"hash/fnv"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/albertdata/albert"
	"github.com/gomlx/albertdata/corpus"
	"github.com/gomlx/albertdata/features"
	"github.com/gomlx/albertdata/features/parquetfile"
	"github.com/gomlx/albertdata/features/safetensors"
	"github.com/gomlx/albertdata/tokenizers/api"
	"github.com/gomlx/albertdata/tokenizers/normalize"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVocabSize = 1000

// wordTokenizer maps each whitespace separated word to a hash based id in [1, testVocabSize).
type wordTokenizer struct{}

var _ api.Tokenizer = wordTokenizer{}

func (wordTokenizer) Encode(text string) []int {
	words := strings.Fields(text)
	ids := make([]int, len(words))
	for ii, word := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		ids[ii] = 1 + int(h.Sum32()%(testVocabSize-1))
	}
	return ids
}

func (wordTokenizer) Decode(ids []int) string {
	parts := make([]string, len(ids))
	for ii, id := range ids {
		parts[ii] = fmt.Sprintf("<%d>", id)
	}
	return strings.Join(parts, " ")
}

func (wordTokenizer) VocabSize() int { return testVocabSize }

func (wordTokenizer) SpecialTokenID(token api.SpecialToken) (int, error) {
	return 0, errors.Errorf("no special token %s", token)
}

// strictTokenizer fails to encode any text containing the word "unencodable".
type strictTokenizer struct {
	wordTokenizer
}

var _ api.TryEncoder = strictTokenizer{}

func (tok strictTokenizer) TryEncode(text string) ([]int, error) {
	if strings.Contains(text, "unencodable") {
		return nil, errors.New("no encoding for text")
	}
	return tok.Encode(text), nil
}

// memorySink keeps every batch it receives.
type memorySink struct {
	batches []*features.Batch
	failAt  int
}

func (s *memorySink) WriteBatch(batch *features.Batch) error {
	if s.failAt > 0 && len(s.batches)+1 == s.failAt {
		return errors.New("disk full")
	}
	s.batches = append(s.batches, batch)
	return nil
}

func (s *memorySink) examples() []*albert.Example {
	var all []*albert.Example
	for _, b := range s.batches {
		all = append(all, b.Examples...)
	}
	return all
}

func longLine(n, salt int) string {
	words := make([]string, n)
	for ii := range words {
		words[ii] = fmt.Sprintf("Word%d_%d", ii, salt)
	}
	return strings.Join(words, "  ")
}

// testCorpus returns numLong long lines with a short line after every third one.
func testCorpus(numLong int) (lines []corpus.Line, numShort int) {
	for ii := range numLong {
		lines = append(lines, corpus.Line{Number: len(lines) + 1, Text: longLine(60+ii%40, ii)})
		if ii%3 == 2 {
			lines = append(lines, corpus.Line{Number: len(lines) + 1, Text: "too short"})
			numShort++
		}
	}
	return
}

func seqOf(lines []corpus.Line) iter.Seq2[corpus.Line, error] {
	return func(yield func(corpus.Line, error) bool) {
		for _, line := range lines {
			if !yield(line, nil) {
				return
			}
		}
	}
}

func testOptions(workers int, seed uint64) Options {
	return Options{
		Albert:     albert.DefaultConfig(),
		Normalizer: normalize.Normalizer{},
		Workers:    workers,
		Seed:       seed,
		BatchSize:  8,
	}
}

func TestNew(t *testing.T) {
	_, err := New(wordTokenizer{}, testOptions(0, 0))
	require.Error(t, err)

	opts := testOptions(1, 0)
	opts.BatchSize = 0
	_, err = New(wordTokenizer{}, opts)
	require.Error(t, err)

	opts = testOptions(1, 0)
	opts.Albert.MaxLabel = 0
	_, err = New(wordTokenizer{}, opts)
	require.Error(t, err)

	_, err = New(nil, testOptions(1, 0))
	require.Error(t, err)
}

func TestBuilder(t *testing.T) {
	b, err := NewBuilder(wordTokenizer{}, normalize.Normalizer{}, albert.DefaultConfig(), albert.NewRand(7))
	require.NoError(t, err)

	_, err = b.Build("just a few words")
	require.ErrorIs(t, err, albert.ErrTooShort)

	ex, err := b.Build(longLine(80, 0))
	if errors.Is(err, albert.ErrMaskingFailed) {
		t.Skip("no span accepted for this seed")
	}
	require.NoError(t, err)
	assert.Equal(t, testVocabSize, ex.Tokens[0])
	assert.Greater(t, ex.NumMasked, 0)
}

func TestRun(t *testing.T) {
	lines, numShort := testCorpus(50)
	for _, workers := range []int{1, 3, 8} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			p, err := New(wordTokenizer{}, testOptions(workers, 42))
			require.NoError(t, err)
			sink := &memorySink{}
			stats, err := p.Run(context.Background(), seqOf(lines), sink)
			require.NoError(t, err)

			assert.Equal(t, len(lines), stats.Lines)
			assert.Equal(t, numShort, stats.TooShort)
			assert.Equal(t, stats.Lines, stats.Examples+stats.Skipped())
			assert.Equal(t, stats.Examples, len(sink.examples()))
			assert.Equal(t, len(sink.batches), stats.Batches)
			for ii, batch := range sink.batches {
				assert.LessOrEqual(t, batch.Len(), 8)
				if ii < len(sink.batches)-1 {
					assert.Greater(t, batch.Len(), 0)
				}
			}
			for _, ex := range sink.examples() {
				assert.Len(t, ex.Tokens, albert.DefaultMaxLen+1)
				assert.Len(t, ex.TargetIDs, albert.DefaultMaxLabel)
			}
		})
	}
}

func TestRun_EncodeFailures(t *testing.T) {
	lines, _ := testCorpus(20)
	numBad := 0
	for ii := range lines {
		if ii%5 == 0 {
			lines[ii].Text += " unencodable"
			numBad++
		}
	}
	// Short lines with the bad word fail to encode first.
	numShort := 0
	for _, line := range lines {
		if strings.HasPrefix(line.Text, "too short") && !strings.Contains(line.Text, "unencodable") {
			numShort++
		}
	}

	b, err := NewBuilder(strictTokenizer{}, normalize.Normalizer{}, albert.DefaultConfig(), albert.NewRand(1))
	require.NoError(t, err)
	_, err = b.Build(lines[0].Text)
	require.ErrorIs(t, err, ErrEncodeFailed)
	assert.True(t, IsSkippable(err))
	assert.ErrorContains(t, err, "no encoding for text")

	p, err := New(strictTokenizer{}, testOptions(3, 5))
	require.NoError(t, err)
	sink := &memorySink{}
	stats, err := p.Run(context.Background(), seqOf(lines), sink)
	require.NoError(t, err)
	assert.Equal(t, numBad, stats.EncodeFailed)
	assert.Equal(t, numShort, stats.TooShort)
	assert.Equal(t, stats.Lines, stats.Examples+stats.Skipped())
	assert.Contains(t, stats.String(), fmt.Sprintf("%d encode failed", numBad))
}

func TestRun_Deterministic(t *testing.T) {
	lines, _ := testCorpus(40)
	run := func(seed uint64, batchSize int) []*albert.Example {
		opts := testOptions(4, seed)
		opts.BatchSize = batchSize
		p, err := New(wordTokenizer{}, opts)
		require.NoError(t, err)
		sink := &memorySink{}
		_, err = p.Run(context.Background(), seqOf(lines), sink)
		require.NoError(t, err)
		return sink.examples()
	}
	requireSameExamples := func(t *testing.T, want, got []*albert.Example) {
		require.Equal(t, len(want), len(got))
		for ii := range want {
			assert.Equal(t, want[ii].Tokens, got[ii].Tokens, "example %d", ii)
			assert.Equal(t, want[ii].TargetIDs, got[ii].TargetIDs, "example %d", ii)
			assert.Equal(t, want[ii].TargetPositions, got[ii].TargetPositions, "example %d", ii)
			assert.Equal(t, want[ii].OrderLabel, got[ii].OrderLabel, "example %d", ii)
		}
	}

	first := run(11, 8)
	requireSameExamples(t, first, run(11, 8))
	assert.NotEqual(t, first, run(12, 8))

	// Lines are assigned to workers by their index in the whole input, not in the batch.
	for _, batchSize := range []int{1, 3, 5, 7, 64} {
		t.Run(fmt.Sprintf("batch_size=%d", batchSize), func(t *testing.T) {
			requireSameExamples(t, first, run(11, batchSize))
		})
	}
}

func TestWorkerOffset(t *testing.T) {
	const numWorkers = 3
	for _, start := range []int{0, 1, 2, 3, 4, 7, 11} {
		for w := range numWorkers {
			first := workerOffset(start, w, numWorkers)
			assert.GreaterOrEqual(t, first, 0)
			assert.Less(t, first, numWorkers)
			assert.Equal(t, w, (start+first)%numWorkers, "start=%d, worker=%d", start, w)
		}
	}
}

func TestRun_Errors(t *testing.T) {
	lines, _ := testCorpus(30)

	t.Run("cancelled", func(t *testing.T) {
		p, err := New(wordTokenizer{}, testOptions(2, 0))
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = p.Run(ctx, seqOf(lines), &memorySink{})
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("sink", func(t *testing.T) {
		p, err := New(wordTokenizer{}, testOptions(2, 0))
		require.NoError(t, err)
		sink := &memorySink{failAt: 2}
		_, err = p.Run(context.Background(), seqOf(lines), sink)
		require.ErrorContains(t, err, "disk full")
		assert.Len(t, sink.batches, 1)
	})

	t.Run("input", func(t *testing.T) {
		p, err := New(wordTokenizer{}, testOptions(2, 0))
		require.NoError(t, err)
		failing := func(yield func(corpus.Line, error) bool) {
			if !yield(lines[0], nil) {
				return
			}
			yield(corpus.Line{}, errors.New("bad sector"))
		}
		stats, err := p.Run(context.Background(), failing, &memorySink{})
		require.ErrorContains(t, err, "bad sector")
		assert.Equal(t, 1, stats.Lines)
	})
}

func TestShardWriter(t *testing.T) {
	lines, _ := testCorpus(20)
	for _, format := range []string{FormatParquet, FormatSafetensors} {
		t.Run(format, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "out")
			sw, err := NewShardWriter(dir, "train", format)
			require.NoError(t, err)
			p, err := New(wordTokenizer{}, testOptions(2, 3))
			require.NoError(t, err)
			stats, err := p.Run(context.Background(), seqOf(lines), sw)
			require.NoError(t, err)
			require.Len(t, sw.Paths, stats.Batches)
			assert.Equal(t, stats.Examples, sw.NumExamples())

			total := 0
			for ii, shardPath := range sw.Paths {
				assert.Equal(t, fmt.Sprintf("train-%s-%05d.%s", sw.RunID, ii, format), filepath.Base(shardPath))
				_, err := os.Stat(shardPath + ".tmp")
				assert.True(t, os.IsNotExist(err))
				if format == FormatParquet {
					rows, err := parquetfile.ReadFile(shardPath)
					require.NoError(t, err)
					total += len(rows)
					continue
				}
				r, err := safetensors.Open(shardPath)
				require.NoError(t, err)
				flat, dims, err := r.ReadFlat(features.OrderLabel)
				require.NoError(t, err)
				assert.Len(t, flat, dims[0])
				assert.Equal(t, sw.RunID, r.Header.Metadata["run_id"])
				require.NoError(t, r.Close())
				total += dims[0]
			}
			assert.Equal(t, stats.Examples, total)
		})
	}

	_, err := NewShardWriter(t.TempDir(), "x", "csv")
	require.Error(t, err)
}
