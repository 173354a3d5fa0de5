// Package pipeline generates examples from a corpus with several workers, and hands them in batches to a Sink.
//
// Worker i owns a Builder seeded with Seed+i and processes the lines whose index in the whole input, modulo
// Workers, is i. Batches are emitted in input order, so for a fixed seed and number of workers the output is
// reproducible, whatever the batch size.
package pipeline

import (
	"context"
	"fmt"
	"iter"

	"github.com/gomlx/albertdata/albert"
	"github.com/gomlx/albertdata/corpus"
	"github.com/gomlx/albertdata/features"
	"github.com/gomlx/albertdata/tokenizers/api"
	"github.com/gomlx/albertdata/tokenizers/normalize"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// Options configures a Pipeline.
type Options struct {
	Albert     albert.Config
	Normalizer normalize.Normalizer
	Workers    int
	Seed       uint64
	BatchSize  int
}

// Sink consumes batches of examples, in order.
type Sink interface {
	WriteBatch(batch *features.Batch) error
}

// Stats counts what happened to the input lines.
type Stats struct {
	Lines, Examples, Batches              int
	TooShort, MaskingFailed, EncodeFailed int
}

// Skipped returns the number of lines that didn't produce an example.
func (s Stats) Skipped() int {
	return s.TooShort + s.MaskingFailed + s.EncodeFailed
}

// String implements fmt.Stringer.
func (s Stats) String() string {
	return fmt.Sprintf("%d lines, %d examples in %d batches, %d skipped (%d too short, %d masking failed, %d encode failed)",
		s.Lines, s.Examples, s.Batches, s.Skipped(), s.TooShort, s.MaskingFailed, s.EncodeFailed)
}

// Pipeline runs the example generation.
type Pipeline struct {
	options  Options
	builders []*Builder
}

// New creates a Pipeline. tok is shared by all workers and must be safe for concurrent Encode calls,
// which is the case for the tokenizers in this module.
func New(tok api.Tokenizer, options Options) (*Pipeline, error) {
	if options.Workers < 1 {
		return nil, errors.Errorf("pipeline needs at least 1 worker, got %d", options.Workers)
	}
	if options.BatchSize < 1 {
		return nil, errors.Errorf("pipeline batch size must be >= 1, got %d", options.BatchSize)
	}
	p := &Pipeline{options: options}
	for ii := range options.Workers {
		b, err := NewBuilder(tok, options.Normalizer, options.Albert, albert.NewRand(options.Seed+uint64(ii)))
		if err != nil {
			return nil, err
		}
		p.builders = append(p.builders, b)
	}
	return p, nil
}

type lineResult struct {
	example *albert.Example
	err     error
}

// Run reads all lines, builds examples and writes them to sink in batches of up to BatchSize examples.
//
// Lines failing with a skippable error (albert.ErrTooShort, albert.ErrMaskingFailed, ErrEncodeFailed) are logged
// and counted.
// Any other error, from the input, the sink or the context, stops the run.
func (p *Pipeline) Run(ctx context.Context, lines iter.Seq2[corpus.Line, error], sink Sink) (Stats, error) {
	var stats Stats
	batch := features.NewBatch(p.options.Albert)
	chunk := make([]corpus.Line, 0, p.options.BatchSize)

	flush := func() error {
		if batch.Len() == 0 {
			return nil
		}
		if err := sink.WriteBatch(batch); err != nil {
			return errors.WithMessagef(err, "while writing batch %d", stats.Batches)
		}
		stats.Batches++
		klog.V(1).Infof("wrote batch %d with %d examples (%d lines read)", stats.Batches, batch.Len(), stats.Lines)
		batch = features.NewBatch(p.options.Albert)
		return nil
	}

	process := func() error {
		results, err := p.processChunk(ctx, stats.Lines-len(chunk), chunk)
		if err != nil {
			return err
		}
		for ii, result := range results {
			line := chunk[ii]
			if result.err != nil {
				switch {
				case errors.Is(result.err, albert.ErrTooShort):
					stats.TooShort++
				case errors.Is(result.err, albert.ErrMaskingFailed):
					stats.MaskingFailed++
				case errors.Is(result.err, ErrEncodeFailed):
					stats.EncodeFailed++
				}
				klog.Warningf("skipping line %d: %v, text=[%s]", line.Number, result.err, line.Text)
				continue
			}
			if err := batch.Add(result.example); err != nil {
				return err
			}
			stats.Examples++
			if batch.Len() >= p.options.BatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		chunk = chunk[:0]
		return nil
	}

	for line, err := range lines {
		if err != nil {
			return stats, errors.WithMessagef(err, "while reading input after %d lines", stats.Lines)
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Lines++
		chunk = append(chunk, line)
		if len(chunk) == p.options.BatchSize {
			if err := process(); err != nil {
				return stats, err
			}
		}
	}
	if len(chunk) > 0 {
		if err := process(); err != nil {
			return stats, err
		}
	}
	if err := flush(); err != nil {
		return stats, err
	}
	return stats, nil
}

// processChunk builds the examples of chunk in parallel, one goroutine per worker.
// start is the index of chunk[0] in the whole input: line start+ii goes to worker (start+ii) % Workers.
func (p *Pipeline) processChunk(ctx context.Context, start int, chunk []corpus.Line) ([]lineResult, error) {
	results := make([]lineResult, len(chunk))
	numWorkers := len(p.builders)
	g, gCtx := errgroup.WithContext(ctx)
	for w, builder := range p.builders {
		first := workerOffset(start, w, numWorkers)
		if first >= len(chunk) {
			continue
		}
		g.Go(func() error {
			for ii := first; ii < len(chunk); ii += numWorkers {
				if err := gCtx.Err(); err != nil {
					return err
				}
				ex, err := builder.Build(chunk[ii].Text)
				if err != nil && !IsSkippable(err) {
					return errors.WithMessagef(err, "line %d", chunk[ii].Number)
				}
				results[ii] = lineResult{example: ex, err: err}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// workerOffset returns the index in a chunk starting at input index start of the first line handled by worker w.
func workerOffset(start, w, numWorkers int) int {
	return (w - start%numWorkers + numWorkers) % numWorkers
}
