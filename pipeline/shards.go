package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gomlx/albertdata/features"
	"github.com/gomlx/albertdata/features/parquetfile"
	"github.com/gomlx/albertdata/features/safetensors"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Shard formats.
const (
	FormatParquet     = "parquet"
	FormatSafetensors = "safetensors"
)

// ShardWriter is a Sink that writes each batch to its own file in Dir, named
// "<prefix>-<run id>-<shard number>.<format>".
//
// The run id is a random UUID, so shards of different runs sharing a directory don't collide.
type ShardWriter struct {
	Dir, Prefix, Format string
	RunID               string

	// Metadata is stored in the header of safetensors shards. The shard number is added to it.
	Metadata map[string]string

	// Paths of the shards written so far.
	Paths []string

	numExamples int
}

// NewShardWriter creates a ShardWriter, creating dir if needed.
func NewShardWriter(dir, prefix, format string) (*ShardWriter, error) {
	switch format {
	case FormatParquet, FormatSafetensors:
	default:
		return nil, errors.Errorf("unknown shard format %q, valid values are %q or %q", format, FormatParquet, FormatSafetensors)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create output directory %q", dir)
	}
	return &ShardWriter{
		Dir:      dir,
		Prefix:   prefix,
		Format:   format,
		RunID:    uuid.NewString(),
		Metadata: map[string]string{},
	}, nil
}

// NextPath returns the path of the next shard to be written.
func (sw *ShardWriter) NextPath() string {
	name := fmt.Sprintf("%s-%s-%05d.%s", sw.Prefix, sw.RunID, len(sw.Paths), sw.Format)
	return filepath.Join(sw.Dir, name)
}

// NumExamples returns the number of examples written so far.
func (sw *ShardWriter) NumExamples() int {
	return sw.numExamples
}

// WriteBatch implements Sink.
func (sw *ShardWriter) WriteBatch(batch *features.Batch) error {
	shardPath := sw.NextPath()
	switch sw.Format {
	case FormatSafetensors:
		metadata := make(map[string]string, len(sw.Metadata)+2)
		for k, v := range sw.Metadata {
			metadata[k] = v
		}
		metadata["run_id"] = sw.RunID
		metadata["shard"] = strconv.Itoa(len(sw.Paths))
		if err := safetensors.WriteFile(shardPath, batch, metadata); err != nil {
			return err
		}
	default:
		w, err := parquetfile.Create(shardPath)
		if err != nil {
			return err
		}
		if err := w.WriteBatch(batch); err != nil {
			_ = w.Close()
			_ = os.Remove(shardPath)
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
	}
	sw.Paths = append(sw.Paths, shardPath)
	sw.numExamples += batch.Len()
	klog.V(1).Infof("shard %q: %d examples", shardPath, batch.Len())
	return nil
}
