// Package parquetfile writes examples as rows of a parquet file, one row per example, in the
// layout used by HuggingFace datasets.
package parquetfile

import (
	"os"

	"github.com/gomlx/albertdata/albert"
	"github.com/gomlx/albertdata/features"
	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
)

// Row is the parquet schema of one example.
type Row struct {
	Tokens          []int64 `parquet:"tokens,list"`
	TargetPositions []int64 `parquet:"target_positions,list"`
	SegmentTypes    []int64 `parquet:"segment_types,list"`
	OrderLabel      int64   `parquet:"order_label"`
	TargetIDs       []int64 `parquet:"target_ids,list"`
}

// NewRow converts ex to a Row.
func NewRow(ex *albert.Example) Row {
	return Row{
		Tokens:          toInt64(ex.Tokens),
		TargetPositions: toInt64(ex.TargetPositions),
		SegmentTypes:    toInt64(ex.SegmentTypes),
		OrderLabel:      int64(ex.OrderLabel),
		TargetIDs:       toInt64(ex.TargetIDs),
	}
}

// Writer writes rows to a parquet file. The file only shows up at its final path on Close.
type Writer struct {
	Path    string
	tmpPath string
	f       *os.File
	w       *parquet.GenericWriter[Row]
	numRows int
}

// Create starts writing a parquet file at filePath.
func Create(filePath string) (*Writer, error) {
	tmpPath := filePath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %q", tmpPath)
	}
	return &Writer{
		Path:    filePath,
		tmpPath: tmpPath,
		f:       f,
		w:       parquet.NewGenericWriter[Row](f),
	}, nil
}

// WriteBatch appends every example of batch.
func (w *Writer) WriteBatch(batch *features.Batch) error {
	rows := make([]Row, 0, batch.Len())
	for _, ex := range batch.Examples {
		rows = append(rows, NewRow(ex))
	}
	n, err := w.w.Write(rows)
	w.numRows += n
	if err != nil {
		return errors.Wrapf(err, "failed to write %d rows to %q", len(rows), w.tmpPath)
	}
	return nil
}

// NumRows returns the number of rows written so far.
func (w *Writer) NumRows() int {
	return w.numRows
}

// Close flushes the parquet footer and moves the file to its final path.
func (w *Writer) Close() error {
	if err := w.w.Close(); err != nil {
		_ = w.f.Close()
		_ = os.Remove(w.tmpPath)
		return errors.Wrapf(err, "failed to finish parquet file %q", w.tmpPath)
	}
	if err := w.f.Close(); err != nil {
		_ = os.Remove(w.tmpPath)
		return errors.Wrapf(err, "failed to close %q", w.tmpPath)
	}
	if err := os.Rename(w.tmpPath, w.Path); err != nil {
		return errors.Wrapf(err, "failed to move %q to %q", w.tmpPath, w.Path)
	}
	return nil
}

// ReadFile reads all rows of a parquet file written by Writer.
func ReadFile(filePath string) ([]Row, error) {
	rows, err := parquet.ReadFile[Row](filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read parquet file %q", filePath)
	}
	return rows, nil
}

func toInt64(values []int) []int64 {
	out := make([]int64, len(values))
	for ii, v := range values {
		out[ii] = int64(v)
	}
	return out
}
