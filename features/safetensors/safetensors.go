// Package safetensors writes batches of examples to ".safetensors" files, and reads them back.
//
// Safetensor format:
//
//	[8 bytes: header size as little-endian u64]
//	[header_size bytes: JSON header]
//	[remaining bytes: tensor data]
//
// All features are written as "I64" tensors, in the order of features.Names.
package safetensors

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/gomlx/albertdata/features"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

const (
	metadataKey = "__metadata__"

	// maxHeaderSize is a sanity check when reading.
	maxHeaderSize = 100 * 1024 * 1024
)

// TensorMetadata describes one tensor in the file.
type TensorMetadata struct {
	Name        string   `json:"-"`            // Tensor name (from map key)
	Dtype       string   `json:"dtype"`        // Data type: F32, F64, I32, I64, etc.
	Shape       []int    `json:"shape"`        // Tensor dimensions
	DataOffsets [2]int64 `json:"data_offsets"` // [start, end] byte offsets after the header
}

// SizeBytes returns the size of the tensor data in bytes.
func (tm *TensorMetadata) SizeBytes() int64 {
	return tm.DataOffsets[1] - tm.DataOffsets[0]
}

// NumElements returns the total number of elements in a tensor based on its shape.
func (tm *TensorMetadata) NumElements() int64 {
	prod := int64(1)
	for _, dim := range tm.Shape {
		prod *= int64(dim)
	}
	return prod
}

// DType converts the safetensors dtype name to the GoMLX one.
func (tm *TensorMetadata) DType() (dtypes.DType, error) {
	switch tm.Dtype {
	case "I64":
		return dtypes.Int64, nil
	case "I32":
		return dtypes.Int32, nil
	case "F32":
		return dtypes.Float32, nil
	case "F64":
		return dtypes.Float64, nil
	case "BOOL":
		return dtypes.Bool, nil
	}
	dtype, found := dtypes.MapOfNames[strings.ToLower(tm.Dtype)]
	if !found {
		return dtypes.InvalidDType, errors.Errorf("dtype %q not supported", tm.Dtype)
	}
	return dtype, nil
}

// Header represents the JSON header of a safetensors file.
type Header struct {
	Tensors  map[string]*TensorMetadata // Tensor name -> metadata
	Metadata map[string]string          // Optional __metadata__ field
}

// WriteFile writes batch to filePath, with the given free-form metadata.
//
// The file is written to filePath+".tmp" and renamed once complete.
func WriteFile(filePath string, batch *features.Batch, metadata map[string]string) error {
	tmpPath := filePath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return errors.Wrapf(err, "failed to create %q", tmpPath)
	}
	err = Write(f, batch, metadata)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = errors.Wrapf(closeErr, "failed to close %q", tmpPath)
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		return errors.Wrapf(err, "failed to move %q to %q", tmpPath, filePath)
	}
	return nil
}

// Write writes batch in safetensors format to w.
func Write(w io.Writer, batch *features.Batch, metadata map[string]string) error {
	rawHeader := make(map[string]any, len(features.Names)+1)
	if len(metadata) > 0 {
		rawHeader[metadataKey] = metadata
	}
	flats := make([][]int64, len(features.Names))
	var offset int64
	for ii, name := range features.Names {
		dims, err := batch.Shape(name)
		if err != nil {
			return err
		}
		flats[ii], err = batch.Flat(name)
		if err != nil {
			return err
		}
		size := int64(len(flats[ii])) * 8
		rawHeader[name] = &TensorMetadata{
			Dtype:       "I64",
			Shape:       dims,
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
	}
	headerBytes, err := json.Marshal(rawHeader)
	if err != nil {
		return errors.Wrap(err, "failed to encode safetensors header")
	}
	// Pad the header with spaces so the data starts 8-byte aligned.
	if rem := len(headerBytes) % 8; rem != 0 {
		headerBytes = append(headerBytes, bytes.Repeat([]byte{' '}, 8-rem)...)
	}

	buf := make([]byte, 0, 8+len(headerBytes))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(headerBytes)))
	buf = append(buf, headerBytes...)
	if _, err := w.Write(buf); err != nil {
		return errors.Wrap(err, "failed to write safetensors header")
	}
	for ii, flat := range flats {
		data := make([]byte, 0, len(flat)*8)
		for _, v := range flat {
			data = binary.LittleEndian.AppendUint64(data, uint64(v))
		}
		if _, err := w.Write(data); err != nil {
			return errors.Wrapf(err, "failed to write tensor %q", features.Names[ii])
		}
	}
	return nil
}

// ReadHeader reads and parses the header from a safetensors file, and returns it along with the
// offset where tensor data starts.
func ReadHeader(r io.Reader) (*Header, int64, error) {
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, 0, errors.Wrap(err, "failed to read header size")
	}
	if headerSize > maxHeaderSize {
		return nil, 0, errors.Errorf("header size too large: %d bytes", headerSize)
	}
	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, 0, errors.Wrap(err, "failed to read header JSON")
	}

	var rawHeader map[string]json.RawMessage
	if err := json.Unmarshal(headerBytes, &rawHeader); err != nil {
		return nil, 0, errors.Wrap(err, "failed to parse header JSON")
	}
	header := &Header{
		Tensors:  make(map[string]*TensorMetadata),
		Metadata: make(map[string]string),
	}
	for key, value := range rawHeader {
		if key == metadataKey {
			if err := json.Unmarshal(value, &header.Metadata); err != nil {
				return nil, 0, errors.Wrap(err, "failed to parse __metadata__")
			}
			continue
		}
		var tm TensorMetadata
		if err := json.Unmarshal(value, &tm); err != nil {
			return nil, 0, errors.Wrapf(err, "failed to parse tensor metadata for %s", key)
		}
		tm.Name = key
		header.Tensors[key] = &tm
	}
	return header, int64(8 + headerSize), nil
}

// Reader gives access to the tensors of a safetensors file written by Write.
type Reader struct {
	Header     *Header
	f          *os.File
	dataOffset int64
}

// Open opens filePath and parses its header.
func Open(filePath string) (*Reader, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open file %s", filePath)
	}
	header, dataOffset, err := ReadHeader(f)
	if err != nil {
		_ = f.Close()
		return nil, errors.WithMessagef(err, "in file %s", filePath)
	}
	return &Reader{Header: header, f: f, dataOffset: dataOffset}, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}

// ReadFlat reads the named int64 tensor as a flat slice, and returns it along with its dimensions.
func (r *Reader) ReadFlat(name string) ([]int64, []int, error) {
	meta, ok := r.Header.Tensors[name]
	if !ok {
		return nil, nil, errors.Errorf("tensor %q not found", name)
	}
	dtype, err := meta.DType()
	if err != nil {
		return nil, nil, err
	}
	if dtype != dtypes.Int64 {
		return nil, nil, errors.Errorf("tensor %q has dtype %s, only int64 is supported", name, dtype)
	}
	if meta.SizeBytes() != meta.NumElements()*8 {
		return nil, nil, errors.Errorf("tensor %q data size mismatch: got %d bytes, expected %d",
			name, meta.SizeBytes(), meta.NumElements()*8)
	}
	data := make([]byte, meta.SizeBytes())
	if _, err := r.f.ReadAt(data, r.dataOffset+meta.DataOffsets[0]); err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read tensor %q", name)
	}
	flat := make([]int64, meta.NumElements())
	for ii := range flat {
		flat[ii] = int64(binary.LittleEndian.Uint64(data[ii*8:]))
	}
	return flat, meta.Shape, nil
}

// ReadTensor reads the named tensor as a GoMLX tensor.
func (r *Reader) ReadTensor(name string) (*tensors.Tensor, error) {
	flat, dims, err := r.ReadFlat(name)
	if err != nil {
		return nil, err
	}
	return tensors.FromFlatDataAndDimensions(flat, dims...), nil
}
