package safetensors

import (
	"path/filepath"
	"testing"

	"github.com/gomlx/albertdata/albert"
	"github.com/gomlx/albertdata/features"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBatch(t *testing.T, n int) *features.Batch {
	cfg := albert.DefaultConfig()
	asm, err := albert.NewAssembler(cfg, albert.NewRand(9))
	require.NoError(t, err)
	ids := make([]int, 80)
	for ii := range ids {
		ids[ii] = 2 + ii
	}
	batch := features.NewBatch(cfg)
	for batch.Len() < n {
		ex, err := asm.Assemble(ids, 300)
		require.NoError(t, err)
		require.NoError(t, batch.Add(ex))
	}
	return batch
}

func TestWriteFile(t *testing.T) {
	batch := newTestBatch(t, 3)
	filePath := filepath.Join(t.TempDir(), "shard.safetensors")
	require.NoError(t, WriteFile(filePath, batch, map[string]string{"seed": "9"}))
	assert.NoFileExists(t, filePath+".tmp")

	r, err := Open(filePath)
	require.NoError(t, err)
	defer func() { require.NoError(t, r.Close()) }()
	assert.Equal(t, "9", r.Header.Metadata["seed"])
	require.Len(t, r.Header.Tensors, len(features.Names))
	assert.Zero(t, r.dataOffset%8)

	for _, name := range features.Names {
		want, err := batch.Flat(name)
		require.NoError(t, err)
		wantDims, err := batch.Shape(name)
		require.NoError(t, err)
		got, dims, err := r.ReadFlat(name)
		require.NoError(t, err)
		assert.Equal(t, wantDims, dims, "feature %q", name)
		assert.Equal(t, want, got, "feature %q", name)
		assert.Equal(t, name, r.Header.Tensors[name].Name)
	}

	tensor, err := r.ReadTensor(features.Tokens)
	require.NoError(t, err)
	assert.Equal(t, []int{3, albert.DefaultMaxLen + 1}, tensor.Shape().Dimensions)

	_, _, err = r.ReadFlat("missing")
	require.Error(t, err)
}

func TestTensorMetadata_DType(t *testing.T) {
	for _, name := range []string{"I64", "I32", "F32", "F64", "BOOL"} {
		tm := &TensorMetadata{Dtype: name}
		_, err := tm.DType()
		require.NoError(t, err, name)
	}
	_, err := (&TensorMetadata{Dtype: "UNKNOWN"}).DType()
	require.Error(t, err)
}

func TestOpen_Invalid(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.safetensors"))
	require.Error(t, err)
}
