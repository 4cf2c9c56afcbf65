package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteMetadataCreatesFile(t *testing.T) {
	dir := t.TempDir()
	codec := NewLocalCodec()

	err := codec.WriteMetadata(dir, Metadata{
		BasisSize:       5,
		MasterSeed:      42,
		SchemaVersion:   SchemaVersion,
		ReductionMode:   "none",
		ModelParameters: map[string]float64{"gs": 1.2},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "basisSize")
	assert.Contains(t, string(data), "1.2")
}

func TestWriteDatasetCreatesNamedFile(t *testing.T) {
	dir := t.TempDir()
	codec := NewLocalCodec()

	ds := Dataset{
		Pair:      [2]string{"top", "bottom"},
		Shape:     [4]int{2, 2, 2, 2},
		Result:    make([]float64, 16),
		Error:     make([]float64, 16),
		Converged: make([]bool, 16),
	}
	err := codec.WriteDataset(dir, ds)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, "top_bottom.bin"))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestPackBoolsRoundTripsBitPattern(t *testing.T) {
	bs := []bool{true, false, true, true, false, false, false, true, true}
	packed := packBools(bs)
	require.Len(t, packed, 2)

	for i, want := range bs {
		got := packed[i/8]&(1<<uint(i%8)) != 0
		assert.Equal(t, want, got, "bit %d", i)
	}
}
