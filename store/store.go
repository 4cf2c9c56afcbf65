// Package store implements the external output contract of spec.md §6.2 as
// a local codec. The real collaborator described there is
// an HDF5 file; no HDF5 binding exists anywhere in the retrieval pack, so
// this package treats HDF5 the way spec.md §1 frames external interfaces —
// as a replaceable collaborator behind the Store interface — and ships a
// concrete non-HDF5 implementation that preserves the same group/attribute/
// dataset layout.
package store

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sugawarayuuta/sonnet"
)

// Metadata mirrors the `/metadata` group's attributes of spec.md §6.2.
type Metadata struct {
	BasisSize       int                `json:"basisSize"`
	MasterSeed      int64              `json:"masterSeed"`
	SchemaVersion   int                `json:"schemaVersion"`
	ReductionMode   string             `json:"reductionMode"`
	ModelParameters map[string]float64 `json:"modelParameters"`
}

// Dataset is one `/particle_pair/<name1>_<name2>` group's three datasets,
// flattened to a single (m,n,j,k) row-major slice of length
// Shape[0]*Shape[1]*Shape[2]*Shape[3].
type Dataset struct {
	Pair      [2]string
	Shape     [4]int
	Result    []float64
	Error     []float64
	Converged []bool
}

// SchemaVersion is the on-disk format version written by LocalCodec.
const SchemaVersion = 1

// Store is the persistence collaborator spec.md §6.2 describes. Failures
// degrade to an in-memory result plus an error return per spec.md §7 —
// callers must not treat a Store failure as fatal to the calculation that
// produced the data.
type Store interface {
	WriteMetadata(outDir string, meta Metadata) error
	WriteDataset(outDir string, ds Dataset) error
}

// LocalCodec is the concrete Store implementation used in place of an HDF5
// binding: a JSON metadata sidecar (grounded in
// codewanderer42820-evm_triarb's sonnet.Unmarshal usage, mirrored here as
// Marshal) plus one binary dataset file per particle pair, following the
// teacher's own header-then-payload binary block convention
// (io/output.go's WriteGrid).
type LocalCodec struct{}

// NewLocalCodec returns a ready-to-use LocalCodec.
func NewLocalCodec() *LocalCodec { return &LocalCodec{} }

// WriteMetadata writes outDir/metadata.json.
func (LocalCodec) WriteMetadata(outDir string, meta Metadata) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("store: creating output directory: %w", err)
	}
	data, err := sonnet.Marshal(meta)
	if err != nil {
		return fmt.Errorf("store: marshaling metadata: %w", err)
	}
	path := filepath.Join(outDir, "metadata.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("store: writing %s: %w", path, err)
	}
	return nil
}

// datasetMagic tags the binary dataset format, bumped alongside SchemaVersion.
const datasetMagic uint32 = 0x57474c31 // "WGL1"

// WriteDataset writes outDir/<name1>_<name2>.bin: a small fixed header
// (magic, schema version, shape) followed by the result, error, and
// converged arrays in that order.
func (LocalCodec) WriteDataset(outDir string, ds Dataset) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("store: creating output directory: %w", err)
	}
	name := fmt.Sprintf("%s_%s.bin", ds.Pair[0], ds.Pair[1])
	path := filepath.Join(outDir, name)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("store: creating %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, datasetMagic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, int32(SchemaVersion)); err != nil {
		return err
	}
	for _, dim := range ds.Shape {
		if err := binary.Write(w, binary.LittleEndian, int32(dim)); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, ds.Result); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, ds.Error); err != nil {
		return err
	}
	packedConverged := packBools(ds.Converged)
	if err := binary.Write(w, binary.LittleEndian, packedConverged); err != nil {
		return err
	}
	return w.Flush()
}

// packBools bit-packs a []bool into bytes, 8 flags per byte, matching the
// dense boolean dataset spec.md §6.2 calls for without wasting a byte per
// flag.
func packBools(bs []bool) []byte {
	out := make([]byte, (len(bs)+7)/8)
	for i, b := range bs {
		if b {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}
