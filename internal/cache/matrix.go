package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var matrixMagic = [4]byte{'B', 'R', 'M', '1'}

// EncodeMatrix serializes row vectors as a small header (magic, rows, dims)
// followed by little-endian float32 values. All rows must share one dimension.
func EncodeMatrix(vectors [][]float32) ([]byte, error) {
	dims := 0
	if len(vectors) > 0 {
		dims = len(vectors[0])
	}
	buf := make([]byte, 12, 12+len(vectors)*dims*4)
	copy(buf, matrixMagic[:])
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(vectors)))
	binary.LittleEndian.PutUint32(buf[8:], uint32(dims))
	for i, v := range vectors {
		if len(v) != dims {
			return nil, fmt.Errorf("row %d has %d dimensions, expected %d", i, len(v), dims)
		}
		for _, f := range v {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
		}
	}
	return buf, nil
}

// DecodeMatrix is the inverse of EncodeMatrix
func DecodeMatrix(b []byte) ([][]float32, error) {
	if len(b) < 12 || [4]byte(b[:4]) != matrixMagic {
		return nil, fmt.Errorf("invalid matrix header")
	}
	rows := int(binary.LittleEndian.Uint32(b[4:]))
	dims := int(binary.LittleEndian.Uint32(b[8:]))
	if len(b)-12 != rows*dims*4 {
		return nil, fmt.Errorf("matrix truncated: %d bytes for %dx%d", len(b)-12, rows, dims)
	}
	vectors := make([][]float32, rows)
	off := 12
	for i := range vectors {
		v := make([]float32, dims)
		for j := range v {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
			off += 4
		}
		vectors[i] = v
	}
	return vectors, nil
}

// EmbeddingCache stores summary embedding matrices in a Store. The corpus
// snapshot is identified by its record count.
type EmbeddingCache struct {
	store Store
}

func NewEmbeddingCache(store Store) *EmbeddingCache {
	return &EmbeddingCache{store: store}
}

// SummaryKey keys the summary matrix by embedding model
func SummaryKey(model string) string {
	return "summaries:" + model
}

// Load returns the cached matrix for key. It returns ErrMiss when nothing is
// stored and ErrMismatch when the stored row count differs from expected.
func (c *EmbeddingCache) Load(ctx context.Context, key string, expected int) ([][]float32, error) {
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrMiss
	}
	vectors, err := DecodeMatrix(data)
	if err != nil {
		return nil, errors.Join(ErrMismatch, err)
	}
	if len(vectors) != expected {
		return nil, fmt.Errorf("%w: cached %d rows, corpus has %d", ErrMismatch, len(vectors), expected)
	}
	return vectors, nil
}

// Save replaces the matrix stored under key
func (c *EmbeddingCache) Save(ctx context.Context, key string, vectors [][]float32) error {
	data, err := EncodeMatrix(vectors)
	if err != nil {
		return fmt.Errorf("failed to encode matrix: %w", err)
	}
	return c.store.Put(ctx, key, data)
}
