package chunkfile

import (
	"fmt"
	"io"

	"github.com/ipfs/go-chunkfile/bounded"
	"github.com/ipfs/go-chunkfile/chunkid"
)

// Variant selects one of the two container layouts.
type Variant int

const (
	// VariantDirectory is the random access layout: header, chunk payloads
	// each preceded by their marker, and a trailing directory.
	VariantDirectory Variant = iota
	// VariantSequential is the legacy layout: a plain run of
	// (id, size, payload) frames with no header or directory.
	VariantSequential
)

func (v Variant) String() string {
	switch v {
	case VariantDirectory:
		return "directory"
	case VariantSequential:
		return "sequential"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// ParseVariant is the inverse of Variant.String.
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "directory":
		return VariantDirectory, nil
	case "sequential":
		return VariantSequential, nil
	default:
		return 0, fmt.Errorf("unknown container variant %q", s)
	}
}

// ChunkWriter is implemented by the writers of both variants.
type ChunkWriter interface {
	// OpenChunk starts the chunk id and returns the channel its payload is
	// written to.
	OpenChunk(id chunkid.ID) (*bounded.Channel, error)
	// CloseChunk ends the open chunk, if any.
	CloseChunk() error
	// Finalize ends the open chunk, completes the container and returns its
	// length in bytes.
	Finalize() (int64, error)
	io.Closer
}

// ChunkReader is implemented by the readers of both variants.
type ChunkReader interface {
	// OpenChunk returns a channel over the payload of the chunk id.
	OpenChunk(id chunkid.ID) (*bounded.Channel, error)
	// CloseChunk releases the open chunk, if any.
	CloseChunk() error
	io.Closer
}

var (
	_ ChunkWriter = (*Writer)(nil)
	_ ChunkWriter = (*SequentialWriter)(nil)
	_ ChunkReader = (*Reader)(nil)
	_ ChunkReader = (*SequentialReader)(nil)
)

// NewChunkWriter returns a writer for the given variant. The sequential
// variant has no header, so appID is ignored for it.
func NewChunkWriter(ws io.WriteSeeker, v Variant, appID uint64, opts ...Option) (ChunkWriter, error) {
	switch v {
	case VariantDirectory:
		w, err := NewWriter(ws, appID, opts...)
		if err != nil {
			return nil, err
		}
		return w, nil
	case VariantSequential:
		w, err := NewSequentialWriter(ws, opts...)
		if err != nil {
			return nil, err
		}
		return w, nil
	default:
		return nil, fmt.Errorf("unknown container variant %v", v)
	}
}

// NewChunkReader returns a reader for the given variant.
func NewChunkReader(rs io.ReadSeeker, v Variant, opts ...Option) (ChunkReader, error) {
	switch v {
	case VariantDirectory:
		r, err := NewReader(rs, opts...)
		if err != nil {
			return nil, err
		}
		return r, nil
	case VariantSequential:
		r, err := NewSequentialReader(rs, opts...)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown container variant %v", v)
	}
}
