package chunkfile

import (
	"fmt"

	"github.com/ipfs/go-chunkfile/bounded"
)

// Stats is returned by Inspect.
type Stats struct {
	Header        Header
	ChunkCount    int
	UniqueChunks  int
	PayloadBytes  int64
	MinChunkSize  int32
	AvgChunkSize  int32
	MaxChunkSize  int32
	DirectorySize int64
	// Overhead is every byte of the container that is not payload: header,
	// markers, padding and directory.
	Overhead int64
}

// Inspect summarizes the container. With verify set, the in-band marker of
// every chunk is checked against the directory and the first mismatch is
// returned as an ErrFormat error. Inspect fails with ErrProtocol while a
// chunk is open.
func (r *Reader) Inspect(verify bool) (Stats, error) {
	if r.closed {
		return Stats{}, fmt.Errorf("%w: reader is closed", ErrProtocol)
	}
	if r.active != nil {
		return Stats{}, fmt.Errorf("%w: chunk %s is still open", ErrProtocol, r.activeID)
	}
	stats := Stats{
		Header:        r.header,
		ChunkCount:    r.dir.Len(),
		UniqueChunks:  len(r.dir.byID),
		DirectorySize: r.header.FileSize - r.header.DirectoryOffset,
	}
	first := true
	err := r.dir.ForEach(func(c Chunk) error {
		if first || c.Size < stats.MinChunkSize {
			first = false
			stats.MinChunkSize = c.Size
		}
		if c.Size > stats.MaxChunkSize {
			stats.MaxChunkSize = c.Size
		}
		stats.PayloadBytes += int64(c.Size)
		if verify {
			return r.verifyMarker(c)
		}
		return nil
	})
	if err != nil {
		return stats, err
	}
	if stats.ChunkCount > 0 {
		stats.AvgChunkSize = int32(stats.PayloadBytes / int64(stats.ChunkCount))
	}
	stats.Overhead = r.header.FileSize - stats.PayloadBytes
	return stats, nil
}

func (r *Reader) verifyMarker(c Chunk) error {
	marker, err := bounded.New(r.rs, c.start()-MarkerSize, MarkerSize)
	if err != nil {
		return err
	}
	got, err := readMarker(marker)
	if err != nil {
		return fmt.Errorf("%w: reading marker of chunk %s: %w", ErrFormat, c.ID, err)
	}
	if got != c.ID {
		r.metrics.mismatches.Inc()
		return fmt.Errorf("%w: chunk %s has marker %s", ErrFormat, c.ID, got)
	}
	return nil
}
