package chunkfile

import (
	"errors"
	"fmt"

	"github.com/ipfs/go-chunkfile/bounded"
)

var (
	// ErrFormat is returned when the bytes on disk do not form a valid
	// container: bad magic, unexpected app id, corrupt directory, or a chunk
	// marker that does not match the directory.
	ErrFormat = errors.New("chunkfile: invalid format")

	// ErrNotFound is returned when a requested chunk is not in the directory.
	ErrNotFound = errors.New("chunkfile: chunk not found")

	// ErrProtocol is returned when the API is used out of order, e.g. opening
	// a chunk while another one is open, using a reserved id, or using a
	// closed reader or writer.
	ErrProtocol = errors.New("chunkfile: protocol violation")

	// ErrBounds is returned when a position, length or size does not fit the
	// window or field it is meant for.
	ErrBounds = bounded.ErrOutOfBounds
)

// errReadOnlyChunk is the reason writes to a chunk opened by a reader fail.
var errReadOnlyChunk = fmt.Errorf("%w: chunk is open for reading", ErrProtocol)
