package chunkfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"go.uber.org/multierr"

	"github.com/ipfs/go-chunkfile/bounded"
	"github.com/ipfs/go-chunkfile/chunkid"
)

const bulkPaddingBytesSize = 1024

var bulkPadding = make([]byte, bulkPaddingBytesSize)

// padding represents the number of padding bytes.
type padding uint64

// WriteTo writes this padding to the given writer as default value bytes.
func (p padding) WriteTo(w io.Writer) (n int64, err error) {
	for remaining := uint64(p); remaining > 0; {
		chunk := remaining
		if chunk > bulkPaddingBytesSize {
			chunk = bulkPaddingBytesSize
		}
		written, err := w.Write(bulkPadding[:chunk])
		n += int64(written)
		if err != nil {
			return n, err
		}
		remaining -= chunk
	}
	return n, nil
}

// Writer writes a container with a trailing chunk directory.
//
// Chunks are written one at a time: OpenChunk returns a channel that grows as
// the payload is written and CloseChunk records the chunk in the directory.
// Finalize must be called once all chunks are written; it writes the
// directory and patches the header. The container starts wherever the
// underlying stream was positioned when the Writer was created.
type Writer struct {
	ws      io.WriteSeeker
	closer  io.Closer
	base    int64
	offset  int64
	header  Header
	dir     Directory
	opts    Options
	metrics writerMetrics

	active       *bounded.Channel
	activeID     chunkid.ID
	activeOffset uint64

	finalized bool
}

// NewWriter writes a placeholder header for a container tagged with appID at
// the current position of ws and returns a Writer for its chunks. The caller
// keeps ownership of ws.
func NewWriter(ws io.WriteSeeker, appID uint64, opts ...Option) (*Writer, error) {
	base, err := ws.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("locating container start: %w", err)
	}
	o := ApplyOptions(opts...)
	w := &Writer{
		ws:      ws,
		base:    base,
		header:  NewHeader(appID),
		opts:    o,
		metrics: newWriterMetrics(o.MetricsContext),
	}
	if _, err := w.header.WriteTo(ws); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	w.offset = HeaderSize
	log.Debugw("opened container for writing", "app", appID, "base", base)
	return w, nil
}

// Create creates or truncates the file at path and returns a Writer for it.
// Close finalizes the container and closes the file.
func Create(path string, appID uint64, opts ...Option) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("could not create container file: %w", err)
	}
	w, err := NewWriter(f, appID, opts...)
	if err != nil {
		return nil, multierr.Append(err, f.Close())
	}
	w.closer = f
	return w, nil
}

// Header returns the container header. FileSize and DirectoryOffset are only
// meaningful after Finalize.
func (w *Writer) Header() Header {
	return w.header
}

// Chunks returns the chunks closed so far, in write order.
func (w *Writer) Chunks() []Chunk {
	return w.dir.Chunks()
}

// OpenChunk starts the chunk id and returns the channel its payload is
// written to. Opening the chunk that is already open returns the same
// channel; opening any other chunk closes the open one first.
func (w *Writer) OpenChunk(id chunkid.ID) (*bounded.Channel, error) {
	if w.finalized {
		return nil, fmt.Errorf("%w: writer is finalized", ErrProtocol)
	}
	if err := chunkid.Validate(id); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	if w.active != nil {
		if w.activeID == id {
			return w.active, nil
		}
		if err := w.CloseChunk(); err != nil {
			return nil, err
		}
	}

	if _, err := w.ws.Seek(w.base+w.offset, io.SeekStart); err != nil {
		return nil, err
	}
	if align := int64(w.opts.ChunkAlignment); align > 1 {
		pad := (align - (w.offset+MarkerSize)%align) % align
		n, err := padding(pad).WriteTo(w.ws)
		w.offset += n
		if err != nil {
			return nil, fmt.Errorf("writing chunk alignment: %w", err)
		}
	}
	if err := writeMarker(w.ws, id); err != nil {
		return nil, fmt.Errorf("writing marker of chunk %s: %w", id, err)
	}
	w.offset += MarkerSize

	ch, err := bounded.New(w.ws, w.base+w.offset, 0, bounded.Growable(), bounded.OnClose(w.CloseChunk))
	if err != nil {
		return nil, err
	}
	w.active = ch
	w.activeID = id
	w.activeOffset = uint64(w.offset - HeaderSize)
	return ch, nil
}

// OpenChunkByName is OpenChunk for an encoded name.
func (w *Writer) OpenChunkByName(name string) (*bounded.Channel, error) {
	id, err := chunkid.Encode(name)
	if err != nil {
		return nil, err
	}
	return w.OpenChunk(id)
}

// CloseChunk records the open chunk in the directory and invalidates its
// channel. The chunk size is the channel length at this point, so a payload
// shortened with SetLength is recorded at its shortened size. It is a no-op
// when no chunk is open.
func (w *Writer) CloseChunk() error {
	ch := w.active
	if ch == nil {
		return nil
	}
	w.active = nil
	size := ch.Len()
	// Re-enters CloseChunk through the OnClose hook, which is a no-op now.
	if err := ch.Close(); err != nil {
		return err
	}
	if size > math.MaxInt32 {
		return fmt.Errorf("%w: chunk %s holds %d bytes, more than %d", ErrBounds, w.activeID, size, math.MaxInt32)
	}
	w.offset += size
	if _, err := w.ws.Seek(w.base+w.offset, io.SeekStart); err != nil {
		return err
	}
	c := Chunk{ID: w.activeID, Size: int32(size), Offset: w.activeOffset}
	w.dir.Add(c)
	w.metrics.chunks.Inc()
	w.metrics.bytes.Add(float64(size))
	log.Debugw("closed chunk", "chunk", c.ID, "size", c.Size, "offset", c.Offset)
	return nil
}

// Finalize closes the open chunk, writes the directory and patches the header
// with the final size and directory offset. The underlying stream is left
// positioned just past the container. It returns the total container length,
// so a caller embedding the container in a larger stream can skip past it.
// Calling Finalize again returns the same length.
func (w *Writer) Finalize() (int64, error) {
	if w.finalized {
		return w.header.FileSize, nil
	}
	if err := w.CloseChunk(); err != nil {
		return 0, err
	}
	if _, err := w.ws.Seek(w.base+w.offset, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := padding(w.opts.DirectoryPadding).WriteTo(w.ws)
	w.offset += n
	if err != nil {
		return 0, fmt.Errorf("writing directory padding: %w", err)
	}

	dirOffset := w.offset
	n, err = w.dir.WriteTo(w.ws)
	w.offset += n
	if err != nil {
		return 0, err
	}

	w.header.FileSize = w.offset
	w.header.DirectoryOffset = dirOffset
	if err := w.patchHeader(); err != nil {
		return 0, fmt.Errorf("patching header: %w", err)
	}
	if _, err := w.ws.Seek(w.base+w.offset, io.SeekStart); err != nil {
		return 0, err
	}
	w.finalized = true
	log.Debugw("finalized container", "chunks", w.dir.Len(), "size", w.header.FileSize, "directory", dirOffset)
	return w.header.FileSize, nil
}

func (w *Writer) patchHeader() error {
	if _, err := w.ws.Seek(w.base+fileSizeOffset, io.SeekStart); err != nil {
		return err
	}
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(w.header.FileSize))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(w.header.DirectoryOffset))
	_, err := w.ws.Write(buf[:])
	return err
}

// Close finalizes the container. If the Writer was created with Create, the
// file is closed as well.
func (w *Writer) Close() error {
	_, err := w.Finalize()
	if w.closer != nil {
		err = multierr.Append(err, w.closer.Close())
		w.closer = nil
	}
	return err
}
