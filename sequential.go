package chunkfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/ipfs/go-chunkfile/bounded"
	"github.com/ipfs/go-chunkfile/chunkid"
)

// FrameHeaderSize is the size of the (id, size) pair that precedes every
// chunk payload in the sequential format.
const FrameHeaderSize = 12

// SequentialWriter writes chunks in the sequential format: every payload is
// preceded by its id and its length, and there is no header or directory.
// Readers find chunks by walking the stream, skipping the ones they do not
// want by their recorded length.
type SequentialWriter struct {
	ws      io.WriteSeeker
	base    int64
	offset  int64
	metrics writerMetrics

	active   *bounded.Channel
	activeID chunkid.ID
	sizeAt   int64

	finalized bool
}

// NewSequentialWriter returns a SequentialWriter that starts writing at the
// current position of ws. The caller keeps ownership of ws.
func NewSequentialWriter(ws io.WriteSeeker, opts ...Option) (*SequentialWriter, error) {
	base, err := ws.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("locating stream start: %w", err)
	}
	o := ApplyOptions(opts...)
	return &SequentialWriter{
		ws:      ws,
		base:    base,
		metrics: newWriterMetrics(o.MetricsContext),
	}, nil
}

// Begin starts the chunk id and returns the channel its payload is written
// to. Calling Begin again with the id of the open chunk is a no-op that
// returns the same channel; a single End still ends the chunk. Beginning a
// different chunk while one is open is an error.
func (w *SequentialWriter) Begin(id chunkid.ID) (*bounded.Channel, error) {
	if w.finalized {
		return nil, fmt.Errorf("%w: writer is finalized", ErrProtocol)
	}
	if err := chunkid.Validate(id); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	if w.active != nil {
		if w.activeID != id {
			return nil, fmt.Errorf("%w: cannot begin %s inside %s", ErrProtocol, id, w.activeID)
		}
		return w.active, nil
	}

	if _, err := w.ws.Seek(w.base+w.offset, io.SeekStart); err != nil {
		return nil, err
	}
	var frame [FrameHeaderSize]byte
	binary.LittleEndian.PutUint64(frame[0:8], uint64(id))
	if _, err := w.ws.Write(frame[:]); err != nil {
		return nil, fmt.Errorf("writing frame of chunk %s: %w", id, err)
	}
	w.sizeAt = w.offset + MarkerSize
	w.offset += FrameHeaderSize

	ch, err := bounded.New(w.ws, w.base+w.offset, 0, bounded.Growable(), bounded.OnClose(w.finish))
	if err != nil {
		return nil, err
	}
	w.active = ch
	w.activeID = id
	return ch, nil
}

// BeginName is Begin for an encoded name.
func (w *SequentialWriter) BeginName(name string) (*bounded.Channel, error) {
	id, err := chunkid.Encode(name)
	if err != nil {
		return nil, err
	}
	return w.Begin(id)
}

// End ends the open chunk: the payload length is written into the frame and
// the writer moves past the payload.
func (w *SequentialWriter) End() error {
	if w.active == nil {
		return fmt.Errorf("%w: End without Begin", ErrProtocol)
	}
	return w.active.Close()
}

// OpenChunk is Begin.
func (w *SequentialWriter) OpenChunk(id chunkid.ID) (*bounded.Channel, error) {
	return w.Begin(id)
}

// CloseChunk is End, except that it is a no-op when no chunk is open.
func (w *SequentialWriter) CloseChunk() error {
	if w.active == nil {
		return nil
	}
	return w.active.Close()
}

func (w *SequentialWriter) finish() error {
	ch := w.active
	w.active = nil
	size := ch.Len()
	if size > math.MaxUint32 {
		return fmt.Errorf("%w: chunk %s holds %d bytes, more than %d", ErrBounds, w.activeID, size, uint64(math.MaxUint32))
	}
	if _, err := w.ws.Seek(w.base+w.sizeAt, io.SeekStart); err != nil {
		return err
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(size))
	if _, err := w.ws.Write(buf[:]); err != nil {
		return fmt.Errorf("patching size of chunk %s: %w", w.activeID, err)
	}
	w.offset += size
	if _, err := w.ws.Seek(w.base+w.offset, io.SeekStart); err != nil {
		return err
	}
	w.metrics.chunks.Inc()
	w.metrics.bytes.Add(float64(size))
	log.Debugw("ended sequential chunk", "chunk", w.activeID, "size", size)
	return nil
}

// Finalize ends the open chunk and returns the number of bytes written.
// Later calls return the same count.
func (w *SequentialWriter) Finalize() (int64, error) {
	if w.finalized {
		return w.offset, nil
	}
	if err := w.CloseChunk(); err != nil {
		return 0, err
	}
	w.finalized = true
	return w.offset, nil
}

// Close is Finalize without the byte count.
func (w *SequentialWriter) Close() error {
	_, err := w.Finalize()
	return err
}

// SequentialReader reads chunks written by a SequentialWriter, in order.
type SequentialReader struct {
	rs      io.ReadSeeker
	base    int64
	offset  int64
	opts    Options
	metrics readerMetrics

	active     *bounded.Channel
	activeID   chunkid.ID
	activeSize int64

	closed bool
}

// NewSequentialReader returns a SequentialReader that starts at the current
// position of rs. The caller keeps ownership of rs.
func NewSequentialReader(rs io.ReadSeeker, opts ...Option) (*SequentialReader, error) {
	base, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("locating stream start: %w", err)
	}
	o := ApplyOptions(opts...)
	return &SequentialReader{
		rs:      rs,
		base:    base,
		opts:    o,
		metrics: newReaderMetrics(o.MetricsContext),
	}, nil
}

// Peek returns the id and size of the next chunk without consuming it. It
// returns io.EOF when the stream ends cleanly between chunks.
func (r *SequentialReader) Peek() (chunkid.ID, uint32, error) {
	if r.closed {
		return 0, 0, fmt.Errorf("%w: reader is closed", ErrProtocol)
	}
	if _, err := r.rs.Seek(r.base+r.offset, io.SeekStart); err != nil {
		return 0, 0, err
	}
	var frame [FrameHeaderSize]byte
	_, err := io.ReadFull(r.rs, frame[:])
	if _, serr := r.rs.Seek(r.base+r.offset, io.SeekStart); err == nil {
		err = serr
	}
	switch {
	case err == io.EOF:
		return 0, 0, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return 0, 0, fmt.Errorf("%w: truncated frame at offset %d", ErrFormat, r.offset)
	case err != nil:
		return 0, 0, err
	}
	id := chunkid.ID(binary.LittleEndian.Uint64(frame[0:8]))
	size := binary.LittleEndian.Uint32(frame[8:12])
	return id, size, nil
}

// Skip moves past the next chunk using its recorded length.
func (r *SequentialReader) Skip() error {
	if r.active != nil {
		return fmt.Errorf("%w: chunk %s is still open", ErrProtocol, r.activeID)
	}
	_, size, err := r.Peek()
	if err != nil {
		return err
	}
	r.offset += FrameHeaderSize + int64(size)
	_, err = r.rs.Seek(r.base+r.offset, io.SeekStart)
	return err
}

// Begin opens the next chunk, which must be id, and returns a channel over its
// payload. A mismatching id is an ErrFormat error that leaves the reader where
// it was, unless SkipUnknownChunks is set, in which case chunks are skipped
// until id is found. Calling Begin again with the id of the open chunk is a
// no-op that returns the same channel.
func (r *SequentialReader) Begin(id chunkid.ID) (*bounded.Channel, error) {
	if r.closed {
		return nil, fmt.Errorf("%w: reader is closed", ErrProtocol)
	}
	if err := chunkid.Validate(id); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	if r.active != nil {
		if r.activeID != id {
			return nil, fmt.Errorf("%w: cannot begin %s inside %s", ErrProtocol, id, r.activeID)
		}
		return r.active, nil
	}
	for {
		got, size, err := r.Peek()
		if err == io.EOF {
			return nil, fmt.Errorf("%w: %s before end of stream", ErrNotFound, id)
		}
		if err != nil {
			return nil, err
		}
		if got == id {
			return r.open(got, size)
		}
		if !r.opts.SkipUnknownChunks {
			r.metrics.mismatches.Inc()
			return nil, fmt.Errorf("%w: expected chunk %s, found %s at offset %d", ErrFormat, id, got, r.offset)
		}
		log.Debugw("skipping chunk", "chunk", got, "size", size, "want", id)
		r.offset += FrameHeaderSize + int64(size)
	}
}

// BeginName is Begin for an encoded name.
func (r *SequentialReader) BeginName(name string) (*bounded.Channel, error) {
	id, err := chunkid.Encode(name)
	if err != nil {
		return nil, err
	}
	return r.Begin(id)
}

// Next opens whatever chunk comes next. It returns io.EOF at the end of the
// stream.
func (r *SequentialReader) Next() (chunkid.ID, *bounded.Channel, error) {
	if r.active != nil {
		return 0, nil, fmt.Errorf("%w: chunk %s is still open", ErrProtocol, r.activeID)
	}
	id, size, err := r.Peek()
	if err != nil {
		return 0, nil, err
	}
	ch, err := r.open(id, size)
	if err != nil {
		return 0, nil, err
	}
	return id, ch, nil
}

func (r *SequentialReader) open(id chunkid.ID, size uint32) (*bounded.Channel, error) {
	ch, err := bounded.New(r.rs, r.base+r.offset+FrameHeaderSize, int64(size),
		bounded.ReadOnly(errReadOnlyChunk),
		bounded.OnClose(r.finish),
	)
	if err != nil {
		return nil, err
	}
	r.active = ch
	r.activeID = id
	r.activeSize = int64(size)
	r.metrics.opened.Inc()
	return ch, nil
}

// End ends the open chunk and moves the reader past it. Bytes of the payload that were not read are skipped; with
// StrictChunkEnd the skip still happens but End reports ErrProtocol.
func (r *SequentialReader) End() error {
	if r.active == nil {
		return fmt.Errorf("%w: End without Begin", ErrProtocol)
	}
	return r.active.Close()
}

// OpenChunk is Begin.
func (r *SequentialReader) OpenChunk(id chunkid.ID) (*bounded.Channel, error) {
	return r.Begin(id)
}

// CloseChunk is End, except that it is a no-op when no chunk is open.
func (r *SequentialReader) CloseChunk() error {
	if r.active == nil {
		return nil
	}
	return r.active.Close()
}

func (r *SequentialReader) finish() error {
	ch := r.active
	r.active = nil
	unread := r.activeSize - ch.Position()
	r.offset += FrameHeaderSize + r.activeSize
	if _, err := r.rs.Seek(r.base+r.offset, io.SeekStart); err != nil {
		return err
	}
	if unread > 0 {
		log.Debugw("skipped unread chunk bytes", "chunk", r.activeID, "unread", unread)
		if r.opts.StrictChunkEnd {
			return fmt.Errorf("%w: chunk %s ended with %d unread bytes", ErrProtocol, r.activeID, unread)
		}
	}
	return nil
}

// Close releases the open chunk. Calling Close more than once is a no-op.
func (r *SequentialReader) Close() error {
	if r.closed {
		return nil
	}
	err := r.CloseChunk()
	r.closed = true
	return err
}
