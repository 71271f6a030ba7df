package chunkfile

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/multierr"
	"golang.org/x/exp/mmap"

	"github.com/ipfs/go-chunkfile/bounded"
	"github.com/ipfs/go-chunkfile/chunkid"
)

// Reader reads a container with a trailing chunk directory.
//
// The header and the whole directory are loaded when the Reader is created.
// Chunks can then be opened by id in any order, one at a time.
type Reader struct {
	rs      io.ReadSeeker
	closer  io.Closer
	header  Header
	dir     Directory
	opts    Options
	metrics readerMetrics

	active   *bounded.Channel
	activeID chunkid.ID
	closed   bool
}

// NewReader validates the header of the container at the start of rs, loads
// its directory and leaves rs positioned just past the header. The caller
// keeps ownership of rs.
//
// To read a container embedded in a larger stream, pass a bounded.Channel
// starting at the container.
func NewReader(rs io.ReadSeeker, opts ...Option) (*Reader, error) {
	o := ApplyOptions(opts...)
	r := &Reader{
		rs:      rs,
		opts:    o,
		metrics: newReaderMetrics(o.MetricsContext),
	}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

// OpenReader memory-maps the file at path read-only and returns a Reader
// over it. Close unmaps the file.
func OpenReader(path string, opts ...Option) (*Reader, error) {
	f, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(io.NewSectionReader(f, 0, int64(f.Len())), opts...)
	if err != nil {
		return nil, multierr.Append(err, f.Close())
	}
	r.closer = f
	return r, nil
}

func (r *Reader) open() error {
	if _, err := r.rs.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := r.header.ReadFrom(r.rs); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: shorter than the %d byte header", ErrFormat, HeaderSize)
		}
		return fmt.Errorf("reading header: %w", err)
	}
	if err := r.checkHeader(); err != nil {
		return err
	}

	// Bounding the directory read to the container keeps a corrupt chunk
	// count from reading past FileSize.
	section, err := bounded.New(r.rs, r.header.DirectoryOffset, r.header.FileSize-r.header.DirectoryOffset)
	if err != nil {
		return err
	}
	if _, err := r.dir.ReadFrom(section); err != nil {
		return err
	}
	if err := r.checkDirectory(); err != nil {
		return err
	}
	if _, err := r.rs.Seek(HeaderSize, io.SeekStart); err != nil {
		return err
	}
	log.Debugw("opened container for reading", "app", r.header.AppID, "chunks", r.dir.Len(), "size", r.header.FileSize)
	return nil
}

func (r *Reader) checkHeader() error {
	h := r.header
	if h.Magic != chunkid.Magic {
		return fmt.Errorf("%w: bad magic %s", ErrFormat, h.Magic)
	}
	if !r.opts.accepts(h.AppID) {
		return fmt.Errorf("%w: app id %#x is not accepted", ErrFormat, h.AppID)
	}
	if h.FileSize < HeaderSize {
		return fmt.Errorf("%w: file size %d is smaller than the header", ErrFormat, h.FileSize)
	}
	if h.DirectoryOffset < HeaderSize || h.DirectoryOffset > h.FileSize-directoryPreambleSize {
		return fmt.Errorf("%w: directory offset %d outside [%d, %d]", ErrFormat, h.DirectoryOffset, HeaderSize, h.FileSize-directoryPreambleSize)
	}
	end, err := r.rs.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	if end < h.FileSize {
		return fmt.Errorf("%w: truncated, header records %d bytes but only %d are present", ErrFormat, h.FileSize, end)
	}
	return nil
}

// checkDirectory makes sure every chunk, marker included, lies between the
// header and the directory.
func (r *Reader) checkDirectory() error {
	return r.dir.ForEach(func(c Chunk) error {
		if c.Offset < MarkerSize || c.Offset > uint64(r.header.DataSize()) || c.end() > r.header.DirectoryOffset {
			return fmt.Errorf("%w: chunk %s lies outside the data region", ErrFormat, c)
		}
		return nil
	})
}

// Header returns the container header.
func (r *Reader) Header() Header {
	return r.header
}

// Chunks returns every directory entry in the order they were written.
func (r *Reader) Chunks() []Chunk {
	return r.dir.Chunks()
}

// Has reports whether the container holds a chunk with the given id.
func (r *Reader) Has(id chunkid.ID) bool {
	return r.dir.Contains(id)
}

// Find returns the directory entry for id.
func (r *Reader) Find(id chunkid.ID) (Chunk, bool) {
	return r.dir.Find(id)
}

// Lookup returns the directory entry for the chunk called name.
func (r *Reader) Lookup(name string) (Chunk, error) {
	return r.dir.Lookup(name)
}

// OpenChunk returns a channel over the payload of the chunk id. Only one
// chunk may be open at a time; closing the returned channel, or calling
// CloseChunk, releases it.
func (r *Reader) OpenChunk(id chunkid.ID) (*bounded.Channel, error) {
	if r.closed {
		return nil, fmt.Errorf("%w: reader is closed", ErrProtocol)
	}
	if r.active != nil {
		return nil, fmt.Errorf("%w: chunk %s is still open", ErrProtocol, r.activeID)
	}
	if err := chunkid.Validate(id); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	c, ok := r.dir.Find(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if _, err := r.rs.Seek(c.start()-MarkerSize, io.SeekStart); err != nil {
		return nil, err
	}
	marker, err := readMarker(r.rs)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("reading marker of chunk %s: %w", id, err), r.rewind())
	}
	if marker != id {
		r.metrics.mismatches.Inc()
		log.Warnw("chunk marker does not match directory", "chunk", id, "marker", marker)
		err := fmt.Errorf("%w: chunk %s has marker %s at offset %d", ErrFormat, id, marker, c.start()-MarkerSize)
		return nil, multierr.Append(err, r.rewind())
	}

	ch, err := bounded.New(r.rs, c.start(), int64(c.Size),
		bounded.ReadOnly(errReadOnlyChunk),
		bounded.OnClose(r.releaseChunk),
	)
	if err != nil {
		return nil, multierr.Append(err, r.rewind())
	}
	r.active = ch
	r.activeID = id
	r.metrics.opened.Inc()
	return ch, nil
}

// OpenChunkByName is OpenChunk for an encoded name.
func (r *Reader) OpenChunkByName(name string) (*bounded.Channel, error) {
	id, err := chunkid.Encode(name)
	if err != nil {
		return nil, err
	}
	return r.OpenChunk(id)
}

// ReadChunk returns the whole payload of the chunk id.
func (r *Reader) ReadChunk(id chunkid.ID) ([]byte, error) {
	ch, err := r.OpenChunk(id)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, ch.Len())
	_, err = io.ReadFull(ch, buf)
	return buf, multierr.Append(err, ch.Close())
}

func (r *Reader) releaseChunk() error {
	r.active = nil
	r.activeID = 0
	return r.rewind()
}

// rewind puts the stream back at the end of the header, where it rests
// whenever no chunk is open.
func (r *Reader) rewind() error {
	_, err := r.rs.Seek(HeaderSize, io.SeekStart)
	return err
}

// CloseChunk releases the open chunk, if any, and invalidates its channel.
func (r *Reader) CloseChunk() error {
	if r.active == nil {
		return nil
	}
	return r.active.Close()
}

// Close releases the open chunk and the memory map opened by OpenReader.
// Calling Close more than once is a no-op.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	err := r.CloseChunk()
	r.closed = true
	if r.closer != nil {
		err = multierr.Append(err, r.closer.Close())
		r.closer = nil
	}
	return err
}
