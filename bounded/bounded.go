// Package bounded provides a windowed view over a seekable parent stream.
//
// A Channel exposes the byte range [start, start+length) of its parent as a
// stream of its own, with positions relative to start. Each call saves the
// parent's position, moves the parent to the window, performs the operation
// and puts the parent back where it was. Several channels can therefore
// share one parent, and the parent can be used directly between calls, as
// long as nothing runs concurrently.
package bounded

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
)

// ToEnd may be passed as a length to extend a channel to the end of its parent.
const ToEnd int64 = -1

var (
	// ErrClosed is returned by every operation on a closed channel.
	ErrClosed = errors.New("bounded: channel closed")
	// ErrOutOfBounds is returned for positions or lengths outside the window.
	ErrOutOfBounds = errors.New("bounded: out of bounds")
	// ErrInvalidWhence is returned by Seek for an unknown whence.
	ErrInvalidWhence = errors.New("bounded: invalid whence")
	// ErrNotReadable is returned when the parent does not implement io.Reader.
	ErrNotReadable = errors.New("bounded: parent is not readable")
	// ErrNotWritable is returned when the parent does not implement io.Writer.
	ErrNotWritable = errors.New("bounded: parent is not writable")
	// ErrNotResizable is returned by SetLength on a fixed channel.
	ErrNotResizable = errors.New("bounded: channel has a fixed length")
	// ErrConcurrentUse is returned when a call overlaps another call on the
	// same channel. Channels are strictly single-threaded.
	ErrConcurrentUse = errors.New("bounded: concurrent use of channel")
)

var (
	_ io.ReadWriteSeeker = (*Channel)(nil)
	_ io.ReaderAt        = (*Channel)(nil)
	_ io.WriterAt        = (*Channel)(nil)
	_ io.ByteReader      = (*Channel)(nil)
	_ io.Closer          = (*Channel)(nil)
)

// Channel is a window over a parent io.Seeker. The parent must also be an
// io.Reader for reads and an io.Writer for writes.
type Channel struct {
	parent   io.Seeker
	r        io.Reader
	w        io.Writer
	start    int64
	length   int64
	pos      int64
	growable bool
	denied   error
	onClose  func() error

	busy   atomic.Bool
	closed atomic.Bool
}

// Option configures a Channel.
type Option func(*Channel)

// Growable makes the channel length follow the bytes written to it, starting
// from the length given to New. Growable channels can also be resized with
// SetLength.
func Growable() Option {
	return func(c *Channel) {
		c.growable = true
	}
}

// ReadOnly refuses writes even when the parent implements io.Writer. Write
// and WriteAt then fail with an error wrapping ErrNotWritable and,
// when it is not nil, reason.
func ReadOnly(reason error) Option {
	return func(c *Channel) {
		c.w = nil
		c.denied = reason
	}
}

// OnClose registers fn to be called once, the first time the channel is closed.
func OnClose(fn func() error) Option {
	return func(c *Channel) {
		c.onClose = fn
	}
}

// New returns a channel over parent starting at the absolute offset start.
// The length is either a byte count or ToEnd. When the parent cannot be
// written to, the length is clamped to the bytes physically present.
func New(parent io.Seeker, start, length int64, opts ...Option) (*Channel, error) {
	if start < 0 {
		return nil, fmt.Errorf("%w: negative start %d", ErrOutOfBounds, start)
	}
	if length < 0 && length != ToEnd {
		return nil, fmt.Errorf("%w: negative length %d", ErrOutOfBounds, length)
	}
	c := &Channel{
		parent: parent,
		start:  start,
		length: length,
	}
	c.r, _ = parent.(io.Reader)
	c.w, _ = parent.(io.Writer)
	for _, opt := range opts {
		opt(c)
	}

	if length == ToEnd || c.w == nil {
		end, err := parentLen(parent)
		if err != nil {
			return nil, err
		}
		avail := end - start
		if avail < 0 {
			avail = 0
		}
		if length == ToEnd || length > avail {
			c.length = avail
		}
	}
	return c, nil
}

// NewRelative is like New, but start is taken relative to the parent's
// current position.
func NewRelative(parent io.Seeker, offset, length int64, opts ...Option) (*Channel, error) {
	cur, err := parent.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	return New(parent, cur+offset, length, opts...)
}

// Start returns the absolute parent offset of the first byte of the window.
func (c *Channel) Start() int64 { return c.start }

// Len returns the current length of the window.
func (c *Channel) Len() int64 { return c.length }

// Position returns the current position relative to Start.
func (c *Channel) Position() int64 { return c.pos }

// CanRead reports whether the parent supports reading.
func (c *Channel) CanRead() bool { return c.r != nil && !c.closed.Load() }

// CanWrite reports whether the parent supports writing.
func (c *Channel) CanWrite() bool { return c.w != nil && !c.closed.Load() }

// CanSeek always reports true for an open channel; seeking never touches the parent.
func (c *Channel) CanSeek() bool { return !c.closed.Load() }

// Closed reports whether Close has been called.
func (c *Channel) Closed() bool { return c.closed.Load() }

func (c *Channel) enter() error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrConcurrentUse
	}
	if c.closed.Load() {
		c.busy.Store(false)
		return ErrClosed
	}
	return nil
}

func (c *Channel) leave() {
	c.busy.Store(false)
}

// at moves the parent to the local offset off, runs fn, and restores the
// parent to wherever it was before.
func (c *Channel) at(off int64, fn func() (int, error)) (n int, err error) {
	orig, err := c.parent.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	if _, err = c.parent.Seek(c.start+off, io.SeekStart); err != nil {
		return 0, err
	}
	n, err = fn()
	if _, serr := c.parent.Seek(orig, io.SeekStart); serr != nil {
		err = multierr.Append(err, serr)
	}
	return n, err
}

func (c *Channel) Read(p []byte) (int, error) {
	if err := c.enter(); err != nil {
		return 0, err
	}
	defer c.leave()
	if c.r == nil {
		return 0, ErrNotReadable
	}
	remaining := c.length - c.pos
	if remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := c.at(c.pos, func() (int, error) {
		return c.r.Read(p)
	})
	c.pos += int64(n)
	return n, err
}

// ReadByte reads a single byte at the current position.
func (c *Channel) ReadByte() (byte, error) {
	var b [1]byte
	n, err := c.Read(b[:])
	if n == 1 {
		return b[0], nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return 0, err
}

// ReadAt reads len(p) bytes at the local offset off without moving the
// channel position. It returns io.EOF when the window ends before p is full.
func (c *Channel) ReadAt(p []byte, off int64) (int, error) {
	if err := c.enter(); err != nil {
		return 0, err
	}
	defer c.leave()
	if c.r == nil {
		return 0, ErrNotReadable
	}
	if off < 0 {
		return 0, fmt.Errorf("%w: negative offset %d", ErrOutOfBounds, off)
	}
	if off >= c.length {
		return 0, io.EOF
	}
	short := false
	if avail := c.length - off; int64(len(p)) > avail {
		p = p[:avail]
		short = true
	}
	n, err := c.at(off, func() (int, error) {
		return io.ReadFull(c.r, p)
	})
	if err == nil && short {
		err = io.EOF
	}
	return n, err
}

func (c *Channel) Write(p []byte) (int, error) {
	if err := c.enter(); err != nil {
		return 0, err
	}
	defer c.leave()
	n, err := c.writeAt(p, c.pos)
	c.pos += int64(n)
	return n, err
}

// WriteAt writes p at the local offset off without moving the channel
// position. Growable channels may be extended from their current end but
// cannot have gaps written into them.
func (c *Channel) WriteAt(p []byte, off int64) (int, error) {
	if err := c.enter(); err != nil {
		return 0, err
	}
	defer c.leave()
	if off < 0 || off > c.length {
		return 0, fmt.Errorf("%w: offset %d outside [0, %d]", ErrOutOfBounds, off, c.length)
	}
	return c.writeAt(p, off)
}

func (c *Channel) notWritable() error {
	if c.denied != nil {
		return fmt.Errorf("%w: %w", c.denied, ErrNotWritable)
	}
	return ErrNotWritable
}

func (c *Channel) writeAt(p []byte, off int64) (int, error) {
	if c.w == nil {
		return 0, c.notWritable()
	}
	var short bool
	if !c.growable {
		remaining := c.length - off
		if remaining < 0 {
			remaining = 0
		}
		if int64(len(p)) > remaining {
			p = p[:remaining]
			short = true
		}
	}
	var n int
	var err error
	if len(p) > 0 {
		n, err = c.at(off, func() (int, error) {
			return c.w.Write(p)
		})
	}
	if end := off + int64(n); c.growable && end > c.length {
		c.length = end
	}
	if err == nil && short {
		err = fmt.Errorf("%w: %w", ErrOutOfBounds, io.ErrShortWrite)
	}
	return n, err
}

// Seek sets the position for the next Read or Write. Targets past the end of
// the window are clamped to Len; negative targets are an error.
func (c *Channel) Seek(offset int64, whence int) (int64, error) {
	if err := c.enter(); err != nil {
		return 0, err
	}
	defer c.leave()
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = c.pos + offset
	case io.SeekEnd:
		abs = c.length + offset
	default:
		return c.pos, fmt.Errorf("%w: %d", ErrInvalidWhence, whence)
	}
	if abs < 0 {
		return c.pos, fmt.Errorf("%w: negative position %d", ErrOutOfBounds, abs)
	}
	if abs > c.length {
		abs = c.length
	}
	c.pos = abs
	return abs, nil
}

// SetLength resizes a growable channel. The length is clamped to the bytes
// the parent physically holds past Start, and the position is clamped to the
// new length.
func (c *Channel) SetLength(n int64) error {
	if err := c.enter(); err != nil {
		return err
	}
	defer c.leave()
	if !c.growable || c.w == nil {
		return ErrNotResizable
	}
	if n < 0 {
		return fmt.Errorf("%w: negative length %d", ErrOutOfBounds, n)
	}
	end, err := parentLen(c.parent)
	if err != nil {
		return err
	}
	if capacity := end - c.start; n > capacity {
		n = capacity
	}
	if n < 0 {
		n = 0
	}
	c.length = n
	if c.pos > n {
		c.pos = n
	}
	return nil
}

// Close invalidates the channel and runs the OnClose hook, if any. Closing
// an already closed channel is a no-op. The parent is left open.
func (c *Channel) Close() error {
	if c.closed.Load() {
		return nil
	}
	if !c.busy.CompareAndSwap(false, true) {
		return ErrConcurrentUse
	}
	first := c.closed.CompareAndSwap(false, true)
	c.busy.Store(false)
	if first && c.onClose != nil {
		return c.onClose()
	}
	return nil
}

// parentLen returns the physical length of s, leaving its position unchanged.
func parentLen(s io.Seeker) (int64, error) {
	orig, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	end, err := s.Seek(0, io.SeekEnd)
	if _, serr := s.Seek(orig, io.SeekStart); serr != nil {
		err = multierr.Append(err, serr)
	}
	return end, err
}
