package chunkfile

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ipfs/go-chunkfile/chunkid"
)

// Chunk is a directory entry.
type Chunk struct {
	// ID keys the chunk in the directory and is written as the marker in
	// front of its payload.
	ID chunkid.ID
	// Size is the payload length in bytes.
	Size int32
	// Offset is the position of the first payload byte, relative to the end
	// of the container header. The marker occupies the MarkerSize bytes
	// before it.
	Offset uint64
}

// Equal reports whether c and o describe the same chunk. Chunks are
// identified by id alone.
func (c Chunk) Equal(o Chunk) bool {
	return c.ID == o.ID
}

// start returns the absolute container offset of the payload.
func (c Chunk) start() int64 {
	return HeaderSize + int64(c.Offset)
}

// end returns the absolute container offset one past the payload.
func (c Chunk) end() int64 {
	return c.start() + int64(c.Size)
}

func (c Chunk) String() string {
	return fmt.Sprintf("%s size=%d offset=%d", c.ID, c.Size, c.Offset)
}

// WriteTo writes the 20 byte directory record of c.
func (c Chunk) WriteTo(w io.Writer) (int64, error) {
	var buf [ChunkRecordSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(c.ID))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(c.Size))
	binary.LittleEndian.PutUint64(buf[12:20], c.Offset)
	n, err := w.Write(buf[:])
	return int64(n), err
}

// ReadFrom reads a 20 byte directory record into c.
func (c *Chunk) ReadFrom(r io.Reader) (int64, error) {
	var buf [ChunkRecordSize]byte
	n, err := io.ReadFull(r, buf[:])
	if err != nil {
		return int64(n), err
	}
	c.ID = chunkid.ID(binary.LittleEndian.Uint64(buf[0:8]))
	c.Size = int32(binary.LittleEndian.Uint32(buf[8:12]))
	c.Offset = binary.LittleEndian.Uint64(buf[12:20])
	return int64(n), nil
}

// Directory is an ordered collection of chunks. Lookups by id go through a
// map; when the same id was added more than once the last entry wins, while
// Chunks and ForEach still report every entry in insertion order.
//
// The zero value is an empty directory.
type Directory struct {
	chunks []Chunk
	byID   map[chunkid.ID]int
}

// Add appends c to the directory.
func (d *Directory) Add(c Chunk) {
	if d.byID == nil {
		d.byID = make(map[chunkid.ID]int)
	}
	d.byID[c.ID] = len(d.chunks)
	d.chunks = append(d.chunks, c)
}

// Find returns the chunk with the given id.
func (d *Directory) Find(id chunkid.ID) (Chunk, bool) {
	i, ok := d.byID[id]
	if !ok {
		return Chunk{}, false
	}
	return d.chunks[i], true
}

// Lookup encodes name and returns the matching chunk, or an error wrapping
// ErrNotFound.
func (d *Directory) Lookup(name string) (Chunk, error) {
	id, err := chunkid.Encode(name)
	if err != nil {
		return Chunk{}, err
	}
	c, ok := d.Find(id)
	if !ok {
		return Chunk{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c, nil
}

// Contains reports whether a chunk with the given id exists.
func (d *Directory) Contains(id chunkid.ID) bool {
	_, ok := d.byID[id]
	return ok
}

// Len returns the number of entries, duplicates included.
func (d *Directory) Len() int {
	return len(d.chunks)
}

// Chunks returns a copy of the entries in insertion order.
func (d *Directory) Chunks() []Chunk {
	out := make([]Chunk, len(d.chunks))
	copy(out, d.chunks)
	return out
}

// ForEach calls fn for every entry in insertion order. Iteration stops at
// the first error, which is returned.
func (d *Directory) ForEach(fn func(Chunk) error) error {
	for _, c := range d.chunks {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

// EncodedSize returns the number of bytes WriteTo produces.
func (d *Directory) EncodedSize() int64 {
	return directoryPreambleSize + int64(len(d.chunks))*ChunkRecordSize
}

// WriteTo writes the directory marker, the chunk count and every record.
func (d *Directory) WriteTo(w io.Writer) (int64, error) {
	var pre [directoryPreambleSize]byte
	binary.LittleEndian.PutUint64(pre[0:8], uint64(chunkid.DirectoryMarker))
	binary.LittleEndian.PutUint32(pre[8:12], uint32(len(d.chunks)))
	wn, err := w.Write(pre[:])
	n := int64(wn)
	if err != nil {
		return n, fmt.Errorf("writing directory preamble: %w", err)
	}
	for i, c := range d.chunks {
		cn, err := c.WriteTo(w)
		n += cn
		if err != nil {
			return n, fmt.Errorf("writing directory entry %d: %w", i, err)
		}
	}
	return n, nil
}

// ReadFrom replaces the contents of d with the directory read from r.
// Records are decoded one at a time, so a corrupt count runs into the end of
// r instead of allocating for it up front.
func (d *Directory) ReadFrom(r io.Reader) (int64, error) {
	var pre [directoryPreambleSize]byte
	rn, err := io.ReadFull(r, pre[:])
	n := int64(rn)
	if err != nil {
		return n, fmt.Errorf("%w: reading directory preamble: %w", ErrFormat, err)
	}
	if marker := chunkid.ID(binary.LittleEndian.Uint64(pre[0:8])); marker != chunkid.DirectoryMarker {
		return n, fmt.Errorf("%w: bad directory marker %s", ErrFormat, marker)
	}
	count := int32(binary.LittleEndian.Uint32(pre[8:12]))
	if count < 0 {
		return n, fmt.Errorf("%w: negative chunk count %d", ErrFormat, count)
	}

	*d = Directory{byID: make(map[chunkid.ID]int)}
	for i := int32(0); i < count; i++ {
		var c Chunk
		cn, err := c.ReadFrom(r)
		n += cn
		if err != nil {
			return n, fmt.Errorf("%w: reading directory entry %d of %d: %w", ErrFormat, i, count, err)
		}
		if c.Size < 0 {
			return n, fmt.Errorf("%w: chunk %s has negative size %d", ErrFormat, c.ID, c.Size)
		}
		d.Add(c)
	}
	return n, nil
}
