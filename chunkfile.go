package chunkfile

import (
	"encoding/binary"
	"io"

	logging "github.com/ipfs/go-log/v2"

	"github.com/ipfs/go-chunkfile/chunkid"
)

var log = logging.Logger("chunkfile")

const (
	// HeaderSize is the fixed size of the container header in bytes.
	HeaderSize = 32
	// MarkerSize is the size of the in-band id marker that precedes every chunk payload.
	MarkerSize = 8
	// ChunkRecordSize is the size of one directory entry.
	ChunkRecordSize = 20
	// directoryPreambleSize covers the directory marker and the chunk count.
	directoryPreambleSize = 12

	// fileSizeOffset is where the patched FileSize lives within the header.
	fileSizeOffset = 16
)

// Header is the fixed-size container header.
type Header struct {
	// Magic identifies the container format and its version.
	Magic chunkid.ID
	// AppID is chosen by the application and checked by readers against the
	// set of ids they accept.
	AppID uint64
	// FileSize is the total length of the container, including the directory.
	FileSize int64
	// DirectoryOffset is the offset of the directory marker from the start of the container.
	DirectoryOffset int64
}

// NewHeader returns the header written when a container is created. The
// size and directory offset are placeholders until the writer is finalized.
func NewHeader(appID uint64) Header {
	return Header{
		Magic: chunkid.Magic,
		AppID: appID,
	}
}

// WriteTo serializes this header as bytes and writes them using the given io.Writer.
func (h Header) WriteTo(w io.Writer) (int64, error) {
	var buf [HeaderSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(h.Magic))
	binary.LittleEndian.PutUint64(buf[8:16], h.AppID)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(h.FileSize))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(h.DirectoryOffset))
	n, err := w.Write(buf[:])
	return int64(n), err
}

// ReadFrom populates fields of this header from the given r.
func (h *Header) ReadFrom(r io.Reader) (int64, error) {
	var buf [HeaderSize]byte
	n, err := io.ReadFull(r, buf[:])
	if err != nil {
		return int64(n), err
	}
	h.Magic = chunkid.ID(binary.LittleEndian.Uint64(buf[0:8]))
	h.AppID = binary.LittleEndian.Uint64(buf[8:16])
	h.FileSize = int64(binary.LittleEndian.Uint64(buf[16:24]))
	h.DirectoryOffset = int64(binary.LittleEndian.Uint64(buf[24:32]))
	return int64(n), nil
}

// DataSize returns the number of bytes between the header and the directory.
func (h Header) DataSize() int64 {
	return h.DirectoryOffset - HeaderSize
}

func writeMarker(w io.Writer, id chunkid.ID) error {
	var buf [MarkerSize]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(id))
	_, err := w.Write(buf[:])
	return err
}

func readMarker(r io.Reader) (chunkid.ID, error) {
	var buf [MarkerSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return chunkid.ID(binary.LittleEndian.Uint64(buf[:])), nil
}
