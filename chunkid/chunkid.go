// Package chunkid derives the 64-bit identifiers used to key chunks in a
// chunkfile container.
//
// An identifier is an 8 character ASCII name, folded to upper case and packed
// one byte per lane into a little-endian uint64, with lane 0 holding the
// first character. The same value serves as the directory key and as the
// in-band marker written in front of every chunk payload.
package chunkid

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// NameLen is the number of significant characters in a chunk name.
const NameLen = 8

var (
	// ErrNameTooShort is returned when a name has fewer than NameLen characters.
	ErrNameTooShort = errors.New("chunkid: name shorter than 8 characters")
	// ErrInvalidName is returned when a name contains NUL or non-ASCII bytes.
	ErrInvalidName = errors.New("chunkid: name must be printable ASCII")
	// ErrZero is returned by Validate for the zero identifier.
	ErrZero = errors.New("chunkid: zero identifier")
	// ErrReserved is returned by Validate for identifiers reserved by the container format.
	ErrReserved = errors.New("chunkid: reserved identifier")
)

// ID is an encoded chunk name.
type ID uint64

var (
	// Magic is the header magic of a chunkfile container. It doubles as the
	// format version tag; a new layout gets a new magic.
	Magic = MustEncode("CHNKFILE")
	// DirectoryMarker prefixes the trailing chunk directory.
	DirectoryMarker = MustEncode("CHNKDIR0")
)

// Encode returns the identifier for name. Only the first NameLen bytes of name
// are significant; shorter names are rejected.
func Encode(name string) (ID, error) {
	if len(name) < NameLen {
		return 0, fmt.Errorf("%w: %q", ErrNameTooShort, name)
	}
	var b [NameLen]byte
	for i := 0; i < NameLen; i++ {
		c := name[i]
		if c == 0 || c > 0x7e || c < 0x20 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
		if 'a' <= c && c <= 'z' {
			c -= 'a' - 'A'
		}
		b[i] = c
	}
	return ID(binary.LittleEndian.Uint64(b[:])), nil
}

// MustEncode is like Encode but panics if name cannot be encoded.
// It is meant for package level identifiers.
func MustEncode(name string) ID {
	id, err := Encode(name)
	if err != nil {
		panic(err)
	}
	return id
}

// IsReserved reports whether id is used by the container format itself.
func IsReserved(id ID) bool {
	return id == Magic || id == DirectoryMarker
}

// Validate checks that id may be used for an application chunk.
func Validate(id ID) error {
	switch {
	case id == 0:
		return ErrZero
	case IsReserved(id):
		return fmt.Errorf("%w: %s", ErrReserved, id)
	}
	return nil
}

// Name returns the packed characters of id. Lanes that do not hold a
// printable ASCII character are rendered as '.'.
func (id ID) Name() string {
	var b [NameLen]byte
	binary.LittleEndian.PutUint64(b[:], uint64(id))
	var sb strings.Builder
	sb.Grow(NameLen)
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			c = '.'
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// String is meant for diagnostics only.
func (id ID) String() string {
	return fmt.Sprintf("%s(%#016x)", id.Name(), uint64(id))
}
