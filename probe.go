package chunkfile

import (
	"bytes"
	"io"

	"github.com/ipfs/go-chunkfile/bounded"
	"github.com/ipfs/go-chunkfile/chunkid"
)

// Probe reports whether rs starts with a container header carrying one of
// acceptedAppIDs, or any app id when none are given. Only the magic and the
// app id are checked. Probe never fails: read errors count as "not a
// container", and the position of rs is left unchanged.
func Probe(rs io.ReadSeeker, acceptedAppIDs ...uint64) bool {
	section, err := bounded.New(rs, 0, HeaderSize)
	if err != nil {
		return false
	}
	var h Header
	if _, err := h.ReadFrom(section); err != nil {
		return false
	}
	return h.Magic == chunkid.Magic && ApplyOptions(AcceptAppIDs(acceptedAppIDs...)).accepts(h.AppID)
}

// ProbeBytes is Probe for an in-memory prefix of a file.
func ProbeBytes(b []byte, acceptedAppIDs ...uint64) bool {
	return Probe(bytes.NewReader(b), acceptedAppIDs...)
}
