package chunkfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ipfs/go-chunkfile/chunkid"
)

var (
	idA = chunkid.MustEncode("CHUNK__A")
	idB = chunkid.MustEncode("CHUNK__B")
)

func TestChunk_WriteTo(t *testing.T) {
	c := Chunk{ID: idA, Size: 0x0a0b, Offset: 0x0102}
	buf := &bytes.Buffer{}
	n, err := c.WriteTo(buf)
	require.NoError(t, err)
	assert.EqualValues(t, ChunkRecordSize, n)
	assert.Equal(t, []byte{
		'C', 'H', 'U', 'N', 'K', '_', '_', 'A',
		0x0b, 0x0a, 0x00, 0x00,
		0x02, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}, buf.Bytes())

	var got Chunk
	_, err = got.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, c, got)
	assert.Equal(t, HeaderSize+int64(0x0102), got.start())
	assert.Equal(t, got.start()+0x0a0b, got.end())
}

func TestChunk_EqualComparesIDOnly(t *testing.T) {
	assert.True(t, Chunk{ID: idA, Size: 1}.Equal(Chunk{ID: idA, Size: 2, Offset: 8}))
	assert.False(t, Chunk{ID: idA}.Equal(Chunk{ID: idB}))
}

func TestDirectory(t *testing.T) {
	var d Directory
	assert.Zero(t, d.Len())
	_, ok := d.Find(idA)
	assert.False(t, ok)

	d.Add(Chunk{ID: idA, Size: 1, Offset: 8})
	d.Add(Chunk{ID: idB, Size: 2, Offset: 17})
	d.Add(Chunk{ID: idA, Size: 3, Offset: 27})

	assert.Equal(t, 3, d.Len())
	assert.True(t, d.Contains(idB))
	c, ok := d.Find(idA)
	require.True(t, ok)
	assert.EqualValues(t, 3, c.Size, "last entry wins")

	c, err := d.Lookup("chunk__b")
	require.NoError(t, err)
	assert.EqualValues(t, 17, c.Offset)
	_, err = d.Lookup("CHUNK__C")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = d.Lookup("short")
	assert.ErrorIs(t, err, chunkid.ErrNameTooShort)

	chunks := d.Chunks()
	chunks[0].Size = 100
	c, _ = d.Find(idB)
	assert.EqualValues(t, 2, c.Size)
	assert.EqualValues(t, 1, d.Chunks()[0].Size, "Chunks returns a copy")

	stop := errors.New("stop")
	var seen int
	err = d.ForEach(func(Chunk) error {
		seen++
		if seen == 2 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 2, seen)
}

func TestDirectory_WriteToReadFrom(t *testing.T) {
	var d Directory
	d.Add(Chunk{ID: idA, Size: 1, Offset: 8})
	d.Add(Chunk{ID: idB, Size: 0, Offset: 17})

	buf := &bytes.Buffer{}
	n, err := d.WriteTo(buf)
	require.NoError(t, err)
	assert.Equal(t, d.EncodedSize(), n)
	assert.EqualValues(t, directoryPreambleSize+2*ChunkRecordSize, n)

	var got Directory
	rn, err := got.ReadFrom(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, n, rn)
	assert.Equal(t, d.Chunks(), got.Chunks())
	assert.True(t, got.Contains(idB))
}

func TestDirectory_ReadFromRejectsCorruptInput(t *testing.T) {
	encode := func(marker chunkid.ID, count int32, records ...Chunk) []byte {
		buf := make([]byte, directoryPreambleSize)
		binary.LittleEndian.PutUint64(buf[0:8], uint64(marker))
		binary.LittleEndian.PutUint32(buf[8:12], uint32(count))
		w := bytes.NewBuffer(buf)
		for _, r := range records {
			_, _ = r.WriteTo(w)
		}
		return w.Bytes()
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"Empty", nil},
		{"ShortPreamble", encode(chunkid.DirectoryMarker, 0)[:10]},
		{"BadMarker", encode(idA, 0)},
		{"NegativeCount", encode(chunkid.DirectoryMarker, -1)},
		{"MissingRecords", encode(chunkid.DirectoryMarker, 2, Chunk{ID: idA, Offset: 8})},
		{"NegativeSize", encode(chunkid.DirectoryMarker, 1, Chunk{ID: idA, Size: -1, Offset: 8})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Directory
			_, err := d.ReadFrom(bytes.NewReader(tt.data))
			assert.ErrorIs(t, err, ErrFormat)
		})
	}
}
