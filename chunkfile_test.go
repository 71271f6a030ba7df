package chunkfile

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ipfs/go-chunkfile/chunkid"
)

func TestHeader_WriteTo(t *testing.T) {
	tests := []struct {
		name   string
		header Header
		want   []byte
	}{
		{
			"PlaceholderHeaderHasZeroSizeAndOffset",
			NewHeader(0x0102030405060708),
			[]byte{
				'C', 'H', 'N', 'K', 'F', 'I', 'L', 'E',
				0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01,
				0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
			},
		},
		{
			"FinalizedHeaderIsLittleEndian",
			Header{Magic: chunkid.Magic, AppID: 1, FileSize: 0x1234, DirectoryOffset: 0x56},
			[]byte{
				'C', 'H', 'N', 'K', 'F', 'I', 'L', 'E',
				0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
				0x34, 0x12, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
				0x56, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			n, err := tt.header.WriteTo(buf)
			require.NoError(t, err)
			assert.EqualValues(t, HeaderSize, n)
			assert.Equal(t, tt.want, buf.Bytes())

			var got Header
			n, err = got.ReadFrom(bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)
			assert.EqualValues(t, HeaderSize, n)
			assert.Equal(t, tt.header, got)
		})
	}
}

func TestHeader_ReadFromShortInput(t *testing.T) {
	var h Header
	n, err := h.ReadFrom(bytes.NewReader(make([]byte, HeaderSize-1)))
	assert.EqualValues(t, HeaderSize-1, n)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestHeader_DataSize(t *testing.T) {
	h := Header{DirectoryOffset: HeaderSize + 100}
	assert.EqualValues(t, 100, h.DataSize())
}

func TestMarker(t *testing.T) {
	buf := &bytes.Buffer{}
	id := chunkid.MustEncode("CHUNK__A")
	require.NoError(t, writeMarker(buf, id))
	assert.Equal(t, "CHUNK__A", buf.String())

	got, err := readMarker(buf)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = readMarker(buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestOptions_Accepts(t *testing.T) {
	assert.True(t, ApplyOptions().accepts(42))

	o := ApplyOptions(AcceptAppIDs(1, 2))
	assert.True(t, o.accepts(1))
	assert.True(t, o.accepts(2))
	assert.False(t, o.accepts(3))
}
