package chunkid_test

import (
	"encoding/binary"
	"testing"

	"github.com/ipfs/go-chunkfile/chunkid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{
			name: "ExactLengthIsPackedAsIs",
			in:   "ABCDEFGH",
			want: "ABCDEFGH",
		},
		{
			name: "LowerCaseIsFoldedToUpper",
			in:   "abcdefgh",
			want: "ABCDEFGH",
		},
		{
			name: "LongerNameIsTruncated",
			in:   "ABCDEFGHIJ",
			want: "ABCDEFGH",
		},
		{
			name: "DigitsAndPunctuationAreKept",
			in:   "data_0-1",
			want: "DATA_0-1",
		},
		{
			name:    "ShortNameIsRejected",
			in:      "AB",
			wantErr: chunkid.ErrNameTooShort,
		},
		{
			name:    "EmptyNameIsRejected",
			in:      "",
			wantErr: chunkid.ErrNameTooShort,
		},
		{
			name:    "NulIsRejected",
			in:      "ABC\x00EFGH",
			wantErr: chunkid.ErrInvalidName,
		},
		{
			name:    "NonASCIIIsRejected",
			in:      "ÄBCDEFGH",
			wantErr: chunkid.ErrInvalidName,
		},
		{
			name: "OnlyFirstEightBytesAreChecked",
			in:   "ABCDEFGH\x00",
			want: "ABCDEFGH",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := chunkid.Encode(tt.in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Name())
		})
	}
}

func TestEncode_CaseInsensitive(t *testing.T) {
	upper, err := chunkid.Encode("ABCDEFGH")
	require.NoError(t, err)
	lower, err := chunkid.Encode("abcdefgh")
	require.NoError(t, err)
	mixed, err := chunkid.Encode("aBcDeFgH")
	require.NoError(t, err)
	assert.Equal(t, upper, lower)
	assert.Equal(t, upper, mixed)
}

func TestEncode_LaneZeroIsFirstCharacter(t *testing.T) {
	id := chunkid.MustEncode("ABCDEFGH")
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(id))
	assert.Equal(t, []byte("ABCDEFGH"), b[:])
	assert.EqualValues(t, 'A', uint64(id)&0xff)
	assert.EqualValues(t, 'H', uint64(id)>>56)
}

func TestMustEncodePanicsOnShortName(t *testing.T) {
	assert.Panics(t, func() { chunkid.MustEncode("SHORT") })
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		id      chunkid.ID
		wantErr error
	}{
		{"ApplicationIDIsValid", chunkid.MustEncode("DATA0000"), nil},
		{"ZeroIsInvalid", 0, chunkid.ErrZero},
		{"MagicIsReserved", chunkid.Magic, chunkid.ErrReserved},
		{"DirectoryMarkerIsReserved", chunkid.DirectoryMarker, chunkid.ErrReserved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := chunkid.Validate(tt.id)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestIsReserved_IsCaseInsensitive(t *testing.T) {
	assert.True(t, chunkid.IsReserved(chunkid.MustEncode("chnkfile")))
	assert.True(t, chunkid.IsReserved(chunkid.MustEncode("ChnkDir0")))
	assert.False(t, chunkid.IsReserved(chunkid.MustEncode("CHNKDIR1")))
}

func TestID_String(t *testing.T) {
	id := chunkid.MustEncode("DATA0000")
	assert.Contains(t, id.String(), "DATA0000")
	assert.Equal(t, "........", chunkid.ID(0).Name())
}
