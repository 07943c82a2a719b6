package tiff

import (
	"encoding/binary"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankit-chaubey/exif-surgery/internal/testutil"
)

func formatted(s *Structure) map[Group]map[uint16]string {
	out := map[Group]map[uint16]string{}
	for _, g := range Groups {
		d := s.IFDs[g]
		if d.Len() == 0 {
			continue
		}
		out[g] = map[uint16]string{}
		for _, id := range d.IDs() {
			out[g][id] = d.Entries[id].Format(s.Order)
		}
	}
	return out
}

func TestEncodeRoundTrip(t *testing.T) {
	for _, order := range []testutil.Order{binary.BigEndian, binary.LittleEndian} {
		t.Run(order.String(), func(t *testing.T) {
			s, err := Parse(sampleStructure(order), -1, zerolog.Nop())
			require.NoError(t, err)
			s.IFD(GroupThumbnail).Delete(TagJPEGInterchange)
			s.IFD(GroupThumbnail).Delete(TagJPEGInterchangeLength)

			enc, err := s.Encode(EncodeOptions{})
			require.NoError(t, err)
			assert.Equal(t, uint32(HeaderSize), enc.FirstIFD)

			back, err := Parse(enc.Bytes, -1, zerolog.Nop())
			require.NoError(t, err)
			assert.Equal(t, formatted(s), formatted(back))

			again, err := back.Encode(EncodeOptions{})
			require.NoError(t, err)
			assert.Equal(t, enc.Bytes, again.Bytes)
		})
	}
}

func TestEncodeCanonicalizesInlineValues(t *testing.T) {
	b := testutil.NewExif(binary.BigEndian).
		Raw(testutil.Primary, testutil.RawEntry{ID: 0x010F, Type: uint16(ASCII), Count: 4, Value: []byte("abc\x00"), OutOfLine: true}).
		Build()
	s, err := Parse(b, -1, zerolog.Nop())
	require.NoError(t, err)
	enc, err := s.Encode(EncodeOptions{})
	require.NoError(t, err)
	assert.Less(t, len(enc.Bytes), len(b))

	back, err := Parse(enc.Bytes, -1, zerolog.Nop())
	require.NoError(t, err)
	e, ok := back.Lookup(GroupPrimary, 0x010F)
	require.True(t, ok)
	assert.Equal(t, "abc", e.Format(back.Order))
}

func TestEncodeThumbnail(t *testing.T) {
	thumb := []byte{0xFF, 0xD8, 0xAA, 0xBB, 0xCC, 0xFF, 0xD9}
	b := testutil.NewExif(binary.LittleEndian).
		ASCII(testutil.Primary, 0x010F, "Canon").
		ThumbnailJPEG(thumb).
		Build()
	s, err := Parse(b, -1, zerolog.Nop())
	require.NoError(t, err)

	t.Run("Relocated", func(t *testing.T) {
		enc, err := s.Encode(EncodeOptions{Thumbnail: thumb})
		require.NoError(t, err)
		back, err := Parse(enc.Bytes, -1, zerolog.Nop())
		require.NoError(t, err)
		regions := back.DataRegions()
		require.Len(t, regions, 1)
		assert.Equal(t, int64(enc.ThumbnailOffset), regions[0].Offset)
		assert.Equal(t, thumb, enc.Bytes[regions[0].Offset:regions[0].End()])
	})

	t.Run("DroppedWithoutData", func(t *testing.T) {
		enc, err := s.Encode(EncodeOptions{})
		require.NoError(t, err)
		back, err := Parse(enc.Bytes, -1, zerolog.Nop())
		require.NoError(t, err)
		assert.Empty(t, back.DataRegions())
	})

	t.Run("Strips", func(t *testing.T) {
		strips := make([]byte, 48)
		enc, err := s.Encode(EncodeOptions{Thumbnail: strips, StripCounts: []uint32{24, 24}})
		require.NoError(t, err)
		back, err := Parse(enc.Bytes, -1, zerolog.Nop())
		require.NoError(t, err)
		regions := back.DataRegions()
		require.Len(t, regions, 2)
		assert.Equal(t, int64(enc.ThumbnailOffset), regions[0].Offset)
		assert.Equal(t, regions[0].End(), regions[1].Offset)
		_, ok := back.Lookup(GroupThumbnail, TagJPEGInterchange)
		assert.False(t, ok)
	})
}

func TestEncodePointers(t *testing.T) {
	s := NewStructure(binary.BigEndian)
	e, err := Encode(def(t, "GPSLatitudeRef"), "S", s.Order)
	require.NoError(t, err)
	s.IFD(GroupGPS).Set(e)

	enc, err := s.Encode(EncodeOptions{})
	require.NoError(t, err)
	back, err := Parse(enc.Bytes, -1, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 0, back.IFDs[GroupExif].Len())
	got, ok := back.Lookup(GroupGPS, 0x0001)
	require.True(t, ok)
	assert.Equal(t, "S", got.Format(back.Order))

	r := NewReader(enc.Bytes, binary.BigEndian)
	count, _ := r.Uint16(HeaderSize)
	assert.Equal(t, uint16(1), count, "primary holds only the GPS pointer")
}

func TestEncodeEmpty(t *testing.T) {
	enc, err := NewStructure(binary.LittleEndian).Encode(EncodeOptions{})
	require.NoError(t, err)
	assert.Len(t, enc.Bytes, HeaderSize+2+4)
}

func TestEncodeAppendMode(t *testing.T) {
	s, err := Parse(sampleStructure(binary.BigEndian), -1, zerolog.Nop())
	require.NoError(t, err)
	enc, err := s.Encode(EncodeOptions{Base: 100, NoHeader: true, InPlace: true})
	require.NoError(t, err)
	assert.Equal(t, uint32(100), enc.FirstIFD)

	file := make([]byte, 100)
	copy(file, []byte{'M', 'M', 0, 0x2A})
	binary.BigEndian.PutUint32(file[4:], enc.FirstIFD)
	file = append(file, enc.Bytes...)

	back, err := Parse(file, -1, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, formatted(s), formatted(back))
}
