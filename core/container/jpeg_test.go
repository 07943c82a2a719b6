package container

import (
	"bytes"
	"encoding/binary"
	"image/jpeg"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankit-chaubey/exif-surgery/core"
	"github.com/ankit-chaubey/exif-surgery/internal/testutil"
)

func makeBlob() []byte {
	return testutil.NewExif(binary.BigEndian).
		ASCII(testutil.Primary, 0x010F, "Canon").
		ASCII(testutil.Primary, 0x0110, "Canon EOS 5D").
		Short(testutil.Primary, 0x0112, 6).
		Build()
}

func reversed(segs [][]byte) [][]byte {
	out := make([][]byte, len(segs))
	for i, s := range segs {
		out[len(segs)-1-i] = s
	}
	return out
}

func TestLocateJPEG(t *testing.T) {
	blob := makeBlob()
	xmp := `<x:xmpmeta xmlns:x="adobe:ns:meta/"/>`
	profile := bytes.Repeat([]byte{1, 2, 3, 4, 5}, 40)
	ext := bytes.Repeat([]byte("extended-xmp-"), 23)
	iptc := []byte{0x1C, 0x02, 0x78, 0x00, 0x05, 'h', 'e', 'l', 'l', 'o'}

	segs := [][]byte{testutil.ExifAPP1(blob), testutil.XMPAPP1(xmp)}
	segs = append(segs, reversed(testutil.ICCAPP2s(profile, 64))...)
	segs = append(segs, reversed(testutil.ExtendedXMPAPP1s("0123456789ABCDEF0123456789ABCDEF", ext, 100))...)
	segs = append(segs, testutil.PhotoshopAPP13(iptc))
	jpg := testutil.InsertSegments(testutil.JPEG(16, 8), segs...)

	loc, err := Locate(jpg, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, core.FmtJPEG, loc.Format)

	require.NotNil(t, loc.Exif)
	assert.Equal(t, blob, loc.Exif.Data)
	assert.Equal(t, int64(2+4+6), loc.Exif.Range.Offset)
	assert.Equal(t, blob, jpg[loc.Exif.Range.Offset:loc.Exif.Range.End()])

	require.NotNil(t, loc.XMP)
	assert.Equal(t, xmp, string(loc.XMP.Data))
	assert.True(t, loc.XMP.Contiguous())

	require.NotNil(t, loc.ICC)
	assert.Equal(t, profile, loc.ICC.Data)
	assert.False(t, loc.ICC.Contiguous())

	require.NotNil(t, loc.ExtendedXMP)
	assert.Equal(t, ext, loc.ExtendedXMP.Data)

	require.NotNil(t, loc.Photoshop)
	assert.True(t, bytes.HasPrefix(loc.Photoshop.Data, []byte("8BIM")))

	assert.True(t, loc.HasGeometry)
	assert.Equal(t, 16, loc.Width)
	assert.Equal(t, 8, loc.Height)
	assert.Equal(t, int64(2), loc.InsertAt)
}

func TestLocateJPEGTolerance(t *testing.T) {
	blob := makeBlob()

	t.Run("GarbageBeforeSegment", func(t *testing.T) {
		plain := testutil.JPEG(8, 8)
		jpg := append([]byte{0xFF, 0xD8, 0x00, 0x12, 0x34}, testutil.ExifAPP1(blob)...)
		jpg = append(jpg, plain[2:]...)
		loc, err := Locate(jpg, zerolog.Nop())
		require.NoError(t, err)
		require.NotNil(t, loc.Exif)
		assert.Equal(t, blob, loc.Exif.Data)
	})

	t.Run("FillBytes", func(t *testing.T) {
		plain := testutil.JPEG(8, 8)
		jpg := append([]byte{0xFF, 0xD8, 0xFF, 0xFF}, testutil.ExifAPP1(blob)...)
		jpg = append(jpg, plain[2:]...)
		loc, err := Locate(jpg, zerolog.Nop())
		require.NoError(t, err)
		require.NotNil(t, loc.Exif)
		assert.Equal(t, blob, loc.Exif.Data)
	})

	t.Run("TruncatedSegment", func(t *testing.T) {
		jpg := testutil.InsertSegments(testutil.JPEG(8, 8), testutil.ExifAPP1(blob))
		loc, err := Locate(jpg[:20], zerolog.Nop())
		require.NoError(t, err)
		assert.Nil(t, loc.Exif)
	})

	t.Run("CorruptRandom", func(t *testing.T) {
		for seed := int64(0); seed < 50; seed++ {
			assert.NotPanics(t, func() {
				_, err := Locate(testutil.CorruptJPEG(seed), zerolog.Nop())
				assert.NoError(t, err)
			})
		}
	})

	t.Run("EveryExifSegmentRecorded", func(t *testing.T) {
		other := testutil.NewExif(binary.LittleEndian).ASCII(testutil.Primary, 0x010F, "Nikon").Build()
		jpg := testutil.InsertSegments(testutil.JPEG(8, 8), testutil.ExifAPP1(blob), testutil.ExifAPP1(other))
		loc, err := Locate(jpg, zerolog.Nop())
		require.NoError(t, err)
		assert.Equal(t, blob, loc.Exif.Data)
		n := 0
		for _, s := range loc.Segments {
			if s.Kind == KindExif {
				n++
			}
		}
		assert.Equal(t, 2, n)
	})
}

func TestRebuildJPEG(t *testing.T) {
	blob := makeBlob()
	plain := testutil.JPEG(16, 8)

	t.Run("ReplaceIsByteIdentical", func(t *testing.T) {
		jpg := testutil.InsertSegments(plain, testutil.ExifAPP1(blob), testutil.XMPAPP1("<x/>"))
		loc, err := Locate(jpg, zerolog.Nop())
		require.NoError(t, err)
		out, err := Rebuild(jpg, loc, Rewrite{Exif: blob})
		require.NoError(t, err)
		assert.Equal(t, jpg, out)
	})

	t.Run("InsertAfterSOI", func(t *testing.T) {
		loc, err := Locate(plain, zerolog.Nop())
		require.NoError(t, err)
		out, err := Rebuild(plain, loc, Rewrite{Exif: blob})
		require.NoError(t, err)
		assert.Equal(t, testutil.InsertSegments(plain, testutil.ExifAPP1(blob)), out)
		_, err = jpeg.Decode(bytes.NewReader(out))
		assert.NoError(t, err)
	})

	t.Run("InsertAfterLeadingAPP0", func(t *testing.T) {
		app0 := testutil.Segment(0xE0, []byte("JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00"))
		jpg := testutil.InsertSegments(plain, app0)
		loc, err := Locate(jpg, zerolog.Nop())
		require.NoError(t, err)
		assert.Equal(t, int64(2+len(app0)), loc.InsertAt)
		out, err := Rebuild(jpg, loc, Rewrite{Exif: blob})
		require.NoError(t, err)
		assert.Equal(t, testutil.InsertSegments(plain, app0, testutil.ExifAPP1(blob)), out)
	})

	t.Run("CollapseDuplicates", func(t *testing.T) {
		jpg := testutil.InsertSegments(plain, testutil.ExifAPP1(blob), testutil.ExifAPP1(blob))
		loc, err := Locate(jpg, zerolog.Nop())
		require.NoError(t, err)
		out, err := Rebuild(jpg, loc, Rewrite{Exif: blob})
		require.NoError(t, err)
		assert.Equal(t, 1, bytes.Count(out, core.ExifIdentifier))
		assert.Equal(t, testutil.InsertSegments(plain, testutil.ExifAPP1(blob)), out)
	})

	t.Run("DropExif", func(t *testing.T) {
		jpg := testutil.InsertSegments(plain, testutil.ExifAPP1(blob))
		loc, err := Locate(jpg, zerolog.Nop())
		require.NoError(t, err)
		out, err := Rebuild(jpg, loc, Rewrite{})
		require.NoError(t, err)
		assert.Equal(t, plain, out)
	})

	t.Run("Exclusive", func(t *testing.T) {
		segs := append([][]byte{testutil.ExifAPP1(blob), testutil.XMPAPP1("<x/>"), testutil.PhotoshopAPP13([]byte{1, 2})},
			testutil.ICCAPP2s(make([]byte, 100), 40)...)
		jpg := testutil.InsertSegments(plain, segs...)
		loc, err := Locate(jpg, zerolog.Nop())
		require.NoError(t, err)
		out, err := Rebuild(jpg, loc, Rewrite{Exclusive: true})
		require.NoError(t, err)
		assert.Equal(t, plain, out)

		again, err := Locate(out, zerolog.Nop())
		require.NoError(t, err)
		assert.Nil(t, again.Exif)
		assert.Nil(t, again.XMP)
		assert.Nil(t, again.ICC)
		assert.Nil(t, again.Photoshop)
	})

	t.Run("Overflow", func(t *testing.T) {
		loc, err := Locate(plain, zerolog.Nop())
		require.NoError(t, err)
		_, err = Rebuild(plain, loc, Rewrite{Exif: make([]byte, 0x10000)})
		require.Error(t, err)
		var overflow *SegmentOverflowError
		require.True(t, errors.As(err, &overflow))
		assert.True(t, strings.Contains(err.Error(), "exceeds the max size of a JPEG APP1 segment"))
	})
}

func TestAPP1Limit(t *testing.T) {
	seg, err := APP1(make([]byte, MaxAPP1Payload-len(core.ExifIdentifier)))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF}, seg[2:4])

	_, err = APP1(make([]byte, MaxAPP1Payload-len(core.ExifIdentifier)+1))
	assert.Error(t, err)
}

func TestLocateUnknown(t *testing.T) {
	_, err := Locate([]byte("definitely not an image"), zerolog.Nop())
	assert.True(t, errors.Is(err, core.ErrInvalidFormat))
}
