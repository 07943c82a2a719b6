package exif

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankit-chaubey/exif-surgery/core"
	"github.com/ankit-chaubey/exif-surgery/internal/testutil"
)

// cameraBlob is a small camera-like structure with every date-time family
// filled in, zoned at +09:00.
func cameraBlob() []byte {
	return testutil.NewExif(binary.BigEndian).
		ASCII(testutil.Primary, 0x010F, "Canon").
		ASCII(testutil.Primary, 0x0110, "Canon EOS 5D").
		Short(testutil.Primary, 0x0112, 6).
		ASCII(testutil.Primary, 0x0132, "2016:01:29 18:32:27").
		Rational(testutil.Exif, 0x829D, 28, 10).
		Short(testutil.Exif, 0x8827, 50).
		ASCII(testutil.Exif, 0x9003, "2016:01:29 18:32:27").
		ASCII(testutil.Exif, 0x9004, "2016:01:29 18:32:27").
		ASCII(testutil.Exif, 0x9010, "+09:00").
		ASCII(testutil.Exif, 0x9011, "+09:00").
		ASCII(testutil.Exif, 0x9012, "+09:00").
		ASCII(testutil.Exif, 0x9290, "100000").
		ASCII(testutil.Exif, 0x9291, "100000").
		ASCII(testutil.Exif, 0x9292, "100000").
		ASCII(testutil.GPS, 0x0001, "N").
		Rational(testutil.GPS, 0x0002, 37, 1, 25, 1, 12, 1).
		ASCII(testutil.GPS, 0x0003, "W").
		Rational(testutil.GPS, 0x0004, 122, 1, 5, 1, 0, 1).
		Rational(testutil.GPS, 0x0007, 9, 1, 32, 1, 27, 1).
		ASCII(testutil.GPS, 0x001D, "2016:01:29").
		Build()
}

func cameraJPEG(extra ...[]byte) []byte {
	segs := append([][]byte{testutil.ExifAPP1(cameraBlob())}, extra...)
	return testutil.InsertSegments(testutil.JPEG(32, 16), segs...)
}

func writeTemp(t *testing.T, name string, b []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, b, 0o644))
	return p
}

func openTemp(t *testing.T, name string, b []byte, opts ...Option) (*Store, string) {
	t.Helper()
	p := writeTemp(t, name, b)
	s, err := Open(p, opts...)
	require.NoError(t, err)
	return s, p
}

func reopen(t *testing.T, p string, opts ...Option) *Store {
	t.Helper()
	s, err := Open(p, opts...)
	require.NoError(t, err)
	return s
}

func attr(t *testing.T, s *Store, name string) string {
	t.Helper()
	v, ok := s.Attribute(name)
	require.True(t, ok, "attribute %s", name)
	return v
}

func TestOpen(t *testing.T) {
	t.Run("JPEG", func(t *testing.T) {
		s, _ := openTemp(t, "a.jpg", cameraJPEG())
		assert.Equal(t, core.FmtJPEG, s.Format())
		assert.Equal(t, binary.BigEndian, s.ByteOrder())
		assert.Equal(t, "Canon", attr(t, s, TagMake))
		assert.Equal(t, "Canon EOS 5D", attr(t, s, TagModel))
		assert.True(t, s.HasAttributes(false))
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := Open(filepath.Join(t.TempDir(), "nope.jpg"))
		assert.ErrorIs(t, err, core.ErrIO)
	})

	t.Run("UnknownContainer", func(t *testing.T) {
		_, err := OpenReader(bytes.NewReader([]byte("hello, not an image")))
		assert.ErrorIs(t, err, core.ErrInvalidFormat)
	})

	t.Run("NilArguments", func(t *testing.T) {
		_, err := OpenFile(nil)
		assert.ErrorIs(t, err, core.ErrNullArgument)
		_, err = OpenReader(nil)
		assert.ErrorIs(t, err, core.ErrNullArgument)
	})

	t.Run("EmptyFile", func(t *testing.T) {
		s, p := openTemp(t, "empty.jpg", nil)
		assert.Equal(t, core.FmtJPEG, s.Format())
		assert.False(t, s.HasAttributes(true))
		require.NoError(t, s.SetAttribute(TagMake, "Canon"))
		assert.ErrorIs(t, s.SaveAttributes(), core.ErrUnsupportedFormat)
		b, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Empty(t, b)
	})

	t.Run("CorruptDirectory", func(t *testing.T) {
		for seed := int64(0); seed < 20; seed++ {
			assert.NotPanics(t, func() {
				s, err := OpenReader(bytes.NewReader(testutil.CorruptJPEG(seed)))
				require.NoError(t, err)
				_, _ = s.Attribute(TagMake)
				_ = s.Orientation()
			})
		}
	})

	t.Run("Blocks", func(t *testing.T) {
		xmp := "<x:xmpmeta/>"
		ext := bytes.Repeat([]byte("extended "), 40)
		profile := bytes.Repeat([]byte("icc"), 60)
		segs := [][]byte{testutil.XMPAPP1(xmp), testutil.PhotoshopAPP13([]byte{1, 2, 3})}
		segs = append(segs, testutil.ICCAPP2s(profile, 64)...)
		segs = append(segs, testutil.ExtendedXMPAPP1s("0123456789ABCDEF0123456789ABCDEF", ext, 100)...)
		s, err := OpenReader(bytes.NewReader(cameraJPEG(segs...)))
		require.NoError(t, err)

		assert.True(t, s.HasXMP())
		assert.Equal(t, xmp, string(s.XMP()))
		assert.True(t, s.HasExtendedXMP())
		assert.Equal(t, ext, s.ExtendedXMP())
		assert.True(t, s.HasICCProfile())
		assert.Equal(t, profile, s.ICCProfile())
		assert.True(t, s.HasPhotoshopImageResources())
		assert.NotEmpty(t, s.PhotoshopImageResources())
	})
}

func TestOpenFile(t *testing.T) {
	p := writeTemp(t, "f.jpg", cameraJPEG())
	f, err := os.OpenFile(p, os.O_RDWR, 0)
	require.NoError(t, err)
	defer f.Close()

	s, err := OpenFile(f)
	require.NoError(t, err)
	require.NoError(t, s.SetAttribute(TagArtist, "someone"))
	require.NoError(t, s.SaveAttributes())

	again := reopen(t, p)
	assert.Equal(t, "someone", attr(t, again, TagArtist))
	assert.Equal(t, "Canon", attr(t, again, TagMake))
}

func TestOpenExifData(t *testing.T) {
	blob := cameraBlob()

	t.Run("Bare", func(t *testing.T) {
		s, err := OpenExifData(blob)
		require.NoError(t, err)
		assert.Equal(t, core.FmtExif, s.Format())
		assert.Equal(t, "Canon", attr(t, s, TagMake))

		var out bytes.Buffer
		require.NoError(t, s.SaveTo(&out))
		assert.Equal(t, []byte("MM"), out.Bytes()[:2])
	})

	t.Run("Prefixed", func(t *testing.T) {
		s, err := OpenExifData(append([]byte("Exif\x00\x00"), blob...))
		require.NoError(t, err)
		assert.Equal(t, "Canon", attr(t, s, TagMake))

		require.NoError(t, s.SetAttribute(TagMake, "Nikon"))
		var out bytes.Buffer
		require.NoError(t, s.SaveTo(&out))
		assert.True(t, bytes.HasPrefix(out.Bytes(), []byte("Exif\x00\x00")))

		again, err := OpenExifData(out.Bytes())
		require.NoError(t, err)
		assert.Equal(t, "Nikon", attr(t, again, TagMake))
	})

	t.Run("Garbage", func(t *testing.T) {
		s, err := OpenExifData([]byte("not a tiff structure"))
		require.NoError(t, err)
		assert.False(t, s.HasAttributes(true))
	})

	t.Run("NoInPlaceSave", func(t *testing.T) {
		s, err := OpenExifData(blob)
		require.NoError(t, err)
		assert.ErrorIs(t, s.SaveAttributes(), core.ErrUnsupportedFormat)
	})
}

func TestNew(t *testing.T) {
	s := New()
	assert.Equal(t, core.FmtExif, s.Format())
	assert.False(t, s.HasAttributes(true))

	b, err := s.EncodeExif()
	require.NoError(t, err)
	assert.Nil(t, b)

	require.NoError(t, s.SetAttribute(TagMake, "Canon"))
	b, err = s.EncodeExif()
	require.NoError(t, err)
	again, err := OpenExifData(b)
	require.NoError(t, err)
	assert.Equal(t, "Canon", attr(t, again, TagMake))
}

func TestHEIF(t *testing.T) {
	xmp := "<x:xmpmeta>heif</x:xmpmeta>"
	s, err := OpenReader(bytes.NewReader(testutil.HEIF(cameraBlob(), xmp)))
	require.NoError(t, err)

	assert.Equal(t, core.FmtHEIC, s.Format())
	assert.Equal(t, "Canon", attr(t, s, TagMake))
	assert.Equal(t, "0", attr(t, s, TagImageWidth))
	assert.Equal(t, "0", attr(t, s, TagImageLength))
	assert.True(t, s.HasXMP())
	assert.Equal(t, xmp, string(s.XMP()))

	var out bytes.Buffer
	assert.ErrorIs(t, s.SaveTo(&out), core.ErrUnsupportedFormat)
	assert.Zero(t, out.Len())

	blob, err := s.EncodeExif()
	require.NoError(t, err)
	assert.NotEmpty(t, blob)
}
