package container

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/webp"

	"github.com/ankit-chaubey/exif-surgery/core"
	"github.com/ankit-chaubey/exif-surgery/internal/testutil"
)

func simpleWebP(alpha bool) []byte {
	return testutil.WebP(testutil.WebPChunk("VP8L", testutil.VP8L(10, 7, alpha)))
}

func TestLocateWebP(t *testing.T) {
	blob := makeBlob()
	xmp := "<x:xmpmeta/>"
	w := testutil.WebP(
		testutil.WebPChunk("VP8X", testutil.VP8X(VP8XExif|VP8XXMP|VP8XICC, 10, 7)),
		testutil.WebPChunk("ICCP", []byte("profile")),
		testutil.WebPChunk("VP8L", testutil.VP8L(10, 7, false)),
		testutil.WebPChunk("EXIF", blob),
		testutil.WebPChunk("XMP ", []byte(xmp)),
	)
	loc, err := Locate(w, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, core.FmtWebP, loc.Format)
	require.NotNil(t, loc.Exif)
	assert.Equal(t, blob, loc.Exif.Data)
	assert.Equal(t, blob, w[loc.Exif.Range.Offset:loc.Exif.Range.End()])
	require.NotNil(t, loc.XMP)
	assert.Equal(t, xmp, string(loc.XMP.Data))
	require.NotNil(t, loc.ICC)
	assert.Equal(t, "profile", string(loc.ICC.Data))
	assert.True(t, loc.HasGeometry)
	assert.Equal(t, 10, loc.Width)
	assert.Equal(t, 7, loc.Height)
}

func TestLocateWebPPrefixedExif(t *testing.T) {
	blob := makeBlob()
	for name, prefix := range map[string][]byte{
		"Identifier": []byte("Exif\x00\x00"),
		"APP1":       append([]byte{0xFF, 0xE1, 0x00, 0x00}, "Exif\x00\x00"...),
	} {
		t.Run(name, func(t *testing.T) {
			w := testutil.WebP(
				testutil.WebPChunk("VP8X", testutil.VP8X(VP8XExif, 10, 7)),
				testutil.WebPChunk("VP8L", testutil.VP8L(10, 7, false)),
				testutil.WebPChunk("EXIF", append(append([]byte(nil), prefix...), blob...)),
			)
			loc, err := Locate(w, zerolog.Nop())
			require.NoError(t, err)
			require.NotNil(t, loc.Exif)
			assert.Equal(t, blob, loc.Exif.Data)
		})
	}
}

func TestRebuildWebP(t *testing.T) {
	blob := makeBlob()

	t.Run("SimpleGainsVP8X", func(t *testing.T) {
		w := simpleWebP(false)
		loc, err := Locate(w, zerolog.Nop())
		require.NoError(t, err)
		out, err := Rebuild(w, loc, Rewrite{Exif: blob})
		require.NoError(t, err)

		assert.Equal(t, "VP8X", string(out[12:16]))
		assert.Equal(t, VP8XExif, out[20])
		assert.Equal(t, uint32(len(out)-8), binary.LittleEndian.Uint32(out[4:8]))

		cfg, err := webp.DecodeConfig(bytes.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, 10, cfg.Width)
		assert.Equal(t, 7, cfg.Height)

		again, err := Locate(out, zerolog.Nop())
		require.NoError(t, err)
		require.NotNil(t, again.Exif)
		assert.Equal(t, blob, again.Exif.Data)

		second, err := Rebuild(out, again, Rewrite{Exif: blob})
		require.NoError(t, err)
		assert.Equal(t, out, second)
	})

	t.Run("AlphaFlag", func(t *testing.T) {
		w := simpleWebP(true)
		loc, err := Locate(w, zerolog.Nop())
		require.NoError(t, err)
		out, err := Rebuild(w, loc, Rewrite{Exif: blob})
		require.NoError(t, err)
		assert.Equal(t, VP8XExif|VP8XAlpha, out[20])
	})

	t.Run("InsertBeforeXMP", func(t *testing.T) {
		w := testutil.WebP(
			testutil.WebPChunk("VP8X", testutil.VP8X(VP8XXMP, 10, 7)),
			testutil.WebPChunk("VP8L", testutil.VP8L(10, 7, false)),
			testutil.WebPChunk("XMP ", []byte("<x/>")),
		)
		loc, err := Locate(w, zerolog.Nop())
		require.NoError(t, err)
		out, err := Rebuild(w, loc, Rewrite{Exif: blob})
		require.NoError(t, err)
		assert.Less(t, bytes.Index(out, []byte("EXIF")), bytes.Index(out, []byte("XMP ")))
		assert.Equal(t, VP8XExif|VP8XXMP, out[20])
	})

	t.Run("Exclusive", func(t *testing.T) {
		w := testutil.WebP(
			testutil.WebPChunk("VP8X", testutil.VP8X(VP8XExif|VP8XXMP|VP8XICC, 10, 7)),
			testutil.WebPChunk("ICCP", []byte("profile")),
			testutil.WebPChunk("VP8L", testutil.VP8L(10, 7, false)),
			testutil.WebPChunk("EXIF", blob),
			testutil.WebPChunk("XMP ", []byte("<x/>")),
		)
		loc, err := Locate(w, zerolog.Nop())
		require.NoError(t, err)
		out, err := Rebuild(w, loc, Rewrite{Exclusive: true})
		require.NoError(t, err)
		assert.Equal(t, byte(0), out[20])

		again, err := Locate(out, zerolog.Nop())
		require.NoError(t, err)
		assert.Nil(t, again.Exif)
		assert.Nil(t, again.XMP)
		assert.Nil(t, again.ICC)
		assert.True(t, again.HasGeometry)
	})

	t.Run("TrailingBytesKept", func(t *testing.T) {
		w := append(simpleWebP(false), "TRAILER"...)
		loc, err := Locate(w, zerolog.Nop())
		require.NoError(t, err)
		out, err := Rebuild(w, loc, Rewrite{Exif: blob})
		require.NoError(t, err)
		assert.True(t, bytes.HasSuffix(out, []byte("TRAILER")))
		assert.Equal(t, uint32(len(out)-8-len("TRAILER")), binary.LittleEndian.Uint32(out[4:8]))
	})
}

func TestRebuildWebPCorruptRIFFSize(t *testing.T) {
	blob := makeBlob()
	for _, declared := range []uint32{0, 3} {
		w := simpleWebP(false)
		binary.LittleEndian.PutUint32(w[4:8], declared)
		loc, err := Locate(w, zerolog.Nop())
		require.NoError(t, err)
		assert.Nil(t, loc.Exif)

		for name, rw := range map[string]Rewrite{
			"Exif":      {Exif: blob},
			"Exclusive": {Exclusive: true},
		} {
			t.Run(name, func(t *testing.T) {
				assert.NotPanics(t, func() {
					_, err := Rebuild(w, loc, rw)
					assert.ErrorIs(t, err, core.ErrInvalidFormat)
				})
			})
		}
	}
}
