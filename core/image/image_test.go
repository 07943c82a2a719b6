package image

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankit-chaubey/exif-surgery/core"
	"github.com/ankit-chaubey/exif-surgery/core/exif"
	"github.com/ankit-chaubey/exif-surgery/internal/testutil"
)

const sampleXMP = `<x:xmpmeta xmlns:x="adobe:ns:meta/">` +
	`<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">` +
	`<rdf:Description rdf:about="" xmlns:xmp="http://ns.adobe.com/xap/1.0/" xmlns:dc="http://purl.org/dc/elements/1.1/" xmp:Rating="3">` +
	`<dc:creator><rdf:Seq><rdf:li>Jane Doe</rdf:li></rdf:Seq></dc:creator>` +
	`</rdf:Description></rdf:RDF></x:xmpmeta>`

func sampleJPEG() []byte {
	blob := testutil.NewExif(binary.BigEndian).
		ASCII(testutil.Primary, 0x010F, "Canon").
		ASCII(testutil.Primary, 0x0110, "Canon EOS 5D").
		Short(testutil.Primary, 0x0112, 6).
		ASCII(testutil.Exif, 0x9003, "2016:01:29 18:32:27").
		Undefined(testutil.Exif, 0x927C, make([]byte, 200)).
		ASCII(testutil.GPS, 0x0001, "N").
		Rational(testutil.GPS, 0x0002, 37, 1, 25, 1, 12, 1).
		ASCII(testutil.GPS, 0x0003, "W").
		Rational(testutil.GPS, 0x0004, 122, 1, 5, 1, 0, 1).
		Rational(testutil.GPS, 0x0007, 9, 1, 32, 1, 27, 1).
		Build()
	iptc := []byte{0x1C, 0x02, 0x78, 0x00, 0x05, 'h', 'e', 'l', 'l', 'o'}
	return testutil.InsertSegments(testutil.JPEG(24, 12),
		testutil.ExifAPP1(blob),
		testutil.XMPAPP1(sampleXMP),
		testutil.PhotoshopAPP13(iptc),
	)
}

func writeTemp(t *testing.T, name string, b []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, b, 0o644))
	return p
}

func field(m *core.Metadata, category, key string) (core.MetaField, bool) {
	for _, f := range m.Fields {
		if f.Category == category && f.Key == key {
			return f, true
		}
	}
	return core.MetaField{}, false
}

func TestView(t *testing.T) {
	p := writeTemp(t, "v.jpg", sampleJPEG())
	h, err := ForFile(p)
	require.NoError(t, err)
	assert.Equal(t, "JPEG", h.Info().Name)

	m, err := h.View(p)
	require.NoError(t, err)
	assert.Equal(t, "JPEG", m.Format)
	assert.Equal(t, p, m.FilePath)
	assert.Equal(t, "Make: Canon", m.Summary())

	tests := []struct {
		category, key, value string
	}{
		{"Primary", "Make", "Canon"},
		{"Primary", "Orientation", "6"},
		{"Exif", "DateTimeOriginal", "2016:01:29 18:32:27"},
		{"Exif", "MakerNote", "(200 bytes)"},
		{"GPS", "GPSTimeStamp", "09:32:27"},
		{"Derived", "Orientation", "rotate-90 (rotated 90, flipped false)"},
		{"Derived", "DateTimeOriginal", "2016-01-29T18:32:27Z"},
		{"Derived", "Location", "37.4200000, -122.0833333"},
		{"Derived", "ImageWidth", "24"},
		{"XMP", "xmp:Rating", "3"},
		{"XMP", "xmp:creator", "Jane Doe"},
		{"IPTC", "Caption", "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.category+"/"+tt.key, func(t *testing.T) {
			f, ok := field(m, tt.category, tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.value, f.Value)
		})
	}

	f, ok := field(m, "Primary", "Make")
	require.True(t, ok)
	assert.True(t, f.Editable)
	assert.Empty(t, f.Raw)

	_, ok = field(m, "Container", "XMP")
	assert.True(t, ok)
	_, ok = field(m, "Container", "PhotoshopImageResources")
	assert.True(t, ok)
}

func TestViewRanges(t *testing.T) {
	src := sampleJPEG()
	p := writeTemp(t, "r.jpg", src)
	m, err := New(core.FmtJPEG, exif.TrackRanges()).View(p)
	require.NoError(t, err)

	f, ok := field(m, "Primary", "Make")
	require.True(t, ok)
	assert.NotEmpty(t, f.Raw)
}

func TestViewMissing(t *testing.T) {
	_, err := New(core.FmtJPEG).View(filepath.Join(t.TempDir(), "gone.jpg"))
	assert.ErrorIs(t, err, core.ErrIO)

	_, err = ForFile(filepath.Join(t.TempDir(), "gone.jpg"))
	assert.ErrorIs(t, err, core.ErrIO)
}

func TestEdit(t *testing.T) {
	t.Run("InPlace", func(t *testing.T) {
		p := writeTemp(t, "e.jpg", sampleJPEG())
		err := New(core.FmtJPEG).Edit(p, "", core.EditOptions{
			Set:    map[string]string{"Artist": "someone", "Make": "Nikon", "Model": ""},
			Delete: []string{"Orientation"},
		})
		require.NoError(t, err)

		s, err := exif.Open(p)
		require.NoError(t, err)
		v, _ := s.Attribute("Artist")
		assert.Equal(t, "someone", v)
		v, _ = s.Attribute("Make")
		assert.Equal(t, "Nikon", v)
		assert.False(t, s.HasAttribute("Model"))
		assert.False(t, s.HasAttribute("Orientation"))
	})

	t.Run("OutPath", func(t *testing.T) {
		src := sampleJPEG()
		p := writeTemp(t, "in.jpg", src)
		out := filepath.Join(t.TempDir(), "out.jpg")
		require.NoError(t, New(core.FmtJPEG).Edit(p, out, core.EditOptions{Set: map[string]string{"Artist": "x"}}))

		b, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, src, b)
		s, err := exif.Open(out)
		require.NoError(t, err)
		v, _ := s.Attribute("Artist")
		assert.Equal(t, "x", v)
	})

	t.Run("DryRun", func(t *testing.T) {
		src := sampleJPEG()
		p := writeTemp(t, "d.jpg", src)
		require.NoError(t, New(core.FmtJPEG).Edit(p, "", core.EditOptions{
			Set:    map[string]string{"Artist": "x"},
			DryRun: true,
		}))
		b, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, src, b)
	})

	t.Run("Errors", func(t *testing.T) {
		p := writeTemp(t, "x.jpg", sampleJPEG())
		err := New(core.FmtJPEG).Edit(p, "", core.EditOptions{Set: map[string]string{"Bogus": "1"}})
		assert.ErrorIs(t, err, core.ErrUnknownTag)
		err = New(core.FmtJPEG).Edit(p, "", core.EditOptions{Set: map[string]string{"Orientation": "up"}})
		assert.ErrorIs(t, err, core.ErrTypeMismatch)

		heic := writeTemp(t, "x.heic", testutil.HEIF(testutil.NewExif(binary.BigEndian).ASCII(testutil.Primary, 0x010F, "Canon").Build(), ""))
		err = New(core.FmtHEIC).Edit(heic, "", core.EditOptions{Set: map[string]string{"Artist": "x"}})
		assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
	})
}

func TestStrip(t *testing.T) {
	for _, keep := range []bool{false, true} {
		p := writeTemp(t, "s.jpg", sampleJPEG())
		out := filepath.Join(t.TempDir(), "clean.jpg")
		require.NoError(t, New(core.FmtJPEG).Strip(p, out, core.StripOptions{KeepOrientation: keep}))

		s, err := exif.Open(out)
		require.NoError(t, err)
		assert.False(t, s.HasAttribute("Make"))
		assert.False(t, s.HasXMP())
		assert.False(t, s.HasPhotoshopImageResources())
		assert.Equal(t, keep, s.HasAttribute("Orientation"))
	}

	tif := writeTemp(t, "s.tif", testutil.NewExif(binary.LittleEndian).ASCII(testutil.Primary, 0x010F, "Canon").Build())
	err := New(core.FmtTIFF).Strip(tif, "", core.StripOptions{})
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
}

func TestFormats(t *testing.T) {
	fs := Formats()
	require.Len(t, fs, 8)
	assert.Equal(t, "JPEG", fs[0].Name)
	for _, f := range fs {
		assert.True(t, f.CanView, f.Name)
		assert.NotEmpty(t, f.Extensions, f.Name)
	}
	assert.False(t, New(core.FmtHEIC).Info().CanEdit)
}

func TestParseIPTC(t *testing.T) {
	block := []byte{0x1C, 0x02, 0x69, 0x00, 0x03, 'n', 'e', 'w', 0x1C, 0x02, 0x19, 0x00, 0x02, 'k', '1'}
	res := []byte("8BIM")
	res = binary.BigEndian.AppendUint16(res, 0x03ED)
	res = append(res, 0, 0)
	res = binary.BigEndian.AppendUint32(res, 2)
	res = append(res, 9, 9)
	res = append(res, "8BIM"...)
	res = binary.BigEndian.AppendUint16(res, iptcResource)
	res = append(res, 3, 'a', 'b', 'c')
	res = binary.BigEndian.AppendUint32(res, uint32(len(block)))
	res = append(res, block...)

	m := &core.Metadata{}
	parseIPTCInto(res, m)
	require.Len(t, m.Fields, 2)
	assert.Equal(t, "Headline", m.Fields[0].Key)
	assert.Equal(t, "new", m.Fields[0].Value)
	assert.Equal(t, "Keywords", m.Fields[1].Key)

	assert.NotPanics(t, func() { parseIPTCInto(res[:len(res)-4], &core.Metadata{}) })
	assert.NotPanics(t, func() { parseXMPInto([]byte("<x:xmpmeta><unclosed"), &core.Metadata{}) })
}
