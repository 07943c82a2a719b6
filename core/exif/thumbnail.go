package exif

import (
	"bytes"
	"image"
	"image/jpeg"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	xtiff "golang.org/x/image/tiff"

	"github.com/ankit-chaubey/exif-surgery/core"
	"github.com/ankit-chaubey/exif-surgery/core/container"
	"github.com/ankit-chaubey/exif-surgery/core/tiff"
)

const (
	compressionNone = 1
	photometricRGB  = 2
)

// thumbnail is the embedded preview linked from the thumbnail directory.
type thumbnail struct {
	data       []byte
	compressed bool
	// strips holds the byte count of every strip of an uncompressed
	// preview.
	strips []uint32
	// rng is the source range; nil when the bytes are not one run there.
	rng *core.Range
}

func findThumbnail(st *tiff.Structure, blk *container.Block, log zerolog.Logger) *thumbnail {
	d := st.IFDs[tiff.GroupThumbnail]
	if d.Len() == 0 {
		return nil
	}
	src := tiff.NewReader(blk.Data, st.Order)
	at := func(off int64) *core.Range {
		if !blk.Contiguous() {
			return nil
		}
		return &core.Range{Offset: blk.Range.Offset + off}
	}

	if oe, ok := d.Get(tiff.TagJPEGInterchange); ok {
		le, ok2 := d.Get(tiff.TagJPEGInterchangeLength)
		offs, ok3 := oe.Uints(st.Order)
		lens, ok4 := le.Uints(st.Order)
		if !ok2 || !ok3 || !ok4 || len(offs) == 0 || len(lens) == 0 || lens[0] == 0 {
			log.Debug().Msg("exif: incomplete thumbnail pointers")
			return nil
		}
		data, ok := src.Bytes(int64(offs[0]), int64(lens[0]))
		if !ok {
			log.Debug().Uint64("offset", offs[0]).Uint64("length", lens[0]).Msg("exif: thumbnail out of bounds")
			return nil
		}
		t := &thumbnail{data: append([]byte(nil), data...), compressed: true}
		if r := at(int64(offs[0])); r != nil {
			r.Length = int64(len(data))
			t.rng = r
		}
		return t
	}

	if !uncompressedRGB(d, st) {
		return nil
	}
	regions := st.DataRegions()
	var mine []core.Range
	oe, _ := d.Get(tiff.TagStripOffsets)
	offs, ok := oe.Uints(st.Order)
	if !ok {
		return nil
	}
	for _, r := range regions {
		for _, o := range offs {
			if r.Offset == int64(o) {
				mine = append(mine, r)
				break
			}
		}
	}
	if len(mine) == 0 {
		return nil
	}
	t := &thumbnail{}
	consecutive := true
	for i, r := range mine {
		b, ok := src.Bytes(r.Offset, r.Length)
		if !ok {
			log.Debug().Int64("offset", r.Offset).Int64("length", r.Length).Msg("exif: thumbnail strip out of bounds")
			return nil
		}
		t.data = append(t.data, b...)
		t.strips = append(t.strips, uint32(r.Length))
		if i > 0 && mine[i-1].End() != r.Offset {
			consecutive = false
		}
	}
	if r := at(mine[0].Offset); r != nil && consecutive {
		r.Length = int64(len(t.data))
		t.rng = r
	}
	return t
}

// uncompressedRGB accepts 8-bit RGB strips, the only uncompressed
// preview layout cameras write.
func uncompressedRGB(d *tiff.IFD, st *tiff.Structure) bool {
	get := func(id uint16) []uint64 {
		e, ok := d.Get(id)
		if !ok {
			return nil
		}
		v, _ := e.Uints(st.Order)
		return v
	}
	c := get(tiff.TagCompression)
	if len(c) != 1 || c[0] != compressionNone {
		return false
	}
	p := get(tiff.TagPhotometric)
	if len(p) != 1 || p[0] != photometricRGB {
		return false
	}
	bits := get(tiff.TagBitsPerSample)
	if len(bits) != 3 || bits[0] != 8 || bits[1] != 8 || bits[2] != 8 {
		return false
	}
	if _, ok := d.Get(tiff.TagStripOffsets); !ok {
		return false
	}
	_, ok := d.Get(tiff.TagStripByteCounts)
	return ok
}

// HasThumbnail reports an embedded preview, compressed or not.
func (s *Store) HasThumbnail() bool { return s.thumb != nil }

// IsThumbnailCompressed reports a JPEG preview.
func (s *Store) IsThumbnailCompressed() bool { return s.thumb != nil && s.thumb.compressed }

// Thumbnail returns the JPEG preview, or nil when there is none.
func (s *Store) Thumbnail() []byte {
	if !s.IsThumbnailCompressed() {
		return nil
	}
	return s.thumb.data
}

// ThumbnailBytes returns the preview bytes in whatever encoding they have.
func (s *Store) ThumbnailBytes() []byte {
	if s.thumb == nil {
		return nil
	}
	return s.thumb.data
}

// ThumbnailRange is where the preview sits in the source. It is nil when
// there is no preview or its bytes are not one contiguous run.
func (s *Store) ThumbnailRange() *core.Range {
	if s.thumb == nil || s.thumb.rng == nil {
		return nil
	}
	r := *s.thumb.rng
	return &r
}

// ThumbnailBitmap decodes the preview.
func (s *Store) ThumbnailBitmap() (image.Image, error) {
	if s.thumb == nil {
		return nil, errors.Wrap(core.ErrInvalidArgument, "exif: no thumbnail")
	}
	if s.thumb.compressed {
		img, err := jpeg.Decode(bytes.NewReader(s.thumb.data))
		if err != nil {
			return nil, errors.Wrap(core.ErrInvalidFormat, err.Error())
		}
		return img, nil
	}
	b, err := s.stripsAsTIFF()
	if err != nil {
		return nil, err
	}
	img, err := xtiff.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, errors.Wrap(core.ErrInvalidFormat, err.Error())
	}
	return img, nil
}

// stripsAsTIFF wraps uncompressed preview strips in a single-image TIFF
// so a regular decoder can read them.
func (s *Store) stripsAsTIFF() ([]byte, error) {
	order := s.ifds.Order
	src := s.ifds.IFDs[tiff.GroupThumbnail]
	out := tiff.NewStructure(order)
	d := out.IFD(tiff.GroupPrimary)
	for _, id := range []uint16{tiff.TagImageWidth, tiff.TagImageLength, tiff.TagBitsPerSample, tiff.TagPhotometric} {
		if e, ok := src.Get(id); ok {
			d.Set(e.Clone())
		}
	}
	h, err := s.AttributeInt(TagThumbLength, 0)
	if err != nil {
		return nil, err
	}
	d.Set(tiff.NewShort(tiff.TagCompression, compressionNone, order))
	d.Set(tiff.NewShort(tiff.TagSamplesPerPixel, 3, order))
	d.Set(tiff.NewLong(tiff.TagRowsPerStrip, uint32(h), order))
	d.Set(tiff.NewLong(tiff.TagStripOffsets, 0, order))
	d.Set(tiff.NewLong(tiff.TagStripByteCounts, uint32(len(s.thumb.data)), order))

	// the directory size does not depend on the offset value
	enc, err := out.Encode(tiff.EncodeOptions{})
	if err != nil {
		return nil, err
	}
	dataAt := uint32(len(enc.Bytes)+1) &^ 1
	d.Set(tiff.NewLong(tiff.TagStripOffsets, dataAt, order))
	if enc, err = out.Encode(tiff.EncodeOptions{}); err != nil {
		return nil, err
	}
	b := enc.Bytes
	for uint32(len(b)) < dataAt {
		b = append(b, 0)
	}
	return append(b, s.thumb.data...), nil
}
