package container

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/ankit-chaubey/exif-surgery/core"
	"github.com/ankit-chaubey/exif-surgery/core/tiff"
)

// ─── TIFF / DNG ──────────────────────────────────────────────────────────────

// maxSlack is the widest run of padding tolerated between directory
// regions when deciding whether a file tail is pure metadata.
const maxSlack = 3

// RebuildTIFF appends the directories of s to the TIFF file b and repoints
// the header at them. Pixel data and the offsets that reference it stay
// where they are. When the tail of b holds nothing but the directories s
// was parsed from, that tail is replaced instead of grown.
func RebuildTIFF(b []byte, s *tiff.Structure) ([]byte, error) {
	h, err := tiff.ParseHeader(b)
	if err != nil {
		return nil, err
	}
	if h.Magic != tiff.MagicTIFF {
		return nil, errors.Wrapf(core.ErrUnsupportedFormat, "tiff: cannot rewrite files with start code 0x%04x", h.Magic)
	}
	if s.Order != h.Order {
		return nil, errors.Wrap(core.ErrInvalidArgument, "tiff: structure byte order differs from the file")
	}

	cut := metadataTail(int64(len(b)), s)
	out := append([]byte(nil), b[:cut]...)
	if len(out)%2 == 1 {
		out = append(out, 0)
	}
	enc, err := s.Encode(tiff.EncodeOptions{Base: uint32(len(out)), NoHeader: true, InPlace: true})
	if err != nil {
		return nil, err
	}
	out = append(out, enc.Bytes...)
	h.Order.PutUint32(out[4:8], enc.FirstIFD)
	return out, nil
}

// metadataTail returns where the trailing run of parsed directory regions
// starts, or size when the file does not end in one.
func metadataTail(size int64, s *tiff.Structure) int64 {
	if len(s.Regions) == 0 {
		return size
	}
	regions := append([]core.Range(nil), s.Regions...)
	sort.Slice(regions, func(i, j int) bool { return regions[i].Offset < regions[j].Offset })
	start := regions[0].Offset
	if start < tiff.HeaderSize {
		return size
	}
	covered := start
	for _, r := range regions {
		if r.Offset > covered+maxSlack {
			return size
		}
		if r.End() > covered {
			covered = r.End()
		}
	}
	if covered+maxSlack < size {
		return size
	}
	for _, d := range s.DataRegions() {
		if d.Length > 0 && d.End() > start {
			return size
		}
	}
	return start
}
