// Package container finds the metadata blocks inside an image container and
// splices replacement blocks back into its framing.
package container

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ankit-chaubey/exif-surgery/core"
)

// Kind names the metadata carried by a framing unit.
type Kind int

const (
	KindExif Kind = iota
	KindXMP
	KindExtendedXMP
	KindICC
	KindPhotoshop
)

var kindNames = map[Kind]string{
	KindExif:        "exif",
	KindXMP:         "xmp",
	KindExtendedXMP: "extended-xmp",
	KindICC:         "icc",
	KindPhotoshop:   "photoshop",
}

func (k Kind) String() string { return kindNames[k] }

// Segment is one framing unit (JPEG segment, PNG chunk, RIFF chunk) that
// carries metadata. Span covers the whole unit, framing included.
type Segment struct {
	Kind Kind
	Span core.Range
}

// Block is a located metadata payload.
type Block struct {
	Data []byte
	// Range is where Data sits in the source. Offset is -1 when the
	// payload was reassembled from several units or decompressed.
	Range core.Range
}

func newBlock(data []byte, off int64) *Block {
	return &Block{Data: data, Range: core.Range{Offset: off, Length: int64(len(data))}}
}

func assembledBlock(data []byte) *Block {
	return &Block{Data: data, Range: core.Range{Offset: -1, Length: int64(len(data))}}
}

// Contiguous reports whether the block maps onto one source range.
func (b *Block) Contiguous() bool { return b != nil && b.Range.Offset >= 0 }

// Located is everything a scanner learned about one container.
type Located struct {
	Format core.FormatID

	// Exif holds the TIFF structure, identifier prefixes removed.
	Exif        *Block
	XMP         *Block
	ExtendedXMP *Block
	ICC         *Block
	Photoshop   *Block

	// Width and Height come from the container framing (SOFn, IHDR, VP8X).
	Width, Height int
	HasGeometry   bool

	// Segments lists every metadata unit in source order.
	Segments []Segment
	// InsertAt is where a new EXIF unit goes when the source has none.
	InsertAt int64
}

func (l *Located) add(k Kind, off, n int64) {
	l.Segments = append(l.Segments, Segment{Kind: k, Span: core.Range{Offset: off, Length: n}})
}

type locator func(b []byte, log zerolog.Logger) *Located

var locators = map[core.FormatID]locator{
	core.FmtJPEG: locateJPEG,
	core.FmtPNG:  locatePNG,
	core.FmtWebP: locateWebP,
	core.FmtHEIC: locateHEIF,
	core.FmtTIFF: locateTIFF,
	core.FmtDNG:  locateTIFF,
	core.FmtORF:  locateTIFF,
	core.FmtRW2:  locateTIFF,
	core.FmtExif: locateBlob,
}

// Locate sniffs the container from its first bytes and scans it. Missing
// or corrupt metadata is never an error; an unrecognised signature is.
func Locate(b []byte, log zerolog.Logger) (*Located, error) {
	id := core.DetectBytes(b)
	scan, ok := locators[id]
	if !ok {
		return nil, errors.Wrap(core.ErrInvalidFormat, "container: unrecognised signature")
	}
	loc := scan(b, log)
	loc.Format = id
	return loc, nil
}

// Supported reports whether id has a scanner.
func Supported(id core.FormatID) bool {
	_, ok := locators[id]
	return ok
}

// locateTIFF treats the whole file as the structure.
func locateTIFF(b []byte, _ zerolog.Logger) *Located {
	return &Located{Exif: newBlock(b, 0)}
}

// locateBlob handles a bare structure behind the APP1 identifier.
func locateBlob(b []byte, _ zerolog.Logger) *Located {
	n := int64(len(core.ExifIdentifier))
	return &Located{Exif: newBlock(b[n:], n)}
}

// ─── Rebuild ─────────────────────────────────────────────────────────────────

// Rewrite describes the metadata a rebuilt container should carry.
type Rewrite struct {
	// Exif is the TIFF structure to embed. Nil drops every EXIF unit.
	Exif []byte
	// Exclusive drops XMP, extended XMP, ICC and Photoshop units too.
	Exclusive bool
}

func (rw Rewrite) drops(k Kind) bool {
	return rw.Exclusive && k != KindExif
}

type rebuilder func(b []byte, loc *Located, rw Rewrite) ([]byte, error)

var rebuilders = map[core.FormatID]rebuilder{
	core.FmtJPEG: rebuildJPEG,
	core.FmtPNG:  rebuildPNG,
	core.FmtWebP: rebuildWebP,
}

// Rebuild returns b with its metadata units replaced as rw describes.
// Everything outside those units is copied unchanged.
func Rebuild(b []byte, loc *Located, rw Rewrite) ([]byte, error) {
	rebuild, ok := rebuilders[loc.Format]
	if !ok {
		return nil, errors.Wrapf(core.ErrUnsupportedFormat, "container: cannot rewrite %s", loc.Format)
	}
	return rebuild(b, loc, rw)
}

// CanRebuild reports whether Rebuild handles id.
func CanRebuild(id core.FormatID) bool {
	_, ok := rebuilders[id]
	return ok
}

// splice copies b, replacing the first EXIF unit with exifUnit, dropping
// the other EXIF units and whatever rw drops. With no EXIF unit in the
// source, exifUnit is inserted at insertAt.
func splice(b []byte, segs []Segment, exifUnit []byte, insertAt int64, rw Rewrite) []byte {
	units := append([]Segment(nil), segs...)
	hasExif := false
	for _, s := range units {
		if s.Kind == KindExif {
			hasExif = true
			break
		}
	}
	if !hasExif && exifUnit != nil {
		units = append(units, Segment{Kind: KindExif, Span: core.Range{Offset: insertAt}})
	}
	sort.SliceStable(units, func(i, j int) bool {
		a, c := units[i].Span, units[j].Span
		return a.Offset < c.Offset || (a.Offset == c.Offset && a.Length < c.Length)
	})

	out := make([]byte, 0, len(b)+len(exifUnit))
	cursor := int64(0)
	written := false
	for _, s := range units {
		out = append(out, b[cursor:s.Span.Offset]...)
		cursor = s.Span.End()
		switch {
		case s.Kind == KindExif:
			if !written && exifUnit != nil {
				out = append(out, exifUnit...)
			}
			written = true
		case rw.drops(s.Kind):
		default:
			out = append(out, b[s.Span.Offset:s.Span.End()]...)
		}
	}
	return append(out, b[cursor:]...)
}

// SegmentOverflowError reports an EXIF structure too large for one JPEG
// APP1 segment.
type SegmentOverflowError struct {
	Size int
}

func (e *SegmentOverflowError) Error() string {
	return fmt.Sprintf("size of exif data (%d bytes) exceeds the max size of a JPEG APP1 segment (65536 bytes)", e.Size)
}
