package tiff

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/ankit-chaubey/exif-surgery/core"
)

// EncodeOptions controls how a structure is laid out.
type EncodeOptions struct {
	// Base is added to every offset written. With a header the structure
	// starts at Base; in append mode the first directory does.
	Base uint32
	// NoHeader omits the 8-byte TIFF header; the caller patches its own.
	NoHeader bool
	// Thumbnail is written after the last directory and linked from the
	// thumbnail directory.
	Thumbnail []byte
	// StripCounts is set when Thumbnail is strip data rather than a JPEG
	// stream; it holds the byte count of every strip.
	StripCounts []uint32
	// InPlace means the directories are re-linked into their original
	// file: data offsets stay valid as written and the chain after the
	// thumbnail directory is preserved.
	InPlace bool
}

// Encoded is a serialized structure.
type Encoded struct {
	Bytes           []byte
	FirstIFD        uint32 // absolute offset of IFD0
	ThumbnailOffset uint32 // absolute offset of the thumbnail data, 0 if none
}

type slot struct {
	g  Group
	id uint16
}

// Encode lays out every non-empty directory in group order, each followed
// by its out-of-line values, and recomputes all pointer and thumbnail
// offsets. Values of four bytes or less are always written inline, so a
// structure that stored small values out of line shrinks on re-encode.
func (s *Structure) Encode(opts EncodeOptions) (*Encoded, error) {
	order := s.Order
	if order == nil {
		order = binary.BigEndian
	}
	var dirs [NumGroups]*IFD
	for g, d := range s.IFDs {
		dirs[g] = d.Clone()
	}
	for g, ptrs := range pointerTargets {
		for id := range ptrs {
			if dirs[g] != nil {
				dirs[g].Delete(id)
			}
		}
	}
	has := func(g Group) bool { return dirs[g].Len() > 0 }
	if dirs[GroupPrimary] == nil {
		dirs[GroupPrimary] = NewIFD(GroupPrimary)
	}
	if has(GroupInterop) && dirs[GroupExif] == nil {
		dirs[GroupExif] = NewIFD(GroupExif)
	}
	primary := dirs[GroupPrimary]
	withExif := has(GroupExif) || has(GroupInterop)
	withGPS := has(GroupGPS)
	withInterop := has(GroupInterop)
	withThumb := has(GroupThumbnail)
	withThumbData := withThumb && len(opts.Thumbnail) > 0

	if withExif {
		primary.Set(NewLong(TagExifIFDPointer, 0, order))
	}
	if withGPS {
		primary.Set(NewLong(TagGPSIFDPointer, 0, order))
	}
	if withInterop {
		dirs[GroupExif].Set(NewLong(TagInteropIFDPointer, 0, order))
	}
	thumb := dirs[GroupThumbnail]
	switch {
	case withThumbData && opts.StripCounts != nil:
		thumb.Delete(TagJPEGInterchange)
		thumb.Delete(TagJPEGInterchangeLength)
		thumb.Set(NewLongs(TagStripOffsets, make([]uint32, len(opts.StripCounts)), order))
		thumb.Set(NewLongs(TagStripByteCounts, opts.StripCounts, order))
	case withThumbData:
		thumb.Set(NewLong(TagJPEGInterchange, 0, order))
		thumb.Set(NewLong(TagJPEGInterchangeLength, uint32(len(opts.Thumbnail)), order))
	case withThumb && !opts.InPlace:
		// the data these point at is not being carried over
		for _, id := range []uint16{TagJPEGInterchange, TagJPEGInterchangeLength, TagStripOffsets, TagStripByteCounts} {
			thumb.Delete(id)
		}
		withThumb = has(GroupThumbnail)
	}

	written := []Group{GroupPrimary}
	if withExif {
		written = append(written, GroupExif)
	}
	if withGPS {
		written = append(written, GroupGPS)
	}
	if withInterop {
		written = append(written, GroupInterop)
	}
	if withThumb {
		written = append(written, GroupThumbnail)
	}

	pos := 0
	if !opts.NoHeader {
		pos = HeaderSize
	}
	ifdAt := map[Group]int{}
	valueAt := map[slot]int{}
	for _, g := range written {
		d := dirs[g]
		if d.Len() > math.MaxUint16 {
			return nil, errors.Wrapf(core.ErrInvalidArgument, "tiff: %s directory has %d entries", g, d.Len())
		}
		pos = align(pos)
		ifdAt[g] = pos
		pos += 2 + 12*d.Len() + 4
		for _, id := range d.IDs() {
			if e := d.Entries[id]; len(e.Value) > 4 {
				pos = align(pos)
				valueAt[slot{g, id}] = pos
				pos += len(e.Value)
			}
		}
	}
	thumbAt := 0
	if withThumbData {
		pos = align(pos)
		thumbAt = pos
		pos += len(opts.Thumbnail)
	}
	if uint64(opts.Base)+uint64(pos) > math.MaxUint32 {
		return nil, errors.Wrapf(core.ErrIO, "tiff: structure of %d bytes does not fit 32-bit offsets", pos)
	}
	abs := func(local int) uint32 { return opts.Base + uint32(local) }

	if withExif {
		primary.Set(NewLong(TagExifIFDPointer, abs(ifdAt[GroupExif]), order))
	}
	if withGPS {
		primary.Set(NewLong(TagGPSIFDPointer, abs(ifdAt[GroupGPS]), order))
	}
	if withInterop {
		dirs[GroupExif].Set(NewLong(TagInteropIFDPointer, abs(ifdAt[GroupInterop]), order))
	}
	if withThumbData {
		if opts.StripCounts != nil {
			offs := make([]uint32, len(opts.StripCounts))
			at := abs(thumbAt)
			for i, n := range opts.StripCounts {
				offs[i] = at
				at += n
			}
			thumb.Set(NewLongs(TagStripOffsets, offs, order))
		} else {
			thumb.Set(NewLong(TagJPEGInterchange, abs(thumbAt), order))
		}
	}

	w := NewWriter(order)
	if !opts.NoHeader {
		w.Write(OrderMark(order))
		w.Uint16(MagicTIFF)
		w.Uint32(abs(ifdAt[GroupPrimary]))
	}
	for _, g := range written {
		d := dirs[g]
		ids := d.IDs()
		w.PadTo(ifdAt[g])
		w.Uint16(uint16(len(ids)))
		for _, id := range ids {
			e := d.Entries[id]
			w.Uint16(e.ID)
			w.Uint16(uint16(e.Type))
			w.Uint32(e.Count)
			if len(e.Value) > 4 {
				w.Uint32(abs(valueAt[slot{g, id}]))
				continue
			}
			var inline [4]byte
			copy(inline[:], e.Value)
			w.Write(inline[:])
		}
		var next uint32
		switch {
		case g == GroupPrimary && withThumb:
			next = abs(ifdAt[GroupThumbnail])
		case g == GroupThumbnail && opts.InPlace:
			next = d.Next
		}
		w.Uint32(next)
		for _, id := range ids {
			if at, ok := valueAt[slot{g, id}]; ok {
				w.PadTo(at)
				w.Write(d.Entries[id].Value)
			}
		}
	}
	out := &Encoded{FirstIFD: abs(ifdAt[GroupPrimary])}
	if withThumbData {
		w.PadTo(thumbAt)
		w.Write(opts.Thumbnail)
		out.ThumbnailOffset = abs(thumbAt)
	}
	out.Bytes = w.Bytes()
	return out, nil
}

func align(n int) int { return (n + 1) &^ 1 }
