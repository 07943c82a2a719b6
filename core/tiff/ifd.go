package tiff

import (
	"encoding/binary"
	"sort"

	"github.com/rs/zerolog"

	"github.com/ankit-chaubey/exif-surgery/core"
)

// IFD is one tag directory.
type IFD struct {
	Group   Group
	Entries map[uint16]*Entry
	// Next is the raw next-IFD link as read. Only the thumbnail
	// directory keeps it, so multi-page TIFF chains survive a rewrite.
	Next uint32
}

func NewIFD(g Group) *IFD {
	return &IFD{Group: g, Entries: map[uint16]*Entry{}}
}

func (d *IFD) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Entries)
}

func (d *IFD) Get(id uint16) (*Entry, bool) {
	if d == nil {
		return nil, false
	}
	e, ok := d.Entries[id]
	return e, ok
}

func (d *IFD) Set(e *Entry) { d.Entries[e.ID] = e }

func (d *IFD) Delete(id uint16) { delete(d.Entries, id) }

// IDs returns the entry ids in ascending order.
func (d *IFD) IDs() []uint16 {
	if d == nil {
		return nil
	}
	ids := make([]uint16, 0, len(d.Entries))
	for id := range d.Entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (d *IFD) Clone() *IFD {
	if d == nil {
		return nil
	}
	c := &IFD{Group: d.Group, Next: d.Next, Entries: make(map[uint16]*Entry, len(d.Entries))}
	for id, e := range d.Entries {
		c.Entries[id] = e.Clone()
	}
	return c
}

// Structure is a parsed EXIF/TIFF blob: a byte order plus up to one
// directory per group.
type Structure struct {
	Order binary.ByteOrder
	Magic uint16
	IFDs  [NumGroups]*IFD

	// Regions covers the directory tables and out-of-line values that were
	// parsed, relative to the start of the structure.
	Regions []core.Range
}

func NewStructure(order binary.ByteOrder) *Structure {
	return &Structure{Order: order, Magic: MagicTIFF}
}

// IFD returns the directory for g, creating it when missing.
func (s *Structure) IFD(g Group) *IFD {
	if s.IFDs[g] == nil {
		s.IFDs[g] = NewIFD(g)
	}
	return s.IFDs[g]
}

// Lookup returns the entry for id in g without creating the directory.
func (s *Structure) Lookup(g Group, id uint16) (*Entry, bool) {
	return s.IFDs[g].Get(id)
}

// Empty reports whether no directory holds an entry.
func (s *Structure) Empty() bool {
	for _, d := range s.IFDs {
		if d.Len() > 0 {
			return false
		}
	}
	return true
}

func (s *Structure) Clone() *Structure {
	c := &Structure{Order: s.Order, Magic: s.Magic}
	for g, d := range s.IFDs {
		c.IFDs[g] = d.Clone()
	}
	c.Regions = append([]core.Range(nil), s.Regions...)
	return c
}

// maxDepth bounds sub-IFD recursion on hostile input.
const maxDepth = 4

type parser struct {
	r       *Reader
	s       *Structure
	base    int64
	visited map[uint32]bool
	log     zerolog.Logger
}

// Parse decodes the TIFF structure in b. base is the absolute offset of b
// in the original source, or -1 when ranges are not tracked. Only a bad
// header is an error: corrupt directories and offsets drop the affected
// entries and the rest of the structure is kept.
func Parse(b []byte, base int64, log zerolog.Logger) (*Structure, error) {
	h, err := ParseHeader(b)
	if err != nil {
		return nil, err
	}
	s := NewStructure(h.Order)
	s.Magic = h.Magic
	p := &parser{
		r:       NewReader(b, h.Order),
		s:       s,
		base:    base,
		visited: map[uint32]bool{},
		log:     log,
	}
	p.readIFD(h.FirstIFD, GroupPrimary, 0)
	return s, nil
}

func (p *parser) readIFD(off uint32, g Group, depth int) {
	if depth > maxDepth {
		return
	}
	if p.visited[off] {
		p.log.Debug().Uint32("offset", off).Str("group", g.String()).Msg("tiff: directory loop, skipping")
		return
	}
	p.visited[off] = true

	count, ok := p.r.Uint16(int64(off))
	if !ok {
		p.log.Debug().Uint32("offset", off).Str("group", g.String()).Msg("tiff: directory offset out of bounds")
		return
	}
	ifd := p.s.IFD(g)
	start := int64(off) + 2
	n := int64(count)
	if fits := (p.r.Len() - start) / 12; n > fits {
		p.log.Debug().Int64("declared", n).Int64("fits", fits).Str("group", g.String()).Msg("tiff: truncated directory")
		n = fits
	}
	if n < 0 {
		n = 0
	}
	p.s.Regions = append(p.s.Regions, core.Range{Offset: int64(off), Length: 2 + 12*n + 4})

	for i := int64(0); i < n; i++ {
		p.readEntry(ifd, start+12*i, depth)
	}

	next, ok := p.r.Uint32(start + 12*n)
	if !ok || next == 0 {
		return
	}
	switch g {
	case GroupPrimary:
		if int64(next) < p.r.Len() {
			p.readIFD(next, GroupThumbnail, depth+1)
		}
	case GroupThumbnail:
		ifd.Next = next
	}
}

func (p *parser) readEntry(ifd *IFD, at int64, depth int) {
	id, _ := p.r.Uint16(at)
	typ, _ := p.r.Uint16(at + 2)
	count, _ := p.r.Uint32(at + 4)
	dt := DataType(typ)
	entryLog := func() *zerolog.Event {
		return p.log.Debug().Str("group", ifd.Group.String()).Uint16("tag", id).Int64("offset", at)
	}
	if !dt.Valid() {
		entryLog().Uint16("type", typ).Msg("tiff: skipping entry with unknown type")
		return
	}
	size := int64(count) * int64(dt.Size())
	if size > p.r.Len() {
		entryLog().Int64("size", size).Msg("tiff: skipping oversized entry")
		return
	}
	valueAt := at + 8
	if size > 4 {
		o, _ := p.r.Uint32(at + 8)
		valueAt = int64(o)
	}
	value, ok := p.r.Bytes(valueAt, size)
	if !ok {
		entryLog().Int64("valueOffset", valueAt).Msg("tiff: skipping entry with invalid data offset")
		return
	}

	if target, isPtr := PointerTarget(ifd.Group, id); isPtr {
		var sub uint32
		switch {
		case (dt == Long || dt == IFDType) && count >= 1:
			sub = p.r.order.Uint32(value)
		case dt == Short && count >= 1:
			sub = uint32(p.r.order.Uint16(value))
		}
		if sub > 0 && int64(sub) < p.r.Len() {
			p.readIFD(sub, target, depth+1)
		}
		return
	}

	if _, dup := ifd.Entries[id]; dup {
		return
	}
	if size > 4 {
		p.s.Regions = append(p.s.Regions, core.Range{Offset: valueAt, Length: size})
	}
	e := &Entry{ID: id, Type: dt, Count: count, Value: append([]byte(nil), value...), Offset: -1}
	if p.base >= 0 {
		e.Offset = p.base + valueAt
	}
	ifd.Entries[id] = e
}

// DataRegions returns the byte ranges referenced by strip, tile and JPEG
// interchange offsets of the primary and thumbnail directories, relative
// to the start of the structure.
func (s *Structure) DataRegions() []core.Range {
	var out []core.Range
	for _, g := range []Group{GroupPrimary, GroupThumbnail} {
		d := s.IFDs[g]
		out = append(out, s.pairedRegions(d, TagStripOffsets, TagStripByteCounts)...)
		out = append(out, s.pairedRegions(d, TagTileOffsets, TagTileByteCounts)...)
		out = append(out, s.pairedRegions(d, TagJPEGInterchange, TagJPEGInterchangeLength)...)
	}
	return out
}

func (s *Structure) pairedRegions(d *IFD, offTag, lenTag uint16) []core.Range {
	oe, ok1 := d.Get(offTag)
	le, ok2 := d.Get(lenTag)
	if !ok1 || !ok2 {
		return nil
	}
	offs, ok1 := oe.Uints(s.Order)
	lens, ok2 := le.Uints(s.Order)
	if !ok1 || !ok2 {
		return nil
	}
	var out []core.Range
	for i := 0; i < len(offs) && i < len(lens); i++ {
		out = append(out, core.Range{Offset: int64(offs[i]), Length: int64(lens[i])})
	}
	return out
}
