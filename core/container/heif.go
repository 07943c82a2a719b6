package container

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/rs/zerolog"

	"github.com/ankit-chaubey/exif-surgery/core"
)

// ─── HEIF ────────────────────────────────────────────────────────────────────

type box struct {
	typ       string
	start     int64
	dataStart int64
	end       int64
}

// boxes lists the boxes laid out back to back in b[start:end].
func boxes(b []byte, start, end int64, log zerolog.Logger) []box {
	var out []box
	pos := start
	for end-pos >= 8 {
		size := int64(binary.BigEndian.Uint32(b[pos:]))
		typ := string(b[pos+4 : pos+8])
		header := int64(8)
		switch size {
		case 0:
			size = end - pos
		case 1:
			if end-pos < 16 {
				return out
			}
			size = int64(binary.BigEndian.Uint64(b[pos+8:]))
			header = 16
		}
		if size < header || size > end-pos {
			log.Debug().Int64("offset", pos).Str("box", typ).Int64("size", size).Msg("heif: bad box size")
			return out
		}
		out = append(out, box{typ: typ, start: pos, dataStart: pos + header, end: pos + size})
		pos += size
	}
	return out
}

func findBox(list []box, typ string) (box, bool) {
	for _, bx := range list {
		if bx.typ == typ {
			return bx, true
		}
	}
	return box{}, false
}

type heifItem struct {
	typ         string
	contentType string
}

type extent struct {
	off, length uint64
}

type itemLocation struct {
	method  int
	base    uint64
	extents []extent
}

// cursor reads big-endian fields and remembers the first overrun.
type cursor struct {
	b   []byte
	pos int64
	end int64
	bad bool
}

func (c *cursor) uint(n int) uint64 {
	if n == 0 {
		return 0
	}
	if c.bad || c.pos+int64(n) > c.end {
		c.bad = true
		return 0
	}
	var v uint64
	for _, x := range c.b[c.pos : c.pos+int64(n)] {
		v = v<<8 | uint64(x)
	}
	c.pos += int64(n)
	return v
}

func (c *cursor) cstring() string {
	if c.bad {
		return ""
	}
	nul := bytes.IndexByte(c.b[c.pos:c.end], 0)
	if nul < 0 {
		c.bad = true
		return ""
	}
	s := string(c.b[c.pos : c.pos+int64(nul)])
	c.pos += int64(nul) + 1
	return s
}

func locateHEIF(b []byte, log zerolog.Logger) *Located {
	loc := &Located{}
	top := boxes(b, 0, int64(len(b)), log)
	meta, ok := findBox(top, "meta")
	if !ok || meta.end-meta.dataStart < 4 {
		return loc
	}
	children := boxes(b, meta.dataStart+4, meta.end, log)

	iinf, ok1 := findBox(children, "iinf")
	iloc, ok2 := findBox(children, "iloc")
	if !ok1 || !ok2 {
		log.Debug().Msg("heif: meta box without iinf/iloc")
		return loc
	}
	items := parseIINF(b, iinf, log)
	locs := parseILOC(b, iloc, log)
	var idat int64 = -1
	if bx, ok := findBox(children, "idat"); ok {
		idat = bx.dataStart
	}

	ids := make([]uint32, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		it := items[id]
		l, ok := locs[id]
		if !ok {
			continue
		}
		switch {
		case it.typ == "Exif" && loc.Exif == nil:
			blk := itemData(b, l, idat)
			if blk == nil || len(blk.Data) < 4 {
				continue
			}
			skip := 4 + int64(binary.BigEndian.Uint32(blk.Data))
			if skip > int64(len(blk.Data)) {
				log.Debug().Uint32("item", id).Msg("heif: exif header offset out of bounds")
				continue
			}
			loc.Exif = &Block{Data: blk.Data[skip:], Range: core.Range{Offset: -1, Length: int64(len(blk.Data)) - skip}}
			if blk.Contiguous() {
				loc.Exif.Range.Offset = blk.Range.Offset + skip
			}
		case it.typ == "mime" && it.contentType == "application/rdf+xml" && loc.XMP == nil:
			loc.XMP = itemData(b, l, idat)
		}
	}
	return loc
}

func parseIINF(b []byte, iinf box, log zerolog.Logger) map[uint32]heifItem {
	c := &cursor{b: b, pos: iinf.dataStart, end: iinf.end}
	version := c.uint(1)
	c.uint(3)
	if version == 0 {
		c.uint(2)
	} else {
		c.uint(4)
	}
	if c.bad {
		return nil
	}
	items := map[uint32]heifItem{}
	for _, e := range boxes(b, c.pos, iinf.end, log) {
		if e.typ != "infe" {
			continue
		}
		ec := &cursor{b: b, pos: e.dataStart, end: e.end}
		v := ec.uint(1)
		ec.uint(3)
		var id uint32
		switch v {
		case 2:
			id = uint32(ec.uint(2))
		case 3:
			id = uint32(ec.uint(4))
		default:
			continue
		}
		ec.uint(2)
		var it heifItem
		if ec.pos+4 <= ec.end {
			it.typ = string(b[ec.pos : ec.pos+4])
			ec.pos += 4
		}
		ec.cstring()
		if it.typ == "mime" {
			it.contentType = ec.cstring()
		}
		if ec.bad {
			log.Debug().Uint32("item", id).Msg("heif: short infe box")
		}
		items[id] = it
	}
	return items
}

func parseILOC(b []byte, iloc box, log zerolog.Logger) map[uint32]itemLocation {
	c := &cursor{b: b, pos: iloc.dataStart, end: iloc.end}
	version := c.uint(1)
	c.uint(3)
	sizes := c.uint(1)
	offsetSize, lengthSize := int(sizes>>4), int(sizes&0x0F)
	sizes = c.uint(1)
	baseSize, indexSize := int(sizes>>4), 0
	if version >= 1 {
		indexSize = int(sizes & 0x0F)
	}
	var count uint64
	if version < 2 {
		count = c.uint(2)
	} else {
		count = c.uint(4)
	}
	out := map[uint32]itemLocation{}
	for i := uint64(0); i < count && !c.bad; i++ {
		var id uint32
		if version < 2 {
			id = uint32(c.uint(2))
		} else {
			id = uint32(c.uint(4))
		}
		var l itemLocation
		if version == 1 || version == 2 {
			l.method = int(c.uint(2) & 0x0F)
		}
		c.uint(2)
		l.base = c.uint(baseSize)
		extents := c.uint(2)
		for e := uint64(0); e < extents && !c.bad; e++ {
			if indexSize > 0 {
				c.uint(indexSize)
			}
			off := c.uint(offsetSize)
			length := c.uint(lengthSize)
			l.extents = append(l.extents, extent{off: off, length: length})
		}
		if !c.bad {
			out[id] = l
		}
	}
	if c.bad {
		log.Debug().Int64("offset", iloc.start).Msg("heif: truncated iloc box")
	}
	return out
}

// itemData gathers an item's extents. Construction method 1 addresses
// the idat box; other non-zero methods are not followed.
func itemData(b []byte, l itemLocation, idat int64) *Block {
	var origin uint64
	switch l.method {
	case 0:
	case 1:
		if idat < 0 {
			return nil
		}
		origin = uint64(idat)
	default:
		return nil
	}
	n := uint64(len(b))
	var data []byte
	start := int64(-1)
	for i, e := range l.extents {
		at := origin + l.base + e.off
		length := e.length
		if length == 0 && len(l.extents) == 1 && at <= n {
			length = n - at
		}
		if at > n || length > n-at {
			return nil
		}
		if i == 0 {
			start = int64(at)
		}
		data = append(data, b[at:at+length]...)
	}
	if len(l.extents) == 1 {
		return newBlock(data, start)
	}
	return assembledBlock(data)
}
