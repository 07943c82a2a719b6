package container

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ankit-chaubey/exif-surgery/core"
)

// ─── JPEG ────────────────────────────────────────────────────────────────────

// MaxAPP1Payload is the largest payload a JPEG segment length can describe.
const MaxAPP1Payload = 0xFFFF - 2

type iccChunk struct {
	seq  byte
	data []byte
	off  int64
}

type extXMPChunk struct {
	full uint32
	at   uint32
	data []byte
	off  int64
}

func isSOF(m byte) bool {
	return m >= 0xC0 && m <= 0xCF && m != 0xC4 && m != 0xC8 && m != 0xCC
}

func locateJPEG(b []byte, log zerolog.Logger) *Located {
	loc := &Located{InsertAt: 2}
	var icc []iccChunk
	ext := map[string][]extXMPChunk{}
	var extOrder []string

	leading := true
	pos := int64(2)
	n := int64(len(b))
	for pos+1 < n {
		if b[pos] != 0xFF {
			next := bytes.IndexByte(b[pos:], 0xFF)
			if next < 0 {
				break
			}
			log.Debug().Int64("offset", pos).Int("skipped", next).Msg("jpeg: garbage between segments")
			pos += int64(next)
			continue
		}
		marker := b[pos+1]
		switch {
		case marker == 0xFF:
			pos++
			continue
		case marker == 0x00, marker == 0x01, marker == core.MarkerSOI, marker >= 0xD0 && marker <= 0xD7:
			pos += 2
			continue
		case marker == core.MarkerSOS, marker == core.MarkerEOI:
			return finishJPEG(loc, icc, ext, extOrder)
		}
		if pos+4 > n {
			break
		}
		size := int64(binary.BigEndian.Uint16(b[pos+2:]))
		if size < 2 || pos+2+size > n {
			log.Debug().Int64("offset", pos).Uint8("marker", marker).Int64("length", size).Msg("jpeg: truncated segment")
			break
		}
		payload := b[pos+4 : pos+2+size]
		body := pos + 4
		span := 2 + size

		switch {
		case marker == core.MarkerAPP0:
			if leading {
				loc.InsertAt = pos + span
			}
		case marker == core.MarkerAPP1 && bytes.HasPrefix(payload, core.ExifIdentifier):
			loc.add(KindExif, pos, span)
			if loc.Exif == nil {
				id := int64(len(core.ExifIdentifier))
				loc.Exif = newBlock(payload[id:], body+id)
			}
		case marker == core.MarkerAPP1 && bytes.HasPrefix(payload, core.XMPIdentifier):
			loc.add(KindXMP, pos, span)
			if loc.XMP == nil {
				id := int64(len(core.XMPIdentifier))
				loc.XMP = newBlock(payload[id:], body+id)
			}
		case (marker == core.MarkerAPP1 || marker == core.MarkerAPP2) && bytes.HasPrefix(payload, core.ExtXMPIdentifier):
			loc.add(KindExtendedXMP, pos, span)
			rest := payload[len(core.ExtXMPIdentifier):]
			if len(rest) < 40 {
				log.Debug().Int64("offset", pos).Msg("jpeg: short extended xmp header")
				break
			}
			guid := string(rest[:32])
			if _, seen := ext[guid]; !seen {
				extOrder = append(extOrder, guid)
			}
			ext[guid] = append(ext[guid], extXMPChunk{
				full: binary.BigEndian.Uint32(rest[32:]),
				at:   binary.BigEndian.Uint32(rest[36:]),
				data: rest[40:],
				off:  body + int64(len(core.ExtXMPIdentifier)) + 40,
			})
		case marker == core.MarkerAPP2 && bytes.HasPrefix(payload, core.ICCIdentifier):
			loc.add(KindICC, pos, span)
			id := int64(len(core.ICCIdentifier))
			if int64(len(payload)) < id+2 {
				break
			}
			icc = append(icc, iccChunk{seq: payload[id], data: payload[id+2:], off: body + id + 2})
		case marker == core.MarkerAPP13 && bytes.HasPrefix(payload, core.PhotoshopIdentifier):
			loc.add(KindPhotoshop, pos, span)
			if loc.Photoshop == nil {
				id := int64(len(core.PhotoshopIdentifier))
				loc.Photoshop = newBlock(payload[id:], body+id)
			}
		case isSOF(marker) && len(payload) >= 5:
			loc.Height = int(binary.BigEndian.Uint16(payload[1:]))
			loc.Width = int(binary.BigEndian.Uint16(payload[3:]))
			loc.HasGeometry = true
		}
		if marker != core.MarkerAPP0 {
			leading = false
		}
		pos += span
	}
	return finishJPEG(loc, icc, ext, extOrder)
}

func finishJPEG(loc *Located, icc []iccChunk, ext map[string][]extXMPChunk, extOrder []string) *Located {
	switch len(icc) {
	case 0:
	case 1:
		loc.ICC = newBlock(icc[0].data, icc[0].off)
	default:
		sort.SliceStable(icc, func(i, j int) bool { return icc[i].seq < icc[j].seq })
		var data []byte
		for _, c := range icc {
			data = append(data, c.data...)
		}
		loc.ICC = assembledBlock(data)
	}
	if len(extOrder) > 0 {
		loc.ExtendedXMP = assembleExtendedXMP(ext[extOrder[0]])
	}
	return loc
}

// assembleExtendedXMP places every chunk at its declared offset inside a
// buffer of the declared full length.
func assembleExtendedXMP(chunks []extXMPChunk) *Block {
	if len(chunks) == 1 && chunks[0].at == 0 && int(chunks[0].full) == len(chunks[0].data) {
		return newBlock(chunks[0].data, chunks[0].off)
	}
	full := chunks[0].full
	if full > maxInflated {
		full = 0
		for _, c := range chunks {
			if end := c.at + uint32(len(c.data)); end > full && end <= maxInflated {
				full = end
			}
		}
	}
	data := make([]byte, full)
	for _, c := range chunks {
		if uint64(c.at)+uint64(len(c.data)) > uint64(full) {
			continue
		}
		copy(data[c.at:], c.data)
	}
	return assembledBlock(data)
}

// APP1 wraps a TIFF structure into a complete EXIF APP1 segment.
func APP1(tiff []byte) ([]byte, error) {
	size := len(core.ExifIdentifier) + len(tiff)
	if size > MaxAPP1Payload {
		return nil, &SegmentOverflowError{Size: size}
	}
	seg := make([]byte, 0, 4+size)
	seg = append(seg, 0xFF, core.MarkerAPP1)
	seg = binary.BigEndian.AppendUint16(seg, uint16(size+2))
	seg = append(seg, core.ExifIdentifier...)
	return append(seg, tiff...), nil
}

func rebuildJPEG(b []byte, loc *Located, rw Rewrite) ([]byte, error) {
	if len(b) < 2 || b[0] != 0xFF || b[1] != core.MarkerSOI {
		return nil, errors.Wrap(core.ErrInvalidFormat, "jpeg: missing start-of-image marker")
	}
	var unit []byte
	if rw.Exif != nil {
		var err error
		if unit, err = APP1(rw.Exif); err != nil {
			return nil, err
		}
	}
	return splice(b, loc.Segments, unit, loc.InsertAt, rw), nil
}
