package container

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/image/webp"

	"github.com/ankit-chaubey/exif-surgery/core"
)

// ─── WebP ────────────────────────────────────────────────────────────────────

// VP8X feature flags.
const (
	VP8XAnimation byte = 0x02
	VP8XXMP       byte = 0x04
	VP8XExif      byte = 0x08
	VP8XAlpha     byte = 0x10
	VP8XICC       byte = 0x20
)

const riffHeaderSize = 12

type riffChunk struct {
	fourCC string
	data   []byte
	span   core.Range
}

// riffChunks walks the sub-chunks of a RIFF/WEBP file. tail is the offset
// where walking stopped: a truncated chunk or the end of the declared RIFF
// size. Bytes from tail on are kept verbatim by rebuilds.
func riffChunks(b []byte, log zerolog.Logger) (chunks []riffChunk, bodyEnd, tail int64) {
	n := int64(len(b))
	bodyEnd = n
	if n >= 8 {
		if declared := 8 + int64(binary.LittleEndian.Uint32(b[4:])); declared < n {
			bodyEnd = declared
		}
	}
	pos := int64(riffHeaderSize)
	if bodyEnd < pos {
		log.Debug().Int64("declared", bodyEnd-8).Msg("webp: RIFF size smaller than its header")
		return nil, bodyEnd, bodyEnd
	}
	for pos+8 <= bodyEnd {
		fourCC := string(b[pos : pos+4])
		size := int64(binary.LittleEndian.Uint32(b[pos+4:]))
		body := pos + 8
		if size > bodyEnd-body {
			log.Debug().Int64("offset", pos).Str("chunk", fourCC).Int64("length", size).Msg("webp: truncated chunk")
			break
		}
		end := body + size + size&1
		if end > bodyEnd {
			end = bodyEnd
		}
		chunks = append(chunks, riffChunk{fourCC: fourCC, data: b[body : body+size], span: core.Range{Offset: pos, Length: end - pos}})
		pos = end
	}
	return chunks, bodyEnd, pos
}

// webpExifPayload strips the APP1 framing some writers leave in front of
// the TIFF structure.
func webpExifPayload(data []byte) int {
	skip := 0
	if len(data) >= 4 && data[0] == 0xFF && data[1] == core.MarkerAPP1 {
		skip = 4
	}
	if bytes.HasPrefix(data[skip:], core.ExifIdentifier) {
		skip += len(core.ExifIdentifier)
	}
	return skip
}

func locateWebP(b []byte, log zerolog.Logger) *Located {
	loc := &Located{}
	chunks, _, _ := riffChunks(b, log)
	for _, c := range chunks {
		body := c.span.Offset + 8
		switch c.fourCC {
		case "EXIF":
			loc.add(KindExif, c.span.Offset, c.span.Length)
			if loc.Exif == nil {
				skip := webpExifPayload(c.data)
				loc.Exif = newBlock(c.data[skip:], body+int64(skip))
			}
		case "XMP ":
			loc.add(KindXMP, c.span.Offset, c.span.Length)
			if loc.XMP == nil {
				loc.XMP = newBlock(c.data, body)
			}
		case "ICCP":
			loc.add(KindICC, c.span.Offset, c.span.Length)
			if loc.ICC == nil {
				loc.ICC = newBlock(c.data, body)
			}
		}
	}
	if cfg, err := webp.DecodeConfig(bytes.NewReader(b)); err == nil {
		loc.Width, loc.Height = cfg.Width, cfg.Height
		loc.HasGeometry = true
	} else {
		log.Debug().Err(err).Msg("webp: no geometry")
	}
	return loc
}

func appendRIFFChunk(out []byte, fourCC string, data []byte) []byte {
	out = append(out, fourCC...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(data)))
	out = append(out, data...)
	if len(data)%2 == 1 {
		out = append(out, 0)
	}
	return out
}

func rebuildWebP(b []byte, loc *Located, rw Rewrite) ([]byte, error) {
	if len(b) < riffHeaderSize || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WEBP" {
		return nil, errors.Wrap(core.ErrInvalidFormat, "webp: missing RIFF header")
	}
	chunks, bodyEnd, tail := riffChunks(b, zerolog.Nop())
	if bodyEnd < riffHeaderSize || tail > bodyEnd {
		return nil, errors.Wrapf(core.ErrInvalidFormat, "webp: RIFF size %d smaller than its header", bodyEnd-8)
	}

	type piece struct {
		fourCC string
		raw    []byte
	}
	var pieces []piece
	emitExif := func() {
		pieces = append(pieces, piece{"EXIF", appendRIFFChunk(nil, "EXIF", rw.Exif)})
	}
	written := rw.Exif == nil
	var vp8x []byte
	alpha := false
	for _, c := range chunks {
		raw := b[c.span.Offset:c.span.End()]
		switch c.fourCC {
		case "VP8X":
			if vp8x == nil && len(c.data) >= 10 {
				vp8x = append([]byte(nil), c.data...)
				continue
			}
		case "EXIF":
			if !written {
				emitExif()
				written = true
			}
			continue
		case "XMP ":
			if !written {
				emitExif()
				written = true
			}
			if rw.Exclusive {
				continue
			}
		case "ICCP":
			if rw.Exclusive {
				continue
			}
		case "ALPH":
			alpha = true
		case "VP8L":
			if len(c.data) >= 5 && binary.LittleEndian.Uint32(c.data[1:])&(1<<28) != 0 {
				alpha = true
			}
		}
		pieces = append(pieces, piece{c.fourCC, raw})
	}
	if !written {
		emitExif()
	}

	var flags byte
	for _, p := range pieces {
		switch p.fourCC {
		case "EXIF":
			flags |= VP8XExif
		case "XMP ":
			flags |= VP8XXMP
		case "ICCP":
			flags |= VP8XICC
		}
	}
	switch {
	case vp8x != nil:
		vp8x[0] = vp8x[0]&(VP8XAlpha|VP8XAnimation) | flags
	case flags != 0:
		cfg, err := webp.DecodeConfig(bytes.NewReader(b))
		if err != nil {
			return nil, errors.Wrap(core.ErrInvalidFormat, "webp: cannot read canvas size")
		}
		if alpha {
			flags |= VP8XAlpha
		}
		vp8x = make([]byte, 10)
		vp8x[0] = flags
		w, h := uint32(cfg.Width-1), uint32(cfg.Height-1)
		vp8x[4], vp8x[5], vp8x[6] = byte(w), byte(w>>8), byte(w>>16)
		vp8x[7], vp8x[8], vp8x[9] = byte(h), byte(h>>8), byte(h>>16)
	}

	body := make([]byte, 0, len(b)+len(rw.Exif)+32)
	if vp8x != nil {
		body = appendRIFFChunk(body, "VP8X", vp8x)
	}
	for _, p := range pieces {
		body = append(body, p.raw...)
	}
	body = append(body, b[tail:bodyEnd]...)

	out := make([]byte, 0, riffHeaderSize+len(body)+len(b)-int(bodyEnd))
	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(4+len(body)))
	out = append(out, "WEBP"...)
	out = append(out, body...)
	return append(out, b[bodyEnd:]...), nil
}
