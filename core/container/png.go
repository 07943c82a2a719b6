package container

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ankit-chaubey/exif-surgery/core"
)

// ─── PNG ─────────────────────────────────────────────────────────────────────

const pngXMPKeyword = "XML:com.adobe.xmp"

// maxInflated caps decompressed iCCP and iTXt payloads.
const maxInflated = 16 << 20

func locatePNG(b []byte, log zerolog.Logger) *Located {
	pos := int64(len(core.PNGSignature))
	loc := &Located{InsertAt: pos}
	n := int64(len(b))
	for pos+12 <= n {
		size := int64(binary.BigEndian.Uint32(b[pos:]))
		typ := string(b[pos+4 : pos+8])
		body := pos + 8
		end := body + size + 4
		if size > n || end > n {
			log.Debug().Int64("offset", pos).Str("chunk", typ).Int64("length", size).Msg("png: truncated chunk")
			break
		}
		data := b[body : body+size]

		switch typ {
		case "IHDR":
			if len(data) >= 8 {
				loc.Width = int(binary.BigEndian.Uint32(data))
				loc.Height = int(binary.BigEndian.Uint32(data[4:]))
				loc.HasGeometry = true
			}
			loc.InsertAt = end
		case "eXIf":
			loc.add(KindExif, pos, end-pos)
			if loc.Exif == nil {
				off := body
				if bytes.HasPrefix(data, core.ExifIdentifier) {
					off += int64(len(core.ExifIdentifier))
				}
				loc.Exif = newBlock(b[off:body+size], off)
			}
		case "iCCP":
			loc.add(KindICC, pos, end-pos)
			if loc.ICC == nil {
				loc.ICC = pngICC(data, log)
			}
		case "iTXt":
			if !bytes.HasPrefix(data, []byte(pngXMPKeyword+"\x00")) {
				break
			}
			loc.add(KindXMP, pos, end-pos)
			if loc.XMP == nil {
				loc.XMP = pngXMP(data, body, log)
			}
		case "IEND":
			return loc
		}
		pos = end
	}
	return loc
}

// pngICC reads "name\0 method compressed-profile".
func pngICC(data []byte, log zerolog.Logger) *Block {
	nul := bytes.IndexByte(data, 0)
	if nul < 0 || nul+2 > len(data) {
		log.Debug().Msg("png: malformed iCCP chunk")
		return nil
	}
	profile, err := inflate(data[nul+2:])
	if err != nil {
		log.Debug().Err(err).Msg("png: cannot inflate iCCP profile")
		return nil
	}
	return assembledBlock(profile)
}

// pngXMP reads "keyword\0 flag method lang\0 translated\0 text".
func pngXMP(data []byte, body int64, log zerolog.Logger) *Block {
	p := len(pngXMPKeyword) + 1
	if p+2 > len(data) {
		return nil
	}
	compressed := data[p] == 1
	p += 2
	for i := 0; i < 2; i++ {
		nul := bytes.IndexByte(data[p:], 0)
		if nul < 0 {
			log.Debug().Msg("png: malformed iTXt chunk")
			return nil
		}
		p += nul + 1
	}
	if !compressed {
		return newBlock(data[p:], body+int64(p))
	}
	text, err := inflate(data[p:])
	if err != nil {
		log.Debug().Err(err).Msg("png: cannot inflate iTXt text")
		return nil
	}
	return assembledBlock(text)
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(io.LimitReader(zr, maxInflated))
}

// PNGChunk frames data as a PNG chunk with its CRC.
func PNGChunk(typ string, data []byte) []byte {
	out := make([]byte, 0, 12+len(data))
	out = binary.BigEndian.AppendUint32(out, uint32(len(data)))
	out = append(out, typ...)
	out = append(out, data...)
	crc := crc32.NewIEEE()
	crc.Write(out[4:])
	return binary.BigEndian.AppendUint32(out, crc.Sum32())
}

func rebuildPNG(b []byte, loc *Located, rw Rewrite) ([]byte, error) {
	if !bytes.HasPrefix(b, core.PNGSignature) {
		return nil, errors.Wrap(core.ErrInvalidFormat, "png: missing signature")
	}
	var unit []byte
	if rw.Exif != nil {
		unit = PNGChunk("eXIf", rw.Exif)
	}
	return splice(b, loc.Segments, unit, loc.InsertAt, rw), nil
}
