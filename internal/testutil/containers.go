package testutil

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
)

// Gradient returns a small RGBA test picture.
func Gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 255 / w), uint8(y * 255 / h), 128, 255})
		}
	}
	return img
}

// JPEG encodes a gradient with no APPn segments after SOI.
func JPEG(w, h int) []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Gradient(w, h), &jpeg.Options{Quality: 90}); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Segment frames a marker segment.
func Segment(marker byte, payload []byte) []byte {
	out := []byte{0xFF, marker}
	out = binary.BigEndian.AppendUint16(out, uint16(len(payload)+2))
	return append(out, payload...)
}

// InsertSegments places segments right after SOI.
func InsertSegments(jpg []byte, segs ...[]byte) []byte {
	out := append([]byte(nil), jpg[:2]...)
	for _, s := range segs {
		out = append(out, s...)
	}
	return append(out, jpg[2:]...)
}

func ExifAPP1(tiff []byte) []byte {
	return Segment(0xE1, append([]byte("Exif\x00\x00"), tiff...))
}

func XMPAPP1(xmp string) []byte {
	return Segment(0xE1, append([]byte("http://ns.adobe.com/xap/1.0/\x00"), xmp...))
}

// ExtendedXMPAPP1s splits full into chunks carrying the GUID, total length
// and chunk offset.
func ExtendedXMPAPP1s(guid string, full []byte, chunk int) [][]byte {
	var out [][]byte
	for off := 0; off < len(full); off += chunk {
		end := off + chunk
		if end > len(full) {
			end = len(full)
		}
		p := []byte("http://ns.adobe.com/xmp/extension/\x00")
		p = append(p, guid...)
		p = binary.BigEndian.AppendUint32(p, uint32(len(full)))
		p = binary.BigEndian.AppendUint32(p, uint32(off))
		p = append(p, full[off:end]...)
		out = append(out, Segment(0xE1, p))
	}
	return out
}

// ICCAPP2s splits a profile over numbered APP2 segments.
func ICCAPP2s(profile []byte, chunk int) [][]byte {
	n := (len(profile) + chunk - 1) / chunk
	var out [][]byte
	for i := 0; i < n; i++ {
		end := (i + 1) * chunk
		if end > len(profile) {
			end = len(profile)
		}
		p := []byte("ICC_PROFILE\x00")
		p = append(p, byte(i+1), byte(n))
		p = append(p, profile[i*chunk:end]...)
		out = append(out, Segment(0xE2, p))
	}
	return out
}

// PhotoshopAPP13 wraps one IPTC resource in an 8BIM block.
func PhotoshopAPP13(iptc []byte) []byte {
	p := []byte("Photoshop 3.0\x00")
	p = append(p, "8BIM"...)
	p = binary.BigEndian.AppendUint16(p, 0x0404)
	p = append(p, 0, 0)
	p = binary.BigEndian.AppendUint32(p, uint32(len(iptc)))
	p = append(p, iptc...)
	if len(iptc)%2 == 1 {
		p = append(p, 0)
	}
	return Segment(0xED, p)
}

// CorruptJPEG is a JPEG whose EXIF directory is one entry of random bytes
// followed by more random data.
func CorruptJPEG(seed int64) []byte {
	data := make([]byte, 8096)
	rand.New(rand.NewSource(seed)).Read(data)
	head := []byte{0xFF, 0xD8, 0xFF, 0xE1}
	head = binary.BigEndian.AppendUint16(head, 350)
	head = append(head, "Exif\x00\x00"...)
	head = append(head, 'M', 'M', 0x00, 0x2A)
	head = binary.BigEndian.AppendUint32(head, 8)
	head = binary.BigEndian.AppendUint16(head, 1)
	copy(data, head)
	return data
}

// PNG encodes a gradient.
func PNG(w, h int) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, Gradient(w, h)); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// PNGChunk frames a chunk with its CRC.
func PNGChunk(typ string, data []byte) []byte {
	out := binary.BigEndian.AppendUint32(nil, uint32(len(data)))
	out = append(out, typ...)
	out = append(out, data...)
	crc := crc32.ChecksumIEEE(append([]byte(typ), data...))
	return binary.BigEndian.AppendUint32(out, crc)
}

// InsertPNGChunks places chunks after IHDR.
func InsertPNGChunks(p []byte, chunks ...[]byte) []byte {
	ihdrEnd := 8 + 4 + 4 + int(binary.BigEndian.Uint32(p[8:12])) + 4
	out := append([]byte(nil), p[:ihdrEnd]...)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return append(out, p[ihdrEnd:]...)
}

// PNGXMP is an iTXt chunk payload carrying XMP.
func PNGXMP(xmp string) []byte {
	p := []byte("XML:com.adobe.xmp\x00")
	p = append(p, 0, 0, 0, 0)
	return append(p, xmp...)
}

// WebPChunk frames a RIFF sub-chunk with padding.
func WebPChunk(fourCC string, data []byte) []byte {
	out := append([]byte(fourCC), binary.LittleEndian.AppendUint32(nil, uint32(len(data)))...)
	out = append(out, data...)
	if len(data)%2 == 1 {
		out = append(out, 0)
	}
	return out
}

// WebP wraps chunks in a RIFF/WEBP header.
func WebP(chunks ...[]byte) []byte {
	var body []byte
	for _, c := range chunks {
		body = append(body, c...)
	}
	out := []byte("RIFF")
	out = binary.LittleEndian.AppendUint32(out, uint32(len(body)+4))
	out = append(out, "WEBP"...)
	return append(out, body...)
}

// VP8L is a lossless bitstream header for a w×h picture followed by
// filler bytes; enough for geometry reads.
func VP8L(w, h int, alpha bool) []byte {
	bits := uint32(w-1) | uint32(h-1)<<14
	if alpha {
		bits |= 1 << 28
	}
	out := []byte{0x2F}
	out = binary.LittleEndian.AppendUint32(out, bits)
	return append(out, 0x00, 0x00, 0x00, 0x00, 0x00)
}

// VP8X is an extended-format header payload.
func VP8X(flags byte, w, h int) []byte {
	out := []byte{flags, 0, 0, 0}
	cw, ch := uint32(w-1), uint32(h-1)
	out = append(out, byte(cw), byte(cw>>8), byte(cw>>16))
	return append(out, byte(ch), byte(ch>>8), byte(ch>>16))
}

// Box frames an ISOBMFF box.
func Box(typ string, payload ...[]byte) []byte {
	var body []byte
	for _, p := range payload {
		body = append(body, p...)
	}
	out := binary.BigEndian.AppendUint32(nil, uint32(len(body)+8))
	out = append(out, typ...)
	return append(out, body...)
}

// FullBox frames a box with version and flags.
func FullBox(typ string, version byte, payload ...[]byte) []byte {
	return Box(typ, append([][]byte{{version, 0, 0, 0}}, payload...)...)
}

// HEIF builds a still-image file whose meta box lists an Exif item and,
// when xmp is not empty, an XMP mime item. Both live in mdat.
func HEIF(tiff []byte, xmp string) []byte {
	exifItem := binary.BigEndian.AppendUint32(nil, 6)
	exifItem = append(exifItem, "Exif\x00\x00"...)
	exifItem = append(exifItem, tiff...)

	ftyp := Box("ftyp", []byte("heic"), []byte{0, 0, 0, 0}, []byte("mif1heic"))
	hdlr := FullBox("hdlr", 0, []byte{0, 0, 0, 0}, []byte("pict"), make([]byte, 12), []byte{0})

	infe := func(id uint16, typ string, extra []byte) []byte {
		p := binary.BigEndian.AppendUint16(nil, id)
		p = append(p, 0, 0)
		p = append(p, typ...)
		p = append(p, 0)
		return FullBox("infe", 2, p, extra)
	}
	items := [][]byte{infe(1, "hvc1", nil), infe(2, "Exif", nil)}
	if xmp != "" {
		items = append(items, infe(3, "mime", []byte("application/rdf+xml\x00")))
	}
	iinf := FullBox("iinf", 0, append([][]byte{binary.BigEndian.AppendUint16(nil, uint16(len(items)))}, items...)...)

	// iloc v0: offset_size=4 length_size=4 base_offset_size=0
	build := func(mdatData int) []byte {
		type loc struct {
			id       uint16
			off, len uint32
		}
		locs := []loc{{1, uint32(mdatData), 4}, {2, uint32(mdatData + 4), uint32(len(exifItem))}}
		if xmp != "" {
			locs = append(locs, loc{3, uint32(mdatData + 4 + len(exifItem)), uint32(len(xmp))})
		}
		p := []byte{0x44, 0x00}
		p = binary.BigEndian.AppendUint16(p, uint16(len(locs)))
		for _, l := range locs {
			p = binary.BigEndian.AppendUint16(p, l.id)
			p = binary.BigEndian.AppendUint16(p, 0)
			p = binary.BigEndian.AppendUint16(p, 1)
			p = binary.BigEndian.AppendUint32(p, l.off)
			p = binary.BigEndian.AppendUint32(p, l.len)
		}
		meta := FullBox("meta", 0, hdlr, FullBox("iloc", 0, p), iinf)
		return meta
	}
	sized := build(0)
	mdatData := len(ftyp) + len(sized) + 8
	meta := build(mdatData)

	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	payload = append(payload, exifItem...)
	payload = append(payload, xmp...)
	out := append(append([]byte(nil), ftyp...), meta...)
	return append(out, Box("mdat", payload)...)
}
