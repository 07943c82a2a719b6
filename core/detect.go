package core

import (
	"bytes"
	"io"
	"os"
	"strings"
)

// FormatID enumerates every recognised container.
type FormatID string

const (
	FmtJPEG FormatID = "jpeg"
	FmtPNG  FormatID = "png"
	FmtWebP FormatID = "webp"
	FmtHEIC FormatID = "heic"
	FmtTIFF FormatID = "tiff"
	FmtDNG  FormatID = "dng"
	FmtORF  FormatID = "orf"
	FmtRW2  FormatID = "rw2"

	// FmtExif is a bare TIFF structure with no container around it.
	FmtExif FormatID = "exif"

	FmtUnknown FormatID = "unknown"
)

// Signature and marker bytes shared with every other EXIF reader.
var (
	JPEGSignature       = []byte{0xFF, 0xD8, 0xFF}
	PNGSignature        = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	ExifIdentifier      = []byte("Exif\x00\x00")
	XMPIdentifier       = []byte("http://ns.adobe.com/xap/1.0/\x00")
	ExtXMPIdentifier    = []byte("http://ns.adobe.com/xmp/extension/\x00")
	ICCIdentifier       = []byte("ICC_PROFILE\x00")
	PhotoshopIdentifier = []byte("Photoshop 3.0\x00")
)

const (
	MarkerSOI   byte = 0xD8
	MarkerAPP0  byte = 0xE0
	MarkerAPP1  byte = 0xE1
	MarkerAPP2  byte = 0xE2
	MarkerAPP13 byte = 0xED
	MarkerSOS   byte = 0xDA
	MarkerEOI   byte = 0xD9

	ByteAlignII   uint16 = 0x4949
	ByteAlignMM   uint16 = 0x4D4D
	TIFFStartCode uint16 = 0x002A
)

// extMap maps lowercase extensions to format IDs.
var extMap = map[string]FormatID{
	".jpg":  FmtJPEG,
	".jpeg": FmtJPEG,
	".jpe":  FmtJPEG,
	".png":  FmtPNG,
	".webp": FmtWebP,
	".heic": FmtHEIC,
	".heif": FmtHEIC,
	".avif": FmtHEIC,
	".tiff": FmtTIFF,
	".tif":  FmtTIFF,
	".dng":  FmtDNG,
	".orf":  FmtORF,
	".rw2":  FmtRW2,
	".exif": FmtExif,
}

// FormatForExt returns the format implied by a file name's extension.
func FormatForExt(path string) FormatID {
	dot := strings.LastIndex(path, ".")
	if dot < 0 {
		return FmtUnknown
	}
	if id, ok := extMap[strings.ToLower(path[dot:])]; ok {
		return id
	}
	return FmtUnknown
}

// DetectFormat returns the FormatID for the given file, first by reading
// magic bytes and falling back to extension.
func DetectFormat(path string) (FormatID, error) {
	f, err := os.Open(path)
	if err != nil {
		return FmtUnknown, err
	}
	defer f.Close()

	buf := make([]byte, 16)
	n, err := io.ReadFull(f, buf)
	if err != nil && n == 0 && err != io.EOF {
		return FmtUnknown, err
	}
	return Refine(DetectBytes(buf[:n]), path), nil
}

// Refine narrows a sniffed format using the file name. TIFF-framed raw
// formats share a magic with plain TIFF.
func Refine(id FormatID, path string) FormatID {
	ext := FormatForExt(path)
	switch {
	case id == FmtUnknown:
		return ext
	case id == FmtTIFF && ext == FmtDNG:
		return FmtDNG
	}
	return id
}

// DetectBytes sniffs the container from its first bytes.
func DetectBytes(b []byte) FormatID {
	if len(b) < 4 {
		return FmtUnknown
	}
	switch {
	// JPEG: FF D8 FF
	case bytes.HasPrefix(b, JPEGSignature):
		return FmtJPEG
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	case bytes.HasPrefix(b, PNGSignature):
		return FmtPNG
	// WebP: RIFF????WEBP
	case len(b) >= 12 && bytes.Equal(b[0:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WEBP")):
		return FmtWebP
	// TIFF: 49 49 2A 00 (little-endian) or 4D 4D 00 2A (big-endian)
	case bytes.HasPrefix(b, []byte{0x49, 0x49, 0x2A, 0x00}) ||
		bytes.HasPrefix(b, []byte{0x4D, 0x4D, 0x00, 0x2A}):
		return FmtTIFF
	// ORF: IIRO / IIRS / MMOR
	case bytes.HasPrefix(b, []byte("IIRO")) || bytes.HasPrefix(b, []byte("IIRS")) ||
		bytes.HasPrefix(b, []byte("MMOR")):
		return FmtORF
	// RW2: 49 49 55 00
	case bytes.HasPrefix(b, []byte{0x49, 0x49, 0x55, 0x00}):
		return FmtRW2
	// HEIF family: ftyp box at offset 4
	case len(b) >= 12 && bytes.Equal(b[4:8], []byte("ftyp")):
		return detectISOBMFFSubtype(b)
	// Standalone EXIF blob with its APP1 identifier kept
	case bytes.HasPrefix(b, ExifIdentifier):
		return FmtExif
	}
	return FmtUnknown
}

func detectISOBMFFSubtype(b []byte) FormatID {
	switch string(b[8:12]) {
	case "heic", "heix", "hevc", "hevx", "heim", "heis", "mif1", "msf1", "avif":
		return FmtHEIC
	}
	return FmtUnknown
}

// IsTIFFFamily reports whether the whole file is a TIFF structure.
func IsTIFFFamily(id FormatID) bool {
	switch id {
	case FmtTIFF, FmtDNG, FmtORF, FmtRW2:
		return true
	}
	return false
}
