// Package tiff implements the TIFF tag-directory model used by EXIF:
// byte-order aware field access, the tag dictionary, directory parsing
// with corruption tolerance, and a canonicalizing serializer.
package tiff

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/ankit-chaubey/exif-surgery/core"
)

const (
	IntelByteOrder    = core.ByteAlignII
	MotorolaByteOrder = core.ByteAlignMM

	MagicTIFF  uint16 = 0x002A
	MagicORF   uint16 = 0x4F52
	MagicORFSR uint16 = 0x5352
	MagicRW2   uint16 = 0x0055

	HeaderSize = 8
)

// Header is the 8-byte structure every TIFF stream starts with.
type Header struct {
	Order    binary.ByteOrder
	Magic    uint16
	FirstIFD uint32
}

// ParseHeader reads the byte order mark, start code and IFD0 offset.
func ParseHeader(b []byte) (Header, error) {
	var h Header
	if len(b) < HeaderSize {
		return h, errors.Wrap(core.ErrInvalidFormat, "tiff: header too short")
	}
	order, err := readEndianness(b)
	if err != nil {
		return h, err
	}
	h.Order = order
	h.Magic = order.Uint16(b[2:4])
	if err := validateMagicNumber(h.Magic); err != nil {
		return h, err
	}
	h.FirstIFD = order.Uint32(b[4:8])
	return h, nil
}

func readEndianness(b []byte) (binary.ByteOrder, error) {
	switch binary.BigEndian.Uint16(b[0:2]) {
	case IntelByteOrder:
		return binary.LittleEndian, nil
	case MotorolaByteOrder:
		return binary.BigEndian, nil
	}
	return nil, errors.Wrapf(core.ErrInvalidFormat, "tiff: unknown byte order % x", b[0:2])
}

func validateMagicNumber(m uint16) error {
	switch m {
	case MagicTIFF, MagicORF, MagicORFSR, MagicRW2:
		return nil
	}
	return errors.Wrapf(core.ErrInvalidFormat, "tiff: unexpected start code 0x%04x", m)
}

// OrderMark returns the two header bytes for a byte order.
func OrderMark(order binary.ByteOrder) []byte {
	if order == binary.BigEndian {
		return []byte("MM")
	}
	return []byte("II")
}

// Reader decodes fixed-width fields at absolute offsets of an in-memory
// TIFF structure. Every accessor reports false instead of reading past
// the end.
type Reader struct {
	buf   []byte
	order binary.ByteOrder
}

func NewReader(b []byte, order binary.ByteOrder) *Reader {
	return &Reader{buf: b, order: order}
}

func (r *Reader) Len() int64 { return int64(len(r.buf)) }

func (r *Reader) Order() binary.ByteOrder { return r.order }

// Bytes returns the n bytes at off without copying.
func (r *Reader) Bytes(off, n int64) ([]byte, bool) {
	if off < 0 || n < 0 || off > int64(len(r.buf)) || n > int64(len(r.buf))-off {
		return nil, false
	}
	return r.buf[off : off+n], true
}

func (r *Reader) Uint16(off int64) (uint16, bool) {
	b, ok := r.Bytes(off, 2)
	if !ok {
		return 0, false
	}
	return r.order.Uint16(b), true
}

func (r *Reader) Uint32(off int64) (uint32, bool) {
	b, ok := r.Bytes(off, 4)
	if !ok {
		return 0, false
	}
	return r.order.Uint32(b), true
}

func (r *Reader) Int32(off int64) (int32, bool) {
	v, ok := r.Uint32(off)
	return int32(v), ok
}

// Rational reads an unsigned numerator/denominator pair.
func (r *Reader) Rational(off int64) (Rational, bool) {
	num, ok1 := r.Uint32(off)
	den, ok2 := r.Uint32(off + 4)
	if !ok1 || !ok2 {
		return Rational{}, false
	}
	return Rational{Num: int64(num), Den: int64(den)}, true
}

// Writer accumulates fields in one byte order.
type Writer struct {
	buf   []byte
	order binary.ByteOrder
}

func NewWriter(order binary.ByteOrder) *Writer {
	return &Writer{order: order}
}

func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) Write(b []byte) { w.buf = append(w.buf, b...) }

func (w *Writer) Uint16(v uint16) {
	var b [2]byte
	w.order.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) Uint32(v uint32) {
	var b [4]byte
	w.order.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// PadTo appends zero bytes until the length reaches n.
func (w *Writer) PadTo(n int) {
	for len(w.buf) < n {
		w.buf = append(w.buf, 0)
	}
}

// Rational is a TIFF RATIONAL or SRATIONAL value.
type Rational struct {
	Num int64
	Den int64
}

// Float returns the quotient, or NaN for a zero denominator.
func (r Rational) Float() float64 {
	if r.Den == 0 {
		return math.NaN()
	}
	return float64(r.Num) / float64(r.Den)
}
