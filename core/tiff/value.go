package tiff

import (
	"bytes"
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ankit-chaubey/exif-surgery/core"
)

// Entry is one directory entry. Value holds count*size bytes in the
// owning structure's byte order.
type Entry struct {
	ID     uint16
	Type   DataType
	Count  uint32
	Value  []byte
	Offset int64 // absolute offset of Value in the source, -1 when unknown
}

func (e *Entry) Clone() *Entry {
	c := *e
	c.Value = append([]byte(nil), e.Value...)
	return &c
}

// Range returns where Value was read from, if known.
func (e *Entry) Range() (core.Range, bool) {
	if e.Offset < 0 {
		return core.Range{}, false
	}
	return core.Range{Offset: e.Offset, Length: int64(len(e.Value))}, true
}

// Uints decodes BYTE, SHORT and LONG values.
func (e *Entry) Uints(order binary.ByteOrder) ([]uint64, bool) {
	n := int(e.Count)
	if n*e.Type.Size() > len(e.Value) {
		return nil, false
	}
	out := make([]uint64, n)
	for i := 0; i < n; i++ {
		switch e.Type {
		case Byte, Undefined:
			out[i] = uint64(e.Value[i])
		case Short:
			out[i] = uint64(order.Uint16(e.Value[2*i:]))
		case Long, IFDType:
			out[i] = uint64(order.Uint32(e.Value[4*i:]))
		default:
			return nil, false
		}
	}
	return out, true
}

// Ints decodes every integer type, signed or not.
func (e *Entry) Ints(order binary.ByteOrder) ([]int64, bool) {
	n := int(e.Count)
	if n*e.Type.Size() > len(e.Value) {
		return nil, false
	}
	out := make([]int64, n)
	for i := 0; i < n; i++ {
		switch e.Type {
		case Byte:
			out[i] = int64(e.Value[i])
		case SByte:
			out[i] = int64(int8(e.Value[i]))
		case Short:
			out[i] = int64(order.Uint16(e.Value[2*i:]))
		case SShort:
			out[i] = int64(int16(order.Uint16(e.Value[2*i:])))
		case Long, IFDType:
			out[i] = int64(order.Uint32(e.Value[4*i:]))
		case SLong:
			out[i] = int64(int32(order.Uint32(e.Value[4*i:])))
		default:
			return nil, false
		}
	}
	return out, true
}

// Rationals decodes RATIONAL and SRATIONAL values.
func (e *Entry) Rationals(order binary.ByteOrder) ([]Rational, bool) {
	if e.Type != Rat && e.Type != SRat {
		return nil, false
	}
	n := int(e.Count)
	if n*8 > len(e.Value) {
		return nil, false
	}
	out := make([]Rational, n)
	for i := 0; i < n; i++ {
		num := order.Uint32(e.Value[8*i:])
		den := order.Uint32(e.Value[8*i+4:])
		if e.Type == SRat {
			out[i] = Rational{Num: int64(int32(num)), Den: int64(int32(den))}
		} else {
			out[i] = Rational{Num: int64(num), Den: int64(den)}
		}
	}
	return out, true
}

// Floats decodes any numeric entry as float64 values.
func (e *Entry) Floats(order binary.ByteOrder) ([]float64, bool) {
	switch e.Type {
	case Rat, SRat:
		rs, ok := e.Rationals(order)
		if !ok {
			return nil, false
		}
		out := make([]float64, len(rs))
		for i, r := range rs {
			out[i] = r.Float()
		}
		return out, true
	case Float, Double:
		n := int(e.Count)
		if n*e.Type.Size() > len(e.Value) {
			return nil, false
		}
		out := make([]float64, n)
		for i := 0; i < n; i++ {
			if e.Type == Float {
				out[i] = float64(math.Float32frombits(order.Uint32(e.Value[4*i:])))
			} else {
				out[i] = math.Float64frombits(order.Uint64(e.Value[8*i:]))
			}
		}
		return out, true
	}
	is, ok := e.Ints(order)
	if !ok {
		return nil, false
	}
	out := make([]float64, len(is))
	for i, v := range is {
		out[i] = float64(v)
	}
	return out, true
}

var asciiPrefix = []byte("ASCII\x00\x00\x00")

// Text renders ASCII and UNDEFINED values: an ASCII character-code
// prefix is skipped, text stops at the first NUL and control bytes show
// as '?'.
func (e *Entry) Text() string {
	b := e.Value
	if e.Type == Undefined && bytes.HasPrefix(b, asciiPrefix) {
		b = b[len(asciiPrefix):]
	}
	var sb strings.Builder
	for _, c := range b {
		if c == 0 {
			break
		}
		if c < 32 {
			sb.WriteByte('?')
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// Format returns the canonical string form of the value: text for
// ASCII/UNDEFINED, "num/den" for rationals, and comma-joined lists for
// multi-valued entries.
func (e *Entry) Format(order binary.ByteOrder) string {
	if e.ID == TagXmp && (e.Type == Byte || e.Type == Undefined) {
		return string(bytes.TrimRight(e.Value, "\x00"))
	}
	switch e.Type {
	case ASCII, Undefined:
		return e.Text()
	case Rat, SRat:
		rs, ok := e.Rationals(order)
		if !ok {
			return ""
		}
		parts := make([]string, len(rs))
		for i, r := range rs {
			parts[i] = strconv.FormatInt(r.Num, 10) + "/" + strconv.FormatInt(r.Den, 10)
		}
		return strings.Join(parts, ",")
	case Float, Double:
		fs, ok := e.Floats(order)
		if !ok {
			return ""
		}
		bits := 64
		if e.Type == Float {
			bits = 32
		}
		parts := make([]string, len(fs))
		for i, f := range fs {
			parts[i] = strconv.FormatFloat(f, 'g', -1, bits)
		}
		return strings.Join(parts, ",")
	}
	is, ok := e.Ints(order)
	if !ok {
		return ""
	}
	parts := make([]string, len(is))
	for i, v := range is {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, ",")
}

// rationalDenominator is the precision used when a decimal is written to
// a rational tag.
const rationalDenominator = 10000

// Encode converts a string value to an entry of the tag's declared type.
func Encode(def TagDef, value string, order binary.ByteOrder) (*Entry, error) {
	e := &Entry{ID: def.ID, Type: def.Type, Offset: -1}
	mismatch := func(err error) error {
		return errors.Wrapf(core.ErrTypeMismatch, "%s: cannot store %q as %s: %v", def.Name, value, def.Type, err)
	}
	if def.Alt == Undefined {
		e.Value = []byte(value)
		e.Count = uint32(len(e.Value))
		return e, nil
	}
	switch def.Type {
	case ASCII:
		e.Value = append([]byte(value), 0)
		e.Count = uint32(len(e.Value))
		return e, nil
	case Undefined:
		e.Value = []byte(value)
		e.Count = uint32(len(e.Value))
		return e, nil
	}

	parts := strings.Split(value, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	w := NewWriter(order)

	switch def.Type {
	case Byte, SByte:
		lo, hi := int64(0), int64(math.MaxUint8)
		if def.Type == SByte {
			lo, hi = math.MinInt8, math.MaxInt8
		}
		for _, p := range parts {
			v, err := parseInt(p, lo, hi)
			if err != nil {
				return nil, mismatch(err)
			}
			w.Write([]byte{byte(v)})
		}
	case Short, Long, SShort, SLong:
		vals := make([]int64, len(parts))
		for i, p := range parts {
			v, err := parseInt(p, math.MinInt32, math.MaxUint32)
			if err != nil {
				return nil, mismatch(err)
			}
			vals[i] = v
		}
		e.Type = pickIntegerType(def, vals)
		for _, v := range vals {
			lo, hi := integerRange(e.Type)
			if v < lo || v > hi {
				return nil, mismatch(errors.Errorf("%d out of range", v))
			}
			if e.Type.Size() == 2 {
				w.Uint16(uint16(v))
			} else {
				w.Uint32(uint32(v))
			}
		}
	case Rat, SRat:
		for _, p := range parts {
			r, err := ParseRational(p, def.Type == SRat)
			if err != nil {
				return nil, mismatch(err)
			}
			w.Uint32(uint32(r.Num))
			w.Uint32(uint32(r.Den))
		}
	case Float, Double:
		for _, p := range parts {
			f, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return nil, mismatch(err)
			}
			if def.Type == Float {
				w.Uint32(math.Float32bits(float32(f)))
			} else {
				var b [8]byte
				order.PutUint64(b[:], math.Float64bits(f))
				w.Write(b[:])
			}
		}
	default:
		return nil, mismatch(errors.New("unsupported type"))
	}
	e.Value = w.Bytes()
	e.Count = uint32(len(parts))
	return e, nil
}

func parseInt(s string, lo, hi int64) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if v < lo || v > hi {
		return 0, errors.Errorf("%d out of range", v)
	}
	return v, nil
}

// pickIntegerType prefers the declared type and widens SHORT to LONG
// when the tag allows it and a value needs it.
func pickIntegerType(def TagDef, vals []int64) DataType {
	if def.Alt == 0 {
		return def.Type
	}
	lo, hi := integerRange(def.Type)
	for _, v := range vals {
		if v < lo || v > hi {
			return def.Alt
		}
	}
	return def.Type
}

func integerRange(t DataType) (int64, int64) {
	switch t {
	case Short:
		return 0, math.MaxUint16
	case SShort:
		return math.MinInt16, math.MaxInt16
	case Long:
		return 0, math.MaxUint32
	case SLong:
		return math.MinInt32, math.MaxInt32
	}
	return 0, math.MaxUint8
}

// ParseRational accepts "num/den" with integer operands, or a decimal,
// which is scaled to a denominator of 10000.
func ParseRational(s string, signed bool) (Rational, error) {
	lo, hi := int64(0), int64(math.MaxUint32)
	if signed {
		lo, hi = math.MinInt32, math.MaxInt32
	}
	var r Rational
	if i := strings.IndexByte(s, '/'); i >= 0 {
		num, err := strconv.ParseInt(strings.TrimSpace(s[:i]), 10, 64)
		if err != nil {
			return r, errors.Wrapf(core.ErrTypeMismatch, "numerator of %q is not an integer", s)
		}
		den, err := strconv.ParseInt(strings.TrimSpace(s[i+1:]), 10, 64)
		if err != nil {
			return r, errors.Wrapf(core.ErrTypeMismatch, "denominator of %q is not an integer", s)
		}
		r = Rational{Num: num, Den: den}
	} else {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return r, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return r, errors.New("not a finite number")
		}
		r = Rational{Num: int64(math.Round(f * rationalDenominator)), Den: rationalDenominator}
	}
	if r.Num < lo || r.Num > hi || r.Den < lo || r.Den > hi {
		return r, errors.Errorf("%d/%d out of range", r.Num, r.Den)
	}
	return r, nil
}

// NewLong builds a single LONG entry.
func NewLong(id uint16, v uint32, order binary.ByteOrder) *Entry {
	w := NewWriter(order)
	w.Uint32(v)
	return &Entry{ID: id, Type: Long, Count: 1, Value: w.Bytes(), Offset: -1}
}

// NewLongs builds a LONG array entry.
func NewLongs(id uint16, vs []uint32, order binary.ByteOrder) *Entry {
	w := NewWriter(order)
	for _, v := range vs {
		w.Uint32(v)
	}
	return &Entry{ID: id, Type: Long, Count: uint32(len(vs)), Value: w.Bytes(), Offset: -1}
}

// NewShort builds a single SHORT entry.
func NewShort(id uint16, v uint16, order binary.ByteOrder) *Entry {
	w := NewWriter(order)
	w.Uint16(v)
	return &Entry{ID: id, Type: Short, Count: 1, Value: w.Bytes(), Offset: -1}
}
