// Package testutil builds container fixtures in memory for the package tests.
// Nothing here depends on the code under test.
package testutil

import (
	"encoding/binary"
	"sort"
)

// Dir names a directory of an EXIF structure.
type Dir int

const (
	Primary Dir = iota
	Exif
	GPS
	Interop
	Thumbnail
	numDirs
)

// RawEntry is an entry written exactly as given.
type RawEntry struct {
	ID    uint16
	Type  uint16
	Count uint32
	Value []byte
	// OutOfLine forces a value of four bytes or less out of line.
	OutOfLine bool
}

// Order is a byte order that can also append.
type Order interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// ExifBuilder lays out a TIFF structure the way cameras do: header,
// directories in order, values after each directory, then image data.
type ExifBuilder struct {
	order       Order
	dirs        [numDirs][]RawEntry
	thumbJPEG   []byte
	thumbStrips []byte
	primaryData []byte
}

func NewExif(order Order) *ExifBuilder {
	return &ExifBuilder{order: order}
}

func (b *ExifBuilder) Raw(d Dir, e RawEntry) *ExifBuilder {
	b.dirs[d] = append(b.dirs[d], e)
	return b
}

func (b *ExifBuilder) ASCII(d Dir, id uint16, s string) *ExifBuilder {
	v := append([]byte(s), 0)
	return b.Raw(d, RawEntry{ID: id, Type: 2, Count: uint32(len(v)), Value: v})
}

func (b *ExifBuilder) Undefined(d Dir, id uint16, v []byte) *ExifBuilder {
	return b.Raw(d, RawEntry{ID: id, Type: 7, Count: uint32(len(v)), Value: v})
}

func (b *ExifBuilder) Bytes(d Dir, id uint16, vs ...byte) *ExifBuilder {
	return b.Raw(d, RawEntry{ID: id, Type: 1, Count: uint32(len(vs)), Value: vs})
}

func (b *ExifBuilder) Short(d Dir, id uint16, vs ...uint16) *ExifBuilder {
	var v []byte
	for _, x := range vs {
		v = b.order.AppendUint16(v, x)
	}
	return b.Raw(d, RawEntry{ID: id, Type: 3, Count: uint32(len(vs)), Value: v})
}

func (b *ExifBuilder) Long(d Dir, id uint16, vs ...uint32) *ExifBuilder {
	var v []byte
	for _, x := range vs {
		v = b.order.AppendUint32(v, x)
	}
	return b.Raw(d, RawEntry{ID: id, Type: 4, Count: uint32(len(vs)), Value: v})
}

// Rational takes numerator/denominator pairs.
func (b *ExifBuilder) Rational(d Dir, id uint16, pairs ...uint32) *ExifBuilder {
	var v []byte
	for _, x := range pairs {
		v = b.order.AppendUint32(v, x)
	}
	return b.Raw(d, RawEntry{ID: id, Type: 5, Count: uint32(len(pairs) / 2), Value: v})
}

// ThumbnailJPEG links a compressed thumbnail from the thumbnail directory.
func (b *ExifBuilder) ThumbnailJPEG(data []byte) *ExifBuilder {
	b.thumbJPEG = data
	return b
}

// ThumbnailStrips links uncompressed strip data from the thumbnail directory.
func (b *ExifBuilder) ThumbnailStrips(data []byte) *ExifBuilder {
	b.thumbStrips = data
	return b
}

// PrimaryStrips links image data from the primary directory, as in a
// standalone TIFF.
func (b *ExifBuilder) PrimaryStrips(data []byte) *ExifBuilder {
	b.primaryData = data
	return b
}

type fix struct {
	d   Dir
	id  uint16
	ptr func() uint32
}

// Build returns the serialized structure.
func (b *ExifBuilder) Build() []byte {
	var dirs [numDirs][]RawEntry
	for i := range b.dirs {
		dirs[i] = append([]RawEntry(nil), b.dirs[i]...)
	}
	var ifdAt [numDirs]int
	var thumbAt, dataAt int
	var fixes []fix
	placeholder := func(d Dir, id uint16, ptr func() uint32) {
		dirs[d] = append(dirs[d], RawEntry{ID: id, Type: 4, Count: 1, Value: make([]byte, 4)})
		fixes = append(fixes, fix{d, id, ptr})
	}
	if len(dirs[Exif]) > 0 || len(dirs[Interop]) > 0 {
		placeholder(Primary, 0x8769, func() uint32 { return uint32(ifdAt[Exif]) })
	}
	if len(dirs[GPS]) > 0 {
		placeholder(Primary, 0x8825, func() uint32 { return uint32(ifdAt[GPS]) })
	}
	if len(dirs[Interop]) > 0 {
		placeholder(Exif, 0xA005, func() uint32 { return uint32(ifdAt[Interop]) })
	}
	if b.thumbJPEG != nil {
		placeholder(Thumbnail, 0x0201, func() uint32 { return uint32(thumbAt) })
		b.lenEntry(&dirs, Thumbnail, 0x0202, len(b.thumbJPEG))
	}
	if b.thumbStrips != nil {
		placeholder(Thumbnail, 0x0111, func() uint32 { return uint32(thumbAt) })
		b.lenEntry(&dirs, Thumbnail, 0x0117, len(b.thumbStrips))
	}
	if b.primaryData != nil {
		placeholder(Primary, 0x0111, func() uint32 { return uint32(dataAt) })
		b.lenEntry(&dirs, Primary, 0x0117, len(b.primaryData))
	}
	for i := range dirs {
		sort.SliceStable(dirs[i], func(x, y int) bool { return dirs[i][x].ID < dirs[i][y].ID })
	}

	written := []Dir{Primary}
	for _, d := range []Dir{Exif, GPS, Interop, Thumbnail} {
		if len(dirs[d]) > 0 || (d == Exif && len(dirs[Interop]) > 0) {
			written = append(written, d)
		}
	}
	valueAt := map[[2]int]int{}
	pos := 8
	for _, d := range written {
		pos = even(pos)
		ifdAt[d] = pos
		pos += 2 + 12*len(dirs[d]) + 4
		for i, e := range dirs[d] {
			if len(e.Value) > 4 || e.OutOfLine {
				pos = even(pos)
				valueAt[[2]int{int(d), i}] = pos
				pos += len(e.Value)
			}
		}
	}
	if b.thumbJPEG != nil || b.thumbStrips != nil {
		pos = even(pos)
		thumbAt = pos
		pos += len(b.thumbJPEG) + len(b.thumbStrips)
	}
	if b.primaryData != nil {
		pos = even(pos)
		dataAt = pos
	}
	for _, f := range fixes {
		for i := range dirs[f.d] {
			if dirs[f.d][i].ID == f.id {
				dirs[f.d][i].Value = b.order.AppendUint32(nil, f.ptr())
			}
		}
	}

	out := []byte("II")
	if b.order == binary.BigEndian {
		out = []byte("MM")
	}
	out = b.order.AppendUint16(out, 42)
	out = b.order.AppendUint32(out, 8)
	for _, d := range written {
		out = pad(out, ifdAt[d])
		out = b.order.AppendUint16(out, uint16(len(dirs[d])))
		for i, e := range dirs[d] {
			out = b.order.AppendUint16(out, e.ID)
			out = b.order.AppendUint16(out, e.Type)
			out = b.order.AppendUint32(out, e.Count)
			if at, ok := valueAt[[2]int{int(d), i}]; ok {
				out = b.order.AppendUint32(out, uint32(at))
				continue
			}
			var inline [4]byte
			copy(inline[:], e.Value)
			out = append(out, inline[:]...)
		}
		var next uint32
		if d == Primary && len(dirs[Thumbnail]) > 0 {
			next = uint32(ifdAt[Thumbnail])
		}
		out = b.order.AppendUint32(out, next)
		for i, e := range dirs[d] {
			if at, ok := valueAt[[2]int{int(d), i}]; ok {
				out = pad(out, at)
				out = append(out, e.Value...)
			}
		}
	}
	if thumbAt > 0 {
		out = pad(out, thumbAt)
		out = append(out, b.thumbJPEG...)
		out = append(out, b.thumbStrips...)
	}
	if b.primaryData != nil {
		out = pad(out, dataAt)
		out = append(out, b.primaryData...)
	}
	return out
}

func (b *ExifBuilder) lenEntry(dirs *[numDirs][]RawEntry, d Dir, id uint16, n int) {
	dirs[d] = append(dirs[d], RawEntry{ID: id, Type: 4, Count: 1, Value: b.order.AppendUint32(nil, uint32(n))})
}

func even(n int) int { return (n + 1) &^ 1 }

func pad(b []byte, n int) []byte {
	for len(b) < n {
		b = append(b, 0)
	}
	return b
}
