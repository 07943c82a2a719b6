// Package interop checks that the EXIF block a store writes reads back
// the same through an independent decoder (github.com/rwcarlsen/goexif).
package interop

import (
	"bytes"
	"encoding/binary"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	goexif "github.com/rwcarlsen/goexif/exif"
	gotiff "github.com/rwcarlsen/goexif/tiff"

	"github.com/ankit-chaubey/exif-surgery/core"
	"github.com/ankit-chaubey/exif-surgery/core/exif"
	"github.com/ankit-chaubey/exif-surgery/core/tiff"
)

// locationTolerance is the allowed drift, in degrees, between the two
// decoders' latitude and longitude.
const locationTolerance = 1e-6

// Mismatch is one tag the two decoders disagree on.
type Mismatch struct {
	Name   string `json:"name"`
	Ours   string `json:"ours"`
	Theirs string `json:"theirs"`
}

// Report is the outcome of a cross-check.
type Report struct {
	Checked    int        `json:"checked"`
	Skipped    int        `json:"skipped"`
	Mismatches []Mismatch `json:"mismatches"`
}

// OK reports whether every checked tag agreed.
func (r *Report) OK() bool { return len(r.Mismatches) == 0 }

// CrossCheck encodes s, reads the block back with both decoders and
// compares the two readings. A store with nothing to write yields an
// empty report.
func CrossCheck(s *exif.Store) (*Report, error) {
	if s == nil {
		return nil, errors.Wrap(core.ErrNullArgument, "interop: nil store")
	}
	blob, err := s.EncodeExif()
	if err != nil {
		return nil, err
	}
	if blob == nil {
		return &Report{Mismatches: []Mismatch{}}, nil
	}
	ours, err := exif.OpenExifData(blob)
	if err != nil {
		return nil, err
	}
	return Compare(ours, blob)
}

// Compare decodes blob, a bare TIFF structure, with goexif and checks
// every field it finds against the entries of s.
func Compare(s *exif.Store, blob []byte) (*Report, error) {
	if s == nil {
		return nil, errors.Wrap(core.ErrNullArgument, "interop: nil store")
	}
	x, err := goexif.Decode(bytes.NewReader(blob))
	if err != nil && (x == nil || goexif.IsCriticalError(err)) {
		return nil, errors.Wrapf(core.ErrInvalidFormat, "interop: goexif: %v", err)
	}

	w := &walker{st: s.Structure(), rep: &Report{Mismatches: []Mismatch{}}}
	if err := x.Walk(w); err != nil {
		return nil, err
	}
	compareLocation(s, x, w.rep)

	sort.Slice(w.rep.Mismatches, func(i, j int) bool {
		return w.rep.Mismatches[i].Name < w.rep.Mismatches[j].Name
	})
	return w.rep, nil
}

type walker struct {
	st  *tiff.Structure
	rep *Report
}

func (w *walker) Walk(name goexif.FieldName, tag *gotiff.Tag) error {
	g, ok := placement(string(name), tag.Id)
	if !ok {
		w.rep.Skipped++
		return nil
	}
	w.rep.Checked++

	e, ok := w.st.Lookup(g, tag.Id)
	if !ok {
		w.rep.Mismatches = append(w.rep.Mismatches, Mismatch{
			Name:   string(name),
			Theirs: theirs(tag),
		})
		return nil
	}
	if !agree(e, tag, w.st.Order) {
		w.rep.Mismatches = append(w.rep.Mismatches, Mismatch{
			Name:   string(name),
			Ours:   e.Format(w.st.Order),
			Theirs: theirs(tag),
		})
	}
	return nil
}

// placement maps a goexif field onto a directory. Pointers, thumbnail
// fields and names outside the dictionary are not compared.
func placement(name string, id uint16) (tiff.Group, bool) {
	if strings.HasPrefix(name, "Thumb") {
		return 0, false
	}
	for _, p := range tiff.Lookup(name) {
		if p.Def.ID != id || p.Group == tiff.GroupThumbnail {
			continue
		}
		if _, ptr := tiff.PointerTarget(p.Group, id); ptr {
			return 0, false
		}
		return p.Group, true
	}
	return 0, false
}

func agree(e *tiff.Entry, tag *gotiff.Tag, order binary.ByteOrder) bool {
	switch tag.Format() {
	case gotiff.IntVal:
		vs, ok := e.Ints(order)
		if !ok || len(vs) != int(tag.Count) {
			return false
		}
		for i, v := range vs {
			if t, err := tag.Int64(i); err != nil || t != v {
				return false
			}
		}
		return true
	case gotiff.RatVal:
		rs, ok := e.Rationals(order)
		if !ok || len(rs) != int(tag.Count) {
			return false
		}
		for i, r := range rs {
			num, den, err := tag.Rat2(i)
			if err != nil || num != r.Num || den != r.Den {
				return false
			}
		}
		return true
	case gotiff.FloatVal:
		fs, ok := e.Floats(order)
		if !ok || len(fs) != int(tag.Count) {
			return false
		}
		for i, f := range fs {
			if t, err := tag.Float(i); err != nil || t != f {
				return false
			}
		}
		return true
	case gotiff.StringVal:
		v, err := tag.StringVal()
		return err == nil && v == cString(e.Value)
	case gotiff.UndefVal:
		return bytes.Equal(e.Value, tag.Val)
	}
	return false
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// theirs renders a goexif value in the same notation as tiff.Entry.Format.
func theirs(tag *gotiff.Tag) string {
	n := int(tag.Count)
	parts := make([]string, 0, n)
	switch tag.Format() {
	case gotiff.IntVal:
		for i := 0; i < n; i++ {
			v, _ := tag.Int64(i)
			parts = append(parts, strconv.FormatInt(v, 10))
		}
	case gotiff.RatVal:
		for i := 0; i < n; i++ {
			num, den, _ := tag.Rat2(i)
			parts = append(parts, strconv.FormatInt(num, 10)+"/"+strconv.FormatInt(den, 10))
		}
	case gotiff.FloatVal:
		bits := 64
		if tag.Type == gotiff.DTFloat {
			bits = 32
		}
		for i := 0; i < n; i++ {
			f, _ := tag.Float(i)
			parts = append(parts, strconv.FormatFloat(f, 'g', -1, bits))
		}
	case gotiff.StringVal:
		v, _ := tag.StringVal()
		return v
	default:
		return cString(tag.Val)
	}
	return strings.Join(parts, ",")
}

// compareLocation checks the composed coordinates, which goexif derives
// on its own from the four GPS tags.
func compareLocation(s *exif.Store, x *goexif.Exif, rep *Report) {
	lat, lon, ok := s.LatLong()
	tlat, tlon, err := x.LatLong()
	if !ok && err != nil {
		return
	}
	rep.Checked++
	if ok && err == nil &&
		math.Abs(lat-tlat) <= locationTolerance && math.Abs(lon-tlon) <= locationTolerance {
		return
	}
	m := Mismatch{Name: "Location"}
	if ok {
		m.Ours = strconv.FormatFloat(lat, 'f', 7, 64) + ", " + strconv.FormatFloat(lon, 'f', 7, 64)
	}
	if err == nil {
		m.Theirs = strconv.FormatFloat(tlat, 'f', 7, 64) + ", " + strconv.FormatFloat(tlon, 'f', 7, 64)
	}
	rep.Mismatches = append(rep.Mismatches, m)
}
