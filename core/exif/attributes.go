package exif

import (
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ankit-chaubey/exif-surgery/core"
	"github.com/ankit-chaubey/exif-surgery/core/tiff"
)

var (
	primaryDateTime   = regexp.MustCompile(`^\d{4}:\d{2}:\d{2}\s\d{2}:\d{2}:\d{2}$`)
	secondaryDateTime = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}\s\d{2}:\d{2}:\d{2}$`)
	clockTime         = regexp.MustCompile(`^(\d{1,2}):(\d{1,2}):(\d{1,2})$`)
)

var dateTimeNames = map[string]bool{
	TagDateTime:          true,
	TagDateTimeOriginal:  true,
	TagDateTimeDigitized: true,
}

func placements(name string) ([]tiff.Placement, error) {
	p := tiff.Lookup(name)
	if len(p) == 0 {
		return nil, errors.Wrapf(core.ErrUnknownTag, "exif: %q", name)
	}
	return p, nil
}

// entry returns the first stored entry for name, in group order.
func (s *Store) entry(name string) (*tiff.Entry, bool) {
	for _, p := range tiff.Lookup(name) {
		if e, ok := s.ifds.Lookup(p.Group, p.Def.ID); ok {
			return e, true
		}
	}
	return nil, false
}

// Attribute returns the string form of a tag: text for ASCII and
// UNDEFINED values, "num/den" for rationals and comma-joined lists for
// multi-valued tags. GPSTimeStamp reads as "HH:MM:SS".
//
// ImageWidth and ImageLength fall back to the container geometry and
// LightSource to "0" when they are not stored.
func (s *Store) Attribute(name string) (string, bool) {
	name = tiff.Canonical(name)
	if e, ok := s.entry(name); ok {
		if name == TagGPSTimeStamp {
			return formatClock(e, s.ifds.Order)
		}
		return e.Format(s.ifds.Order), true
	}
	if name == TagXmp && s.loc.XMP != nil {
		return string(s.loc.XMP.Data), true
	}
	return s.defaultValue(name)
}

func (s *Store) defaultValue(name string) (string, bool) {
	switch name {
	case TagImageWidth, TagImageLength:
		if s.format == core.FmtHEIC || !s.loc.HasGeometry {
			return "0", true
		}
		if name == TagImageWidth {
			return strconv.Itoa(s.loc.Width), true
		}
		return strconv.Itoa(s.loc.Height), true
	case TagLightSource:
		return "0", true
	}
	return "", false
}

func formatClock(e *tiff.Entry, order binary.ByteOrder) (string, bool) {
	if e.Type != tiff.Rat && e.Type != tiff.SRat {
		return "", false
	}
	if e.Count != 3 || len(e.Value) < 24 {
		return "", false
	}
	var parts [3]int
	for i := range parts {
		num := float64(order.Uint32(e.Value[8*i:]))
		den := float64(order.Uint32(e.Value[8*i+4:]))
		if e.Type == tiff.SRat {
			num = float64(int32(order.Uint32(e.Value[8*i:])))
			den = float64(int32(order.Uint32(e.Value[8*i+4:])))
		}
		if den != 0 {
			parts[i] = int(num / den)
		}
	}
	return fmt.Sprintf("%02d:%02d:%02d", parts[0], parts[1], parts[2]), true
}

// HasAttribute reports whether a tag is stored. Read defaults do not count.
func (s *Store) HasAttribute(name string) bool {
	name = tiff.Canonical(name)
	if _, ok := s.entry(name); ok {
		return true
	}
	return name == TagXmp && s.loc.XMP != nil
}

// HasAttributes reports whether any directory holds a tag. The thumbnail
// directory only counts when includeThumbnail is set.
func (s *Store) HasAttributes(includeThumbnail bool) bool {
	for _, g := range tiff.Groups {
		if g == tiff.GroupThumbnail && !includeThumbnail {
			continue
		}
		if s.ifds.IFDs[g].Len() > 0 {
			return true
		}
	}
	return false
}

// SetAttribute validates value against the tag's declared type and stores
// it in every directory that defines the tag. The thumbnail directory is
// only written when the structure already has one. Nothing is changed on
// error.
func (s *Store) SetAttribute(name, value string) error {
	return s.setAll([2]string{name, value})
}

type pendingEntry struct {
	group tiff.Group
	entry *tiff.Entry
}

// setAll applies several assignments, or none of them.
func (s *Store) setAll(kv ...[2]string) error {
	var pending []pendingEntry
	for _, p := range kv {
		name := tiff.Canonical(p[0])
		ps, err := placements(name)
		if err != nil {
			return err
		}
		value, err := normalize(name, p[1])
		if err != nil {
			return err
		}
		for _, pl := range ps {
			if pl.Group == tiff.GroupThumbnail && s.ifds.IFDs[tiff.GroupThumbnail].Len() == 0 {
				continue
			}
			e, err := tiff.Encode(pl.Def, value, s.ifds.Order)
			if err != nil {
				return err
			}
			pending = append(pending, pendingEntry{pl.Group, e})
		}
	}
	for _, pe := range pending {
		s.ifds.IFD(pe.group).Set(pe.entry)
	}
	return nil
}

// normalize rewrites accepted alternative spellings into the stored form.
func normalize(name, value string) (string, error) {
	switch {
	case dateTimeNames[name]:
		if primaryDateTime.MatchString(value) {
			return value, nil
		}
		if secondaryDateTime.MatchString(value) {
			return strings.ReplaceAll(value, "-", ":"), nil
		}
		return "", errors.Wrapf(core.ErrTypeMismatch, "exif: %s: %q is not a date-time", name, value)
	case name == TagGPSTimeStamp:
		if m := clockTime.FindStringSubmatch(value); m != nil {
			return m[1] + "/1," + m[2] + "/1," + m[3] + "/1", nil
		}
	}
	return value, nil
}

// RemoveAttribute deletes a tag from every directory.
func (s *Store) RemoveAttribute(name string) error {
	ps, err := placements(name)
	if err != nil {
		return err
	}
	for _, p := range ps {
		if d := s.ifds.IFDs[p.Group]; d != nil {
			d.Delete(p.Def.ID)
		}
	}
	return nil
}

// AttributeInt parses a tag as an integer. def is returned when the tag is
// absent; a value that is not an integer is a type mismatch.
func (s *Store) AttributeInt(name string, def int) (int, error) {
	if _, err := placements(name); err != nil {
		return def, err
	}
	v, ok := s.Attribute(name)
	if !ok {
		return def, nil
	}
	first := strings.TrimSpace(strings.SplitN(v, ",", 2)[0])
	n, err := strconv.Atoi(first)
	if err != nil {
		return def, errors.Wrapf(core.ErrTypeMismatch, "exif: %s: %q is not an integer", name, v)
	}
	return n, nil
}

// AttributeDouble parses a tag as a number, dividing rationals out.
func (s *Store) AttributeDouble(name string, def float64) (float64, error) {
	if _, err := placements(name); err != nil {
		return def, err
	}
	v, ok := s.Attribute(name)
	if !ok {
		return def, nil
	}
	first := strings.TrimSpace(strings.SplitN(v, ",", 2)[0])
	f, err := parseNumber(first)
	if err != nil {
		return def, errors.Wrapf(core.ErrTypeMismatch, "exif: %s: %q is not a number", name, v)
	}
	return f, nil
}

func parseNumber(v string) (float64, error) {
	num, den, isRatio := strings.Cut(v, "/")
	if !isRatio {
		return strconv.ParseFloat(v, 64)
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0, err
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return 0, errors.New("zero denominator")
	}
	f := n / d
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("not a finite number")
	}
	return f, nil
}

// AttributeBytes returns the raw value bytes of a stored tag, in the
// structure's byte order.
func (s *Store) AttributeBytes(name string) ([]byte, bool) {
	name = tiff.Canonical(name)
	if e, ok := s.entry(name); ok {
		return e.Value, true
	}
	if name == TagXmp && s.loc.XMP != nil {
		return s.loc.XMP.Data, true
	}
	return nil, false
}

// AttributeRange returns where a tag's value sits in the source. It is
// nil for absent tags and for values set or moved since the source was
// read. For Xmp it covers the standard packet only: the extended packet
// of a JPEG is reassembled from several APP1 segments, so it has no
// single range and is read through ExtendedXMP.
func (s *Store) AttributeRange(name string) (*core.Range, error) {
	name = tiff.Canonical(name)
	if _, err := placements(name); err != nil {
		return nil, err
	}
	if !s.opts.trackRanges {
		return nil, errors.Wrapf(core.ErrRangesNotTracked, "exif: range of %s", name)
	}
	if e, ok := s.entry(name); ok {
		if r, ok := e.Range(); ok {
			return &r, nil
		}
		return nil, nil
	}
	if name == TagXmp && s.loc.XMP.Contiguous() {
		r := s.loc.XMP.Range
		return &r, nil
	}
	return nil, nil
}
