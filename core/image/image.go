// Package image is the file-level front end of the EXIF store: it views,
// edits and strips metadata of JPEG, PNG, WebP, HEIF and TIFF-family files
// through the core.Handler interface.
package image

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/ankit-chaubey/exif-surgery/core"
	"github.com/ankit-chaubey/exif-surgery/core/exif"
	"github.com/ankit-chaubey/exif-surgery/core/tiff"
)

// ──────────────────────────────────────────────────────────────────────────────
// Handler
// ──────────────────────────────────────────────────────────────────────────────

// Handler implements core.Handler on top of exif.Store.
type Handler struct {
	format core.FormatID
	opts   []exif.Option
}

// New returns a Handler for the given format. The options are passed to
// every store the handler opens.
func New(format core.FormatID, opts ...exif.Option) *Handler {
	return &Handler{format: format, opts: opts}
}

// ForFile sniffs path and returns a handler for its container.
func ForFile(path string, opts ...exif.Option) (*Handler, error) {
	id, err := core.DetectFormat(path)
	if err != nil {
		return nil, errors.Wrapf(core.ErrIO, "image: %v", err)
	}
	if _, ok := formatInfo[id]; !ok {
		return nil, errors.Wrapf(core.ErrUnsupportedFormat, "image: %s", path)
	}
	return New(id, opts...), nil
}

func (h *Handler) Info() core.FormatInfo {
	return formatInfo[h.format]
}

// Formats lists every supported container, in display order.
func Formats() []core.FormatInfo {
	out := make([]core.FormatInfo, 0, len(formatOrder))
	for _, id := range formatOrder {
		out = append(out, formatInfo[id])
	}
	return out
}

var formatOrder = []core.FormatID{
	core.FmtJPEG, core.FmtPNG, core.FmtWebP, core.FmtHEIC,
	core.FmtTIFF, core.FmtDNG, core.FmtORF, core.FmtRW2,
}

var formatInfo = map[core.FormatID]core.FormatInfo{
	core.FmtJPEG: {
		Name:       "JPEG",
		Extensions: []string{".jpg", ".jpeg", ".jpe"},
		MIMETypes:  []string{"image/jpeg"},
		CanView:    true,
		CanEdit:    true,
		CanStrip:   true,
		Notes:      "APP1 EXIF and XMP, extended XMP, APP2 ICC, APP13 Photoshop. EXIF is capped at one APP1 segment.",
	},
	core.FmtPNG: {
		Name:       "PNG",
		Extensions: []string{".png"},
		MIMETypes:  []string{"image/png"},
		CanView:    true,
		CanEdit:    true,
		CanStrip:   true,
		Notes:      "eXIf chunk, XMP in iTXt, iCCP.",
	},
	core.FmtWebP: {
		Name:       "WebP",
		Extensions: []string{".webp"},
		MIMETypes:  []string{"image/webp"},
		CanView:    true,
		CanEdit:    true,
		CanStrip:   true,
		Notes:      "EXIF, XMP and ICCP chunks in RIFF container. Simple files gain a VP8X header on edit.",
	},
	core.FmtHEIC: {
		Name:       "HEIC/HEIF",
		Extensions: []string{".heic", ".heif", ".avif"},
		MIMETypes:  []string{"image/heic", "image/heif"},
		CanView:    true,
		Notes:      "EXIF and XMP items in ISOBMFF container. Read only.",
	},
	core.FmtTIFF: {
		Name:       "TIFF",
		Extensions: []string{".tiff", ".tif"},
		MIMETypes:  []string{"image/tiff"},
		CanView:    true,
		CanEdit:    true,
		Notes:      "Directories are rewritten at the end of the file; pixel data stays in place.",
	},
	core.FmtDNG: {
		Name:       "DNG",
		Extensions: []string{".dng"},
		MIMETypes:  []string{"image/x-adobe-dng"},
		CanView:    true,
		CanEdit:    true,
		Notes:      "Edited as TIFF.",
	},
	core.FmtORF: {
		Name:       "ORF",
		Extensions: []string{".orf"},
		MIMETypes:  []string{"image/x-olympus-orf"},
		CanView:    true,
		Notes:      "Olympus raw. Read only.",
	},
	core.FmtRW2: {
		Name:       "RW2",
		Extensions: []string{".rw2"},
		MIMETypes:  []string{"image/x-panasonic-rw2"},
		CanView:    true,
		Notes:      "Panasonic raw. Read only.",
	},
}

// ──────────────────────────────────────────────────────────────────────────────
// View
// ──────────────────────────────────────────────────────────────────────────────

// maxInline is the longest binary value printed as text.
const maxInline = 64

func (h *Handler) View(path string) (*core.Metadata, error) {
	m := &core.Metadata{FilePath: path, Format: h.Info().Name}
	s, err := exif.Open(path, h.opts...)
	if err != nil {
		return m, err
	}
	if m.Format == "" {
		m.Format = string(s.Format())
	}

	st := s.Structure()
	for _, g := range tiff.Groups {
		d := st.IFDs[g]
		for _, id := range d.IDs() {
			e, _ := d.Get(id)
			m.Fields = append(m.Fields, entryField(s, g, e))
		}
	}

	viewDerived(s, m)
	viewBlocks(s, m)
	parseXMPInto(s.XMP(), m)
	parseIPTCInto(s.PhotoshopImageResources(), m)
	return m, nil
}

func entryField(s *exif.Store, g tiff.Group, e *tiff.Entry) core.MetaField {
	f := core.MetaField{Category: g.String()}
	def, known := tiff.ByID(g, e.ID)
	if known {
		f.Key = def.Name
		f.Editable = true
	} else {
		f.Key = fmt.Sprintf("0x%04X", e.ID)
	}

	switch {
	case known && g == tiff.GroupGPS && def.Name == exif.TagGPSTimeStamp:
		f.Value, _ = s.Attribute(def.Name)
	case (e.Type == tiff.Undefined || e.Type == tiff.Byte) && len(e.Value) > maxInline:
		f.Value = fmt.Sprintf("(%d bytes)", len(e.Value))
	default:
		f.Value = e.Format(s.ByteOrder())
	}
	if r, ok := e.Range(); ok {
		f.Raw = rangeString(r)
	}
	return f
}

func rangeString(r core.Range) string {
	return fmt.Sprintf("%d+%d", r.Offset, r.Length)
}

// viewDerived adds the values the store composes from several tags.
func viewDerived(s *exif.Store, m *core.Metadata) {
	add := func(key, value string) {
		m.Fields = append(m.Fields, core.MetaField{Key: key, Value: value, Category: "Derived"})
	}
	if s.HasAttribute(exif.TagOrientation) {
		o := s.Orientation()
		add("Orientation", fmt.Sprintf("%s (rotated %d, flipped %t)", o, o.RotationDegrees(), o.IsFlipped()))
	}
	for _, t := range []struct {
		key string
		get func() (time.Time, bool)
	}{
		{"DateTime", s.DateTime},
		{"DateTimeOriginal", s.DateTimeOriginal},
		{"DateTimeDigitized", s.DateTimeDigitized},
		{"GPSDateTime", s.GPSDateTime},
	} {
		if v, ok := t.get(); ok {
			add(t.key, v.UTC().Format(time.RFC3339Nano))
		}
	}
	if lat, lon, ok := s.LatLong(); ok {
		add("Location", fmt.Sprintf("%.7f, %.7f", lat, lon))
	}
	if s.HasAttribute(exif.TagGPSAltitude) {
		add("Altitude", fmt.Sprintf("%.2f m", s.Altitude(0)))
	}
	for _, name := range []string{exif.TagImageWidth, exif.TagImageLength} {
		if !s.HasAttribute(name) {
			if v, ok := s.Attribute(name); ok && v != "0" {
				add(name, v)
			}
		}
	}
}

// viewBlocks reports the container payloads that are not tags.
func viewBlocks(s *exif.Store, m *core.Metadata) {
	add := func(key string, size int) {
		m.Fields = append(m.Fields, core.MetaField{
			Key:      key,
			Value:    fmt.Sprintf("%d bytes", size),
			Category: "Container",
		})
	}
	if s.HasXMP() {
		add("XMP", len(s.XMP()))
	}
	if s.HasExtendedXMP() {
		add("ExtendedXMP", len(s.ExtendedXMP()))
	}
	if s.HasICCProfile() {
		add("ICCProfile", len(s.ICCProfile()))
	}
	if s.HasPhotoshopImageResources() {
		add("PhotoshopImageResources", len(s.PhotoshopImageResources()))
	}
	if s.HasThumbnail() {
		kind := "rgb strips"
		if s.IsThumbnailCompressed() {
			kind = "jpeg"
		}
		f := core.MetaField{
			Key:      "Thumbnail",
			Value:    fmt.Sprintf("%s, %d bytes", kind, len(s.ThumbnailBytes())),
			Category: "Container",
		}
		if r := s.ThumbnailRange(); r != nil {
			f.Raw = rangeString(*r)
		}
		m.Fields = append(m.Fields, f)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Edit
// ──────────────────────────────────────────────────────────────────────────────

// Edit applies opts to the EXIF tags of path. An empty value in Set
// deletes the tag. outPath == "" edits in place.
func (h *Handler) Edit(path string, outPath string, opts core.EditOptions) error {
	if !h.Info().CanEdit {
		return errors.Wrapf(core.ErrUnsupportedFormat, "image: editing %s is not supported", h.format)
	}
	s, err := exif.Open(path, h.opts...)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(opts.Set))
	for k := range opts.Set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := opts.Set[k]; v != "" {
			err = s.SetAttribute(k, v)
		} else {
			err = s.RemoveAttribute(k)
		}
		if err != nil {
			return errors.Wrapf(err, "image: %s", k)
		}
	}
	for _, k := range opts.Delete {
		if err := s.RemoveAttribute(k); err != nil {
			return errors.Wrapf(err, "image: %s", k)
		}
	}
	if opts.DryRun {
		return nil
	}

	out := core.ResolveOutPath(path, outPath)
	if out == path {
		return s.SaveAttributes()
	}
	var buf bytes.Buffer
	if err := s.SaveTo(&buf); err != nil {
		return err
	}
	return writeOut(out, buf.Bytes())
}

// ──────────────────────────────────────────────────────────────────────────────
// Strip
// ──────────────────────────────────────────────────────────────────────────────

// Strip copies path to outPath without EXIF, XMP, ICC or Photoshop
// metadata. KeepOrientation carries the Orientation tag over.
func (h *Handler) Strip(path string, outPath string, opts core.StripOptions) error {
	if !h.Info().CanStrip {
		return errors.Wrapf(core.ErrUnsupportedFormat, "image: stripping %s is not supported", h.format)
	}
	s, err := exif.Open(path, h.opts...)
	if err != nil {
		return err
	}
	in, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(core.ErrIO, "image: read %s: %v", path, err)
	}
	var buf bytes.Buffer
	if err := s.SaveExclusive(bytes.NewReader(in), &buf, opts.KeepOrientation); err != nil {
		return err
	}
	return writeOut(core.ResolveOutPath(path, outPath), buf.Bytes())
}

func writeOut(path string, b []byte) error {
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errors.Wrapf(core.ErrIO, "image: write %s: %v", path, err)
	}
	return nil
}
