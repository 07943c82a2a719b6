package exif

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/ankit-chaubey/exif-surgery/core"
	"github.com/ankit-chaubey/exif-surgery/core/container"
	"github.com/ankit-chaubey/exif-surgery/core/tiff"
)

// prepared returns the structure as it will be written: a copy with
// DateTime back-filled from DateTimeOriginal when only the latter is set.
func (s *Store) prepared() *tiff.Structure {
	st := s.ifds.Clone()
	if _, ok := st.Lookup(tiff.GroupPrimary, tiff.TagDateTime); ok {
		return st
	}
	orig, ok := st.Lookup(tiff.GroupExif, tiff.TagDateTimeOriginal)
	if !ok {
		return st
	}
	e := orig.Clone()
	e.ID = tiff.TagDateTime
	e.Offset = -1
	st.IFD(tiff.GroupPrimary).Set(e)
	return st
}

// EncodeExif serializes the store as a bare TIFF structure, thumbnail
// included. It returns nil when there is nothing to write.
func (s *Store) EncodeExif() ([]byte, error) {
	st := s.prepared()
	if st.Empty() {
		return nil, nil
	}
	opts := tiff.EncodeOptions{}
	if s.thumb != nil {
		opts.Thumbnail = s.thumb.data
		if !s.thumb.compressed {
			opts.StripCounts = s.thumb.strips
		}
	}
	enc, err := st.Encode(opts)
	if err != nil {
		return nil, err
	}
	return enc.Bytes, nil
}

// encode rebuilds the whole source with the current metadata.
func (s *Store) encode() ([]byte, error) {
	switch {
	case s.format == core.FmtExif:
		blob, err := s.EncodeExif()
		if err != nil {
			return nil, err
		}
		if s.prefixed {
			blob = append(append([]byte(nil), core.ExifIdentifier...), blob...)
		}
		return blob, nil
	case len(s.raw) == 0:
		return nil, errors.Wrapf(core.ErrUnsupportedFormat, "exif: no %s container to rewrite", s.format)
	case s.format == core.FmtTIFF || s.format == core.FmtDNG:
		return container.RebuildTIFF(s.raw, s.prepared())
	case container.CanRebuild(s.format):
		blob, err := s.EncodeExif()
		if err != nil {
			return nil, err
		}
		return rebuild(s.raw, s.loc, container.Rewrite{Exif: blob})
	}
	return nil, errors.Wrapf(core.ErrUnsupportedFormat, "exif: saving %s is not supported", s.format)
}

// rebuild reports a JPEG segment overflow as an I/O failure.
func rebuild(b []byte, loc *container.Located, rw container.Rewrite) ([]byte, error) {
	out, err := container.Rebuild(b, loc, rw)
	var overflow *container.SegmentOverflowError
	if errors.As(err, &overflow) {
		return nil, errors.Wrap(core.ErrIO, overflow.Error())
	}
	return out, err
}

// SaveAttributes writes the metadata back into the file the store was
// opened from and reloads the store from the result. The file is not
// touched when serialization fails.
func (s *Store) SaveAttributes() error {
	if s.src != srcPath && s.src != srcFile {
		return errors.Wrap(core.ErrUnsupportedFormat, "exif: store was not opened from a file, use SaveTo")
	}
	out, err := s.encode()
	if err != nil {
		return err
	}
	switch s.src {
	case srcPath:
		if err := os.WriteFile(s.path, out, 0o644); err != nil {
			return errors.Wrapf(core.ErrIO, "exif: write %s: %v", s.path, err)
		}
	case srcFile:
		if err := rewriteFile(s.file, out); err != nil {
			return err
		}
	}
	s.log.Debug().Str("path", s.path).Int("size", len(out)).Msg("exif: saved")
	return s.load(out)
}

func rewriteFile(f *os.File, b []byte) error {
	if err := f.Truncate(0); err != nil {
		return errors.Wrapf(core.ErrIO, "exif: truncate %s: %v", f.Name(), err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return errors.Wrapf(core.ErrIO, "exif: seek %s: %v", f.Name(), err)
	}
	if _, err := f.Write(b); err != nil {
		return errors.Wrapf(core.ErrIO, "exif: write %s: %v", f.Name(), err)
	}
	return nil
}

// SaveTo writes the source with the current metadata to w. Stores without
// a container write the bare structure.
func (s *Store) SaveTo(w io.Writer) error {
	out, err := s.encode()
	if err != nil {
		return err
	}
	if _, err := w.Write(out); err != nil {
		return errors.Wrapf(core.ErrIO, "exif: write: %v", err)
	}
	return nil
}

// SaveExclusive copies the image in r to w without any metadata: EXIF,
// XMP, extended XMP, ICC and Photoshop units are all dropped. With
// preserveOrientation, a fresh EXIF block carries this store's
// Orientation, when it has one, and LightSource 0.
func (s *Store) SaveExclusive(r io.Reader, w io.Writer, preserveOrientation bool) error {
	if r == nil || w == nil {
		return errors.Wrap(core.ErrNullArgument, "exif: nil stream")
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrapf(core.ErrIO, "exif: read stream: %v", err)
	}
	loc, err := container.Locate(b, s.log)
	if err != nil {
		return err
	}
	if !container.CanRebuild(loc.Format) {
		return errors.Wrapf(core.ErrUnsupportedFormat, "exif: exclusive copy of %s is not supported", loc.Format)
	}

	var blob []byte
	if o, ok := s.ifds.Lookup(tiff.GroupPrimary, tiff.TagOrientation); ok && preserveOrientation {
		order := s.ifds.Order
		st := tiff.NewStructure(order)
		st.IFD(tiff.GroupPrimary).Set(o.Clone())
		st.IFD(tiff.GroupExif).Set(tiff.NewShort(tiff.TagLightSource, 0, order))
		enc, err := st.Encode(tiff.EncodeOptions{})
		if err != nil {
			return err
		}
		blob = enc.Bytes
	}
	out, err := rebuild(b, loc, container.Rewrite{Exif: blob, Exclusive: true})
	if err != nil {
		return err
	}
	if _, err := w.Write(out); err != nil {
		return errors.Wrapf(core.ErrIO, "exif: write: %v", err)
	}
	return nil
}
