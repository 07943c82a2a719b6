// Package exif is the metadata store: it opens an image or a bare EXIF
// structure, exposes its tags by name, and writes edits back into the
// same container.
//
// A Store is not safe for concurrent use. Two stores over different
// images are independent.
package exif

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ankit-chaubey/exif-surgery/core"
	"github.com/ankit-chaubey/exif-surgery/core/container"
	"github.com/ankit-chaubey/exif-surgery/core/tiff"
)

// Option configures a Store at open time.
type Option func(*options)

type options struct {
	trackRanges bool
	log         zerolog.Logger
}

// TrackRanges records the source offset of every value so that
// AttributeRange can answer.
func TrackRanges() Option {
	return func(o *options) { o.trackRanges = true }
}

// WithLogger sets the logger used for tolerated corruption.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

type sourceKind int

const (
	srcNone sourceKind = iota
	srcPath
	srcFile
	srcStream
	srcBlob
)

// Store is an in-memory view of the EXIF metadata of one image.
type Store struct {
	opts options
	log  zerolog.Logger

	src  sourceKind
	path string
	file *os.File

	format core.FormatID
	raw    []byte
	loc    *container.Located
	ifds   *tiff.Structure
	// prefixed is set for bare blobs that carried the APP1 identifier.
	prefixed bool

	thumb *thumbnail
}

func newStore(src sourceKind, opts []Option) *Store {
	o := options{log: zerolog.Nop()}
	for _, fn := range opts {
		fn(&o)
	}
	return &Store{opts: o, log: o.log, src: src}
}

// New returns an empty store with no backing container. It can only be
// serialized with EncodeExif or SaveTo.
func New(opts ...Option) *Store {
	s := newStore(srcNone, opts)
	s.format = core.FmtExif
	s.loc = &container.Located{Format: core.FmtExif}
	s.ifds = tiff.NewStructure(binary.BigEndian)
	return s
}

// Open reads the image at path. SaveAttributes writes back to it.
func Open(path string, opts ...Option) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(core.ErrIO, "exif: open %s: %v", path, err)
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrapf(core.ErrIO, "exif: read %s: %v", path, err)
	}
	s := newStore(srcPath, opts)
	s.path = path
	if err := s.load(b); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenFile reads the image behind an open descriptor, which must be
// readable and seekable. SaveAttributes rewrites the same descriptor, so
// it must also be writable for that. The caller keeps ownership of f.
func OpenFile(f *os.File, opts ...Option) (*Store, error) {
	if f == nil {
		return nil, errors.Wrap(core.ErrNullArgument, "exif: nil file")
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrapf(core.ErrIO, "exif: seek %s: %v", f.Name(), err)
	}
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrapf(core.ErrIO, "exif: read %s: %v", f.Name(), err)
	}
	s := newStore(srcFile, opts)
	s.file = f
	s.path = f.Name()
	if err := s.load(b); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenReader reads a whole image from r. The store has nowhere to save in
// place; use SaveTo.
func OpenReader(r io.Reader, opts ...Option) (*Store, error) {
	if r == nil {
		return nil, errors.Wrap(core.ErrNullArgument, "exif: nil reader")
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(core.ErrIO, "exif: read stream: %v", err)
	}
	s := newStore(srcStream, opts)
	if err := s.load(b); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenExifData parses a bare TIFF structure, optionally preceded by the
// "Exif\0\0" identifier. A structure that does not parse yields an empty
// store.
func OpenExifData(b []byte, opts ...Option) (*Store, error) {
	s := newStore(srcBlob, opts)
	s.format = core.FmtExif
	s.raw = b
	off := int64(0)
	if bytes.HasPrefix(b, core.ExifIdentifier) {
		s.prefixed = true
		off = int64(len(core.ExifIdentifier))
	}
	s.loc = &container.Located{
		Format: core.FmtExif,
		Exif:   &container.Block{Data: b[off:], Range: core.Range{Offset: off, Length: int64(len(b)) - off}},
	}
	s.parse()
	return s, nil
}

// load scans b and parses the EXIF structure it carries. Only an
// unrecognised container is an error; broken metadata leaves the store
// empty.
func (s *Store) load(b []byte) error {
	s.raw = b
	s.thumb = nil
	if len(b) == 0 {
		s.format = core.FormatForExt(s.path)
		s.loc = &container.Located{Format: s.format}
		s.ifds = tiff.NewStructure(binary.BigEndian)
		return nil
	}
	loc, err := container.Locate(b, s.log)
	if err != nil {
		return errors.Wrapf(err, "exif: %s", s.describe())
	}
	loc.Format = core.Refine(loc.Format, s.path)
	s.format = loc.Format
	s.prefixed = loc.Format == core.FmtExif
	s.loc = loc
	s.parse()
	return nil
}

func (s *Store) parse() {
	s.ifds = tiff.NewStructure(binary.BigEndian)
	blk := s.loc.Exif
	if blk == nil || len(blk.Data) == 0 {
		return
	}
	base := int64(-1)
	if s.opts.trackRanges && blk.Contiguous() {
		base = blk.Range.Offset
	}
	st, err := tiff.Parse(blk.Data, base, s.log)
	if err != nil {
		s.log.Debug().Err(err).Str("format", string(s.format)).Msg("exif: unreadable structure, treating as empty")
		return
	}
	s.ifds = st
	s.thumb = findThumbnail(st, blk, s.log)
}

func (s *Store) describe() string {
	if s.path != "" {
		return s.path
	}
	return "stream"
}

// Format is the container the store was read from.
func (s *Store) Format() core.FormatID { return s.format }

// ByteOrder is the byte order of the EXIF structure.
func (s *Store) ByteOrder() binary.ByteOrder { return s.ifds.Order }

// Structure exposes the parsed directories. Callers must not modify it.
func (s *Store) Structure() *tiff.Structure { return s.ifds }

// ─── Blocks ──────────────────────────────────────────────────────────────────

func blockData(b *container.Block) []byte {
	if b == nil {
		return nil
	}
	return b.Data
}

// HasXMP reports an XMP packet in the Xmp tag or in the container.
func (s *Store) HasXMP() bool {
	_, ok := s.ifds.Lookup(tiff.GroupPrimary, tiff.TagXmp)
	return ok || s.loc.XMP != nil
}

// XMP returns the Xmp tag when present, otherwise the container packet.
func (s *Store) XMP() []byte {
	if e, ok := s.ifds.Lookup(tiff.GroupPrimary, tiff.TagXmp); ok {
		return e.Value
	}
	return blockData(s.loc.XMP)
}

func (s *Store) HasExtendedXMP() bool { return s.loc.ExtendedXMP != nil }

// ExtendedXMP is the reassembled extension packet of a JPEG.
func (s *Store) ExtendedXMP() []byte { return blockData(s.loc.ExtendedXMP) }

func (s *Store) HasICCProfile() bool { return s.loc.ICC != nil }

func (s *Store) ICCProfile() []byte { return blockData(s.loc.ICC) }

func (s *Store) HasPhotoshopImageResources() bool { return s.loc.Photoshop != nil }

func (s *Store) PhotoshopImageResources() []byte { return blockData(s.loc.Photoshop) }
