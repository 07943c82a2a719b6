// Package core defines the shared types, error kinds, and format registry
// for EXIF Surgery.
package core

// MetaField represents a single metadata key-value pair.
type MetaField struct {
	Key      string // Canonical attribute name (e.g. "Make", "GPSLatitude")
	Value    string // String representation of the value
	Category string // Category label (e.g. "Primary", "Exif", "GPS", "XMP")
	Editable bool   // Whether this field can be written back by surgery
	Raw      string // Byte range in the source, when tracked
}

// Metadata holds all metadata extracted from a single file.
type Metadata struct {
	FilePath string
	Format   string // Human-readable format name (e.g. "JPEG", "WebP")
	Fields   []MetaField
}

// Summary returns a short string of key fields for quick display.
func (m *Metadata) Summary() string {
	for _, f := range m.Fields {
		if f.Key == "Make" || f.Key == "Model" || f.Key == "DateTimeOriginal" {
			return f.Key + ": " + f.Value
		}
	}
	return m.Format
}

// Range is an (offset, length) pair into the original source bytes.
type Range struct {
	Offset int64
	Length int64
}

// End returns the offset one past the range.
func (r Range) End() int64 { return r.Offset + r.Length }

// StripOptions controls what survives an exclusive copy.
type StripOptions struct {
	// KeepOrientation retains the Orientation tag in a fresh EXIF block.
	KeepOrientation bool
}

// EditOptions holds field changes for an edit operation.
type EditOptions struct {
	// Set is a map of Key → Value for fields to set or update.
	Set map[string]string
	// Delete is a list of field keys to remove.
	Delete []string
	// DryRun previews changes without writing.
	DryRun bool
}

// FormatInfo describes what a format handler supports.
type FormatInfo struct {
	Name       string   // "JPEG"
	Extensions []string // [".jpg", ".jpeg"]
	MIMETypes  []string
	CanView    bool
	CanEdit    bool
	CanStrip   bool
	Notes      string // Any caveats or notes
}

// Handler is the interface every format must implement.
type Handler interface {
	// View reads and returns all discoverable metadata from path.
	View(path string) (*Metadata, error)
	// Edit writes new/updated fields into path, saving to outPath.
	// outPath == "" means in-place edit.
	Edit(path string, outPath string, opts EditOptions) error
	// Strip removes metadata from path, saving to outPath.
	Strip(path string, outPath string, opts StripOptions) error
	// Info returns format capabilities.
	Info() FormatInfo
}
