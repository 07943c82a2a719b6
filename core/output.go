package core

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Printer renders CLI output as text or JSON.
type Printer struct {
	JSON bool
	// Ranges adds the source byte range of each value when it is known.
	Ranges bool
	Writer io.Writer
}

// NewPrinter creates a Printer writing to stdout.
func NewPrinter(jsonMode, ranges bool) *Printer {
	return &Printer{JSON: jsonMode, Ranges: ranges, Writer: os.Stdout}
}

// PrintMetadata renders m, grouped by category in first-seen order.
func (p *Printer) PrintMetadata(m *Metadata) {
	if p.JSON {
		p.printJSON(m)
		return
	}
	p.printText(m)
}

func (p *Printer) printText(m *Metadata) {
	fmt.Fprintf(p.Writer, "File  : %s\n", m.FilePath)
	fmt.Fprintf(p.Writer, "Format: %s\n", m.Format)
	if len(m.Fields) == 0 {
		fmt.Fprintln(p.Writer, "(no metadata found)")
		return
	}
	fmt.Fprintln(p.Writer)

	groups := make(map[string][]MetaField)
	var order []string
	for _, f := range m.Fields {
		if _, ok := groups[f.Category]; !ok {
			order = append(order, f.Category)
		}
		groups[f.Category] = append(groups[f.Category], f)
	}

	for _, cat := range order {
		fmt.Fprintf(p.Writer, "── %s ──\n", cat)
		for _, f := range groups[cat] {
			var extra string
			if f.Editable {
				extra += " [editable]"
			}
			if p.Ranges && f.Raw != "" {
				extra += " @" + f.Raw
			}
			fmt.Fprintf(p.Writer, "  %-30s %s%s\n", f.Key+":", f.Value, extra)
		}
		fmt.Fprintln(p.Writer)
	}
}

func (p *Printer) printJSON(m *Metadata) {
	type jsonField struct {
		Key      string `json:"key"`
		Value    string `json:"value"`
		Category string `json:"category"`
		Editable bool   `json:"editable"`
		Range    string `json:"range,omitempty"`
	}
	type jsonOutput struct {
		FilePath string      `json:"file"`
		Format   string      `json:"format"`
		Fields   []jsonField `json:"fields"`
	}

	out := jsonOutput{FilePath: m.FilePath, Format: m.Format, Fields: []jsonField{}}
	for _, f := range m.Fields {
		jf := jsonField{Key: f.Key, Value: f.Value, Category: f.Category, Editable: f.Editable}
		if p.Ranges {
			jf.Range = f.Raw
		}
		out.Fields = append(out.Fields, jf)
	}

	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Fprintln(p.Writer, string(b))
}

// PrintFormats renders the capability table.
func (p *Printer) PrintFormats(infos []FormatInfo) {
	if p.JSON {
		b, _ := json.MarshalIndent(infos, "", "  ")
		fmt.Fprintln(p.Writer, string(b))
		return
	}
	yes := func(b bool) string {
		if b {
			return "yes"
		}
		return "-"
	}
	fmt.Fprintf(p.Writer, "%-10s %-22s %-5s %-5s %-5s\n", "FORMAT", "EXTENSIONS", "VIEW", "EDIT", "STRIP")
	for _, f := range infos {
		fmt.Fprintf(p.Writer, "%-10s %-22s %-5s %-5s %-5s\n",
			f.Name, strings.Join(f.Extensions, ","), yes(f.CanView), yes(f.CanEdit), yes(f.CanStrip))
	}
}

// PrintSuccess prints a success message.
func (p *Printer) PrintSuccess(msg string) {
	if !p.JSON {
		fmt.Fprintln(p.Writer, "✓ "+msg)
	}
}

// PrintInfo prints an info line (suppressed in JSON mode).
func (p *Printer) PrintInfo(msg string) {
	if !p.JSON {
		fmt.Fprintln(p.Writer, msg)
	}
}

// PrintError prints an error to stderr.
func PrintError(msg string) {
	fmt.Fprintln(os.Stderr, "✗ Error: "+msg)
}

// ParseKV parses a "Key=Value" string. The value may be empty.
func ParseKV(s string) (key, value string, ok bool) {
	k, v, found := strings.Cut(s, "=")
	k = strings.TrimSpace(k)
	if !found || k == "" {
		return "", "", false
	}
	return k, strings.TrimSpace(v), true
}

// ResolveOutPath returns dst if non-empty, otherwise src (in-place).
func ResolveOutPath(src, dst string) string {
	if dst == "" {
		return src
	}
	return dst
}
