package image

import (
	"bytes"
	"encoding/binary"
	"encoding/xml"
	"strings"

	"github.com/ankit-chaubey/exif-surgery/core"
)

// ─── XMP ─────────────────────────────────────────────────────────────────────

// rdfContainers hold list items; their values belong to the enclosing
// property.
var rdfContainers = map[string]bool{"li": true, "Seq": true, "Bag": true, "Alt": true}

var rdfStructure = map[string]bool{"xmpmeta": true, "RDF": true, "Description": true}

// parseXMPInto lists the leaf properties of an XMP packet. Both the
// attribute form (rdf:Description xmp:Rating="3") and the element form
// are read. Malformed XML ends the walk quietly.
func parseXMPInto(data []byte, m *core.Metadata) {
	if len(data) == 0 {
		return
	}
	add := func(key, value string) {
		m.Fields = append(m.Fields, core.MetaField{
			Key:      "xmp:" + key,
			Value:    value,
			Category: "XMP",
		})
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var stack []string
	for {
		tok, err := dec.Token()
		if err != nil {
			return
		}
		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" || a.Value == "" {
					continue
				}
				if a.Name.Local == "about" || a.Name.Local == "xmptk" {
					continue
				}
				add(a.Name.Local, a.Value)
			}
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			v := strings.TrimSpace(string(t))
			if v == "" {
				continue
			}
			if prop := property(stack); prop != "" {
				add(prop, v)
			}
		}
	}
}

// property is the innermost element that is neither an RDF container nor
// part of the packet skeleton.
func property(stack []string) string {
	for i := len(stack) - 1; i >= 0; i-- {
		if rdfContainers[stack[i]] {
			continue
		}
		if rdfStructure[stack[i]] {
			return ""
		}
		return stack[i]
	}
	return ""
}

// ─── IPTC ────────────────────────────────────────────────────────────────────

var iptcFieldNames = map[byte]string{
	0x05: "ObjectName",
	0x0F: "Category",
	0x14: "SupplementalCategory",
	0x19: "Keywords",
	0x1E: "DateCreated",
	0x1F: "TimeCreated",
	0x28: "SpecialInstructions",
	0x37: "DigitalCreationDate",
	0x3C: "Byline",
	0x3E: "BylineTitle",
	0x46: "City",
	0x4E: "Province",
	0x55: "Country",
	0x67: "OriginalTransmissionReference",
	0x69: "Headline",
	0x6E: "Credit",
	0x73: "Source",
	0x74: "CopyrightNotice",
	0x76: "Contact",
	0x78: "Caption",
	0x7A: "CaptionWriter",
}

const iptcResource = 0x0404

// parseIPTCInto walks Photoshop image resources and lists the datasets of
// the IPTC-NAA record.
func parseIPTCInto(data []byte, m *core.Metadata) {
	i := 0
	for i+12 <= len(data) {
		if !bytes.Equal(data[i:i+4], []byte("8BIM")) {
			return
		}
		id := binary.BigEndian.Uint16(data[i+4:])
		// pascal name, padded to an even length including its length byte
		name := int(data[i+6]) + 1
		name += name % 2
		i += 6 + name
		if i+4 > len(data) {
			return
		}
		size := int(binary.BigEndian.Uint32(data[i:]))
		i += 4
		if size < 0 || i+size > len(data) {
			return
		}
		if id == iptcResource {
			parseIPTCBlock(data[i:i+size], m)
		}
		i += size + size%2
	}
}

func parseIPTCBlock(data []byte, m *core.Metadata) {
	i := 0
	for i+5 <= len(data) {
		if data[i] != 0x1C {
			i++
			continue
		}
		dataset := data[i+2]
		n := int(binary.BigEndian.Uint16(data[i+3:]))
		i += 5
		if i+n > len(data) {
			return
		}
		if name, ok := iptcFieldNames[dataset]; ok {
			m.Fields = append(m.Fields, core.MetaField{
				Key:      name,
				Value:    string(data[i : i+n]),
				Category: "IPTC",
			})
		}
		i += n
	}
}
