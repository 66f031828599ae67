// Copyright 2025 Jens Heikel
// SPDX-License-Identifier: MIT

package metastream

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
)

const (
	rdfNS   = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	xNS     = "adobe:ns:meta/"
	xmlnsNS = "xmlns"
)

// xmpNamespaces maps the schema prefixes used in Xmp.* tag keys to their
// namespace URIs.
var xmpNamespaces = map[string]string{
	"xmp":       "http://ns.adobe.com/xap/1.0/",
	"exif":      "http://ns.adobe.com/exif/1.0/",
	"tiff":      "http://ns.adobe.com/tiff/1.0/",
	"dc":        "http://purl.org/dc/elements/1.1/",
	"photoshop": "http://ns.adobe.com/photoshop/1.0/",
	"xmpMM":     "http://ns.adobe.com/xap/1.0/mm/",
}

var xmpPrefixes = func() map[string]string {
	m := make(map[string]string, len(xmpNamespaces))
	for prefix, ns := range xmpNamespaces {
		m[ns] = prefix
	}
	return m
}()

type xmpProperty struct {
	Prefix string
	Name   string
	Value  string
}

// xmpPacket is a flat view of the simple properties of an XMP packet.
// Structured values (Seq/Bag/Alt containers) are not modelled; the packet
// keeps what the store needs for tag lookup, GPS deletion and rewriting.
type xmpPacket struct {
	props []xmpProperty
}

type xmpRDF struct {
	XMLName      xml.Name
	Descriptions []xmpRDFDescription `xml:"Description"`
}

// XMP properties commonly appear in two spellings: as attributes of
// rdf:Description and as simple child elements. Both are read.
type xmpRDFDescription struct {
	XMLName xml.Name
	Attrs   []xml.Attr   `xml:",any,attr"`
	Nodes   []xmpRDFNode `xml:",any"`
}

type xmpRDFNode struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type xmpMeta struct {
	XMLName xml.Name
	RDF     xmpRDF `xml:"RDF"`
}

// decodeXMPPacket parses an XMP packet into its simple properties.
// Properties in namespaces without a registered prefix are dropped.
func decodeXMPPacket(p []byte) (*xmpPacket, error) {
	var meta xmpMeta
	if err := xml.Unmarshal(p, &meta); err != nil {
		return nil, newInvalidFormatErrorf("decoding XMP: %w", err)
	}

	pk := &xmpPacket{}
	for _, desc := range meta.RDF.Descriptions {
		for _, attr := range desc.Attrs {
			if attr.Name.Space == xmlnsNS || attr.Name.Space == rdfNS {
				continue
			}
			prefix, ok := xmpPrefixes[attr.Name.Space]
			if !ok {
				continue
			}
			pk.set(prefix, attr.Name.Local, attr.Value)
		}
		for _, n := range desc.Nodes {
			prefix, ok := xmpPrefixes[n.XMLName.Space]
			if !ok {
				continue
			}
			v := strings.TrimSpace(n.Value)
			if v == "" {
				// Likely a container element; those are not modelled.
				continue
			}
			pk.set(prefix, n.XMLName.Local, v)
		}
	}
	return pk, nil
}

func (p *xmpPacket) get(prefix, name string) (string, bool) {
	for _, prop := range p.props {
		if prop.Prefix == prefix && prop.Name == name {
			return prop.Value, true
		}
	}
	return "", false
}

func (p *xmpPacket) set(prefix, name, value string) {
	for i, prop := range p.props {
		if prop.Prefix == prefix && prop.Name == name {
			p.props[i].Value = value
			return
		}
	}
	p.props = append(p.props, xmpProperty{Prefix: prefix, Name: name, Value: value})
}

func (p *xmpPacket) deleteMatching(match func(prefix, name string) bool) {
	kept := p.props[:0]
	for _, prop := range p.props {
		if !match(prop.Prefix, prop.Name) {
			kept = append(kept, prop)
		}
	}
	p.props = kept
}

func (p *xmpPacket) empty() bool {
	return p == nil || len(p.props) == 0
}

// encode serializes the packet in attribute form, declaring only the
// namespaces in use. Properties are sorted for deterministic output.
func (p *xmpPacket) encode() []byte {
	props := make([]xmpProperty, len(p.props))
	copy(props, p.props)
	sort.Slice(props, func(i, j int) bool {
		if props[i].Prefix != props[j].Prefix {
			return props[i].Prefix < props[j].Prefix
		}
		return props[i].Name < props[j].Name
	})

	prefixes := make([]string, 0, len(props))
	seen := make(map[string]bool)
	for _, prop := range props {
		if !seen[prop.Prefix] {
			seen[prop.Prefix] = true
			prefixes = append(prefixes, prop.Prefix)
		}
	}

	var buf bytes.Buffer
	buf.WriteString("<?xpacket begin=\"\uFEFF\" id=\"W5M0MpCehiHzreSzNTczkc9d\"?>\n")
	buf.WriteString(`<x:xmpmeta xmlns:x="` + xNS + `">` + "\n")
	buf.WriteString(` <rdf:RDF xmlns:rdf="` + rdfNS + `">` + "\n")
	buf.WriteString(`  <rdf:Description rdf:about=""`)
	for _, prefix := range prefixes {
		fmt.Fprintf(&buf, "\n    xmlns:%s=%q", prefix, xmpNamespaces[prefix])
	}
	for _, prop := range props {
		buf.WriteString("\n    " + prop.Prefix + ":" + prop.Name + `="`)
		xml.EscapeText(&buf, []byte(prop.Value))
		buf.WriteString(`"`)
	}
	buf.WriteString("/>\n")
	buf.WriteString(" </rdf:RDF>\n")
	buf.WriteString(`</x:xmpmeta>` + "\n")
	buf.WriteString(`<?xpacket end="w"?>`)
	return buf.Bytes()
}
