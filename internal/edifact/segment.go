// Package edifact converts between UN/EDIFACT interchanges and the
// canonical document model, covering the INVOIC and ORDERS message types
// in the D.96A and D.01B releases. A separate fixed-width grammar engine
// handles WAMAS-style flat-file records.
package edifact

import (
	"strings"

	"github.com/rezonia/docexchange/internal/model"
)

// Segment is one tagged EDIFACT record. Elements are ordered and each
// element is an ordered list of components
type Segment struct {
	Tag      string
	Elements [][]string
}

// comp returns component c of element e, or "" when out of range
func (s Segment) comp(e, c int) string {
	if e >= len(s.Elements) || c >= len(s.Elements[e]) {
		return ""
	}
	return s.Elements[e][c]
}

// Syntax holds the service characters of an interchange. The defaults are
// the UNOA/UNOC standard set; a UNA segment overrides them
type Syntax struct {
	ComponentSep byte
	ElementSep   byte
	DecimalMark  byte
	Release      byte
	Terminator   byte
}

// DefaultSyntax is the service-character set assumed without a UNA header
var DefaultSyntax = Syntax{
	ComponentSep: ':',
	ElementSep:   '+',
	DecimalMark:  '.',
	Release:      '?',
	Terminator:   '\'',
}

// Tokenize splits a raw interchange into segments, honoring a leading UNA
// service-string advice and the release (escape) character. Newlines
// between segments are tolerated since many partners emit one segment per
// line
func Tokenize(data []byte) ([]Segment, Syntax, error) {
	syntax := DefaultSyntax
	if len(data) >= 9 && string(data[:3]) == "UNA" {
		syntax = Syntax{
			ComponentSep: data[3],
			ElementSep:   data[4],
			DecimalMark:  data[5],
			Release:      data[6],
			Terminator:   data[8],
		}
		data = data[9:]
	}

	var segments []Segment
	var sb strings.Builder
	released := false

	var elements [][]string
	var components []string
	flushElement := func() {
		components = append(components, sb.String())
		sb.Reset()
		elements = append(elements, components)
		components = nil
	}

	for _, b := range data {
		if released {
			sb.WriteByte(b)
			released = false
			continue
		}
		switch b {
		case syntax.Release:
			released = true
		case syntax.ComponentSep:
			components = append(components, sb.String())
			sb.Reset()
		case syntax.ElementSep:
			flushElement()
		case syntax.Terminator:
			flushElement()
			if len(elements) == 0 || len(elements[0]) == 0 || elements[0][0] == "" {
				elements = nil
				continue
			}
			seg := Segment{Tag: elements[0][0], Elements: elements[1:]}
			segments = append(segments, seg)
			elements = nil
		case '\n', '\r':
			// segment separators in pretty-printed interchanges
		default:
			sb.WriteByte(b)
		}
	}
	if released {
		return nil, syntax, &model.MalformedInterchangeError{
			Message: "interchange ends with a dangling release character",
		}
	}
	if sb.Len() > 0 || len(elements) > 0 || len(components) > 0 {
		return nil, syntax, &model.MalformedInterchangeError{
			Message: "interchange does not end with a segment terminator",
		}
	}
	if len(segments) == 0 {
		return nil, syntax, &model.MalformedInterchangeError{Message: "empty interchange"}
	}
	return segments, syntax, nil
}

// Render serializes segments back to wire form using the given syntax,
// escaping service characters inside data
func Render(segments []Segment, syntax Syntax) []byte {
	var sb strings.Builder
	escape := func(s string) string {
		var out strings.Builder
		for i := 0; i < len(s); i++ {
			b := s[i]
			if b == syntax.ComponentSep || b == syntax.ElementSep ||
				b == syntax.Terminator || b == syntax.Release {
				out.WriteByte(syntax.Release)
			}
			out.WriteByte(b)
		}
		return out.String()
	}
	sb.WriteString("UNA")
	sb.WriteByte(syntax.ComponentSep)
	sb.WriteByte(syntax.ElementSep)
	sb.WriteByte(syntax.DecimalMark)
	sb.WriteByte(syntax.Release)
	sb.WriteByte(' ')
	sb.WriteByte(syntax.Terminator)
	for _, seg := range segments {
		sb.WriteString(seg.Tag)
		for _, el := range seg.Elements {
			sb.WriteByte(syntax.ElementSep)
			for i, c := range el {
				if i > 0 {
					sb.WriteByte(syntax.ComponentSep)
				}
				sb.WriteString(escape(c))
			}
		}
		sb.WriteByte(syntax.Terminator)
		sb.WriteByte('\n')
	}
	return []byte(sb.String())
}

// seg is a builder shorthand used by the encoder
func seg(tag string, elements ...[]string) Segment {
	return Segment{Tag: tag, Elements: elements}
}

func el(components ...string) []string {
	return components
}
