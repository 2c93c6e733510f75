package importer

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const xsiNamespace = "http://www.w3.org/2001/XMLSchema-instance"

type xmlSource struct {
	dec      *xml.Decoder
	singular string
	index    int
	done     bool
}

// NewXMLSource streams records found at <root>/<plural>/<singular>. The root
// element's name is not checked, and a root that is itself named plural is
// accepted as the collection. Element and attribute names are compared
// after NormalizeKey.
func NewXMLSource(r io.Reader, plural, singular string, transcoded bool) (RecordSource, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = xmlCharsetReader(transcoded)

	root, err := nextStart(dec)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: document has no root element", ErrMissingStructure)
		}
		return nil, &DecodeError{Index: 0, Err: err}
	}

	s := &xmlSource{dec: dec, singular: singular}
	if NormalizeKey(root.Name.Local) == plural {
		return s, nil
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, &DecodeError{Index: 0, Err: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if NormalizeKey(t.Name.Local) == plural {
				return s, nil
			}
			if err := dec.Skip(); err != nil {
				return nil, &DecodeError{Index: 0, Err: err}
			}
		case xml.EndElement:
			return nil, fmt.Errorf("%w: no <%s> element under <%s>", ErrMissingStructure, plural, root.Name.Local)
		}
	}
}

func nextStart(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return xml.StartElement{}, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se, nil
		}
	}
}

func (s *xmlSource) Next() (Record, error) {
	if s.done {
		return Record{}, io.EOF
	}
	for {
		tok, err := s.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return Record{}, &DecodeError{Index: s.index, Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if NormalizeKey(t.Name.Local) != s.singular {
				if err := s.dec.Skip(); err != nil {
					return Record{}, &DecodeError{Index: s.index, Err: err}
				}
				continue
			}
			v, err := readElement(s.dec, t)
			if err != nil {
				return Record{}, &DecodeError{Index: s.index, Err: err}
			}
			rec := Record{Index: s.index}
			if m, ok := v.(map[string]any); ok {
				rec.Fields = m
			} else {
				rec.Err = errors.New("record element has no fields")
			}
			s.index++
			return rec, nil
		case xml.EndElement:
			// End of the collection. Whatever follows is not read.
			s.done = true
			return Record{}, io.EOF
		}
	}
}

// readElement returns nil for xsi:nil elements, a string for text-only
// elements and a map for elements with attributes or children. A child name
// that repeats becomes a []any.
func readElement(dec *xml.Decoder, start xml.StartElement) (any, error) {
	var (
		fields   map[string]any
		repeated map[string]bool
		text     strings.Builder
		isNil    bool
	)

	for _, a := range start.Attr {
		if a.Name.Local == "nil" && (a.Name.Space == xsiNamespace || a.Name.Space == "xsi") {
			isNil = strings.EqualFold(strings.TrimSpace(a.Value), "true")
			continue
		}
		if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" || a.Name.Space == xsiNamespace {
			continue
		}
		if fields == nil {
			fields = make(map[string]any)
		}
		fields[NormalizeKey(a.Name.Local)] = a.Value
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			v, err := readElement(dec, t)
			if err != nil {
				return nil, err
			}
			if fields == nil {
				fields = make(map[string]any)
			}
			key := NormalizeKey(t.Name.Local)
			existing, seen := fields[key]
			switch {
			case !seen:
				fields[key] = v
			case repeated[key]:
				fields[key] = append(existing.([]any), v)
			default:
				if repeated == nil {
					repeated = make(map[string]bool)
				}
				repeated[key] = true
				fields[key] = []any{existing, v}
			}
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			switch {
			case isNil:
				return nil, nil
			case fields != nil:
				if s := strings.TrimSpace(text.String()); s != "" {
					fields["value"] = s
				}
				return fields, nil
			default:
				return strings.TrimSpace(text.String()), nil
			}
		}
	}
}
