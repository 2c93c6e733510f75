package importer

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// NewJSONSource parses the whole document before yielding records. The top
// level must be an array of objects or an object holding such an array
// under one of wrapperKeys. Like the streaming source, the first member in
// document order whose key matches and whose value is an array wins.
func NewJSONSource(r io.Reader, wrapperKeys []string) (RecordSource, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, &DecodeError{Index: 0, Err: unexpectedEOF(err)}
	}

	var items []any
	switch tok {
	case json.Delim('['):
		items, err = decodeArray(dec)
	case json.Delim('{'):
		items, err = decodeWrapped(dec, wrapperKeys)
	default:
		return nil, fmt.Errorf("%w: top level is %s", ErrMissingStructure, kindOf(tok))
	}
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &DecodeError{Index: len(items), Err: errors.New("unexpected data after top-level value")}
	}

	records := make([]Record, len(items))
	for i, item := range items {
		records[i] = toRecord(i, item)
	}
	return &sliceSource{records: records}, nil
}

// decodeArray reads the elements of an array whose '[' was consumed.
func decodeArray(dec *json.Decoder) ([]any, error) {
	items := []any{}
	for dec.More() {
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, &DecodeError{Index: len(items), Err: unexpectedEOF(err)}
		}
		items = append(items, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, &DecodeError{Index: len(items), Err: unexpectedEOF(err)}
	}
	return items, nil
}

// decodeWrapped reads an object whose '{' was consumed and returns the first
// matching array member.
func decodeWrapped(dec *json.Decoder, wrapperKeys []string) ([]any, error) {
	var (
		items    []any
		found    bool
		nonArray string
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, &DecodeError{Index: 0, Err: unexpectedEOF(err)}
		}
		key, _ := tok.(string)

		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, &DecodeError{Index: 0, Err: unexpectedEOF(err)}
		}
		if found || !containsKey(wrapperKeys, NormalizeKey(key)) {
			continue
		}
		arr, ok := v.([]any)
		if !ok {
			if nonArray == "" {
				nonArray = key
			}
			continue
		}
		items, found = arr, true
	}
	if _, err := dec.Token(); err != nil {
		return nil, &DecodeError{Index: 0, Err: unexpectedEOF(err)}
	}
	if !found {
		return nil, missingWrapper(wrapperKeys, nonArray)
	}
	return items, nil
}

func missingWrapper(wrapperKeys []string, nonArray string) error {
	if nonArray != "" {
		return fmt.Errorf("%w: %q is not an array", ErrMissingStructure, nonArray)
	}
	return fmt.Errorf("%w: object has none of the keys %v", ErrMissingStructure, wrapperKeys)
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// jsonStreamSource decodes one array element per Next call.
type jsonStreamSource struct {
	dec   *json.Decoder
	index int
	done  bool
}

// sniffSize bounds how much of the input is inspected to pick a strategy.
const sniffSize = 512

// NewJSONStreamSource decodes incrementally. The top-level shape is chosen
// from the first bytes; for a wrapper object the decoder skips unrelated
// members until it reaches the record array.
func NewJSONStreamSource(r io.Reader, wrapperKeys []string) (RecordSource, error) {
	br := bufio.NewReaderSize(r, 32*1024)
	head, err := br.Peek(sniffSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, &DecodeError{Index: 0, Err: err}
	}

	trimmed := bytes.TrimLeft(head, " \t\r\n")
	if len(trimmed) == 0 {
		if len(head) == sniffSize {
			return nil, &DecodeError{Index: 0, Err: errors.New("leading whitespace exceeds sniff window")}
		}
		return nil, &DecodeError{Index: 0, Err: io.ErrUnexpectedEOF}
	}

	dec := json.NewDecoder(br)
	dec.UseNumber()
	s := &jsonStreamSource{dec: dec}

	switch trimmed[0] {
	case '[':
		if err := s.expectDelim('['); err != nil {
			return nil, err
		}
	case '{':
		if err := s.seekWrapper(wrapperKeys); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: top level is not an array or object", ErrMissingStructure)
	}
	return s, nil
}

func (s *jsonStreamSource) expectDelim(want json.Delim) error {
	tok, err := s.dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return &DecodeError{Index: s.index, Err: err}
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return &DecodeError{Index: s.index, Err: fmt.Errorf("expected %q, got %v", want, tok)}
	}
	return nil
}

// seekWrapper stops inside the first member whose key matches and whose
// value is an array. Matching members holding anything else are skipped.
func (s *jsonStreamSource) seekWrapper(wrapperKeys []string) error {
	if err := s.expectDelim('{'); err != nil {
		return err
	}
	var nonArray string
	for s.dec.More() {
		tok, err := s.dec.Token()
		if err != nil {
			return &DecodeError{Index: 0, Err: unexpectedEOF(err)}
		}
		key, _ := tok.(string)
		if !containsKey(wrapperKeys, NormalizeKey(key)) {
			var skip json.RawMessage
			if err := s.dec.Decode(&skip); err != nil {
				return &DecodeError{Index: 0, Err: unexpectedEOF(err)}
			}
			continue
		}

		tok, err = s.dec.Token()
		if err != nil {
			return &DecodeError{Index: 0, Err: unexpectedEOF(err)}
		}
		if d, ok := tok.(json.Delim); ok && d == '[' {
			return nil
		}
		if nonArray == "" {
			nonArray = key
		}
		if d, ok := tok.(json.Delim); ok && d == '{' {
			if err := s.skipRest(); err != nil {
				return err
			}
		}
	}
	if err := s.expectDelim('}'); err != nil {
		return err
	}
	return missingWrapper(wrapperKeys, nonArray)
}

// skipRest consumes the remainder of an object whose '{' was just read.
func (s *jsonStreamSource) skipRest() error {
	for depth := 1; depth > 0; {
		tok, err := s.dec.Token()
		if err != nil {
			return &DecodeError{Index: 0, Err: unexpectedEOF(err)}
		}
		switch tok {
		case json.Delim('{'), json.Delim('['):
			depth++
		case json.Delim('}'), json.Delim(']'):
			depth--
		}
	}
	return nil
}

func (s *jsonStreamSource) Next() (Record, error) {
	if s.done {
		return Record{}, io.EOF
	}
	if !s.dec.More() {
		if err := s.expectDelim(']'); err != nil {
			return Record{}, err
		}
		s.done = true
		return Record{}, io.EOF
	}

	var v any
	if err := s.dec.Decode(&v); err != nil {
		return Record{}, &DecodeError{Index: s.index, Err: err}
	}
	rec := toRecord(s.index, v)
	s.index++
	return rec, nil
}

func containsKey(keys []string, k string) bool {
	for _, key := range keys {
		if key == k {
			return true
		}
	}
	return false
}
