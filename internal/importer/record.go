package importer

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrMissingStructure   = errors.New("expected record collection not found")
	ErrUnsupportedFormat  = errors.New("unsupported file format")
	ErrUnsupportedCharset = errors.New("unsupported charset")
	ErrMissingFile        = errors.New("no file uploaded")
	ErrFileTooLarge       = errors.New("file exceeds size limit")
	ErrUnknownEntity      = errors.New("unknown import entity")
)

// Record is one decoded, loosely typed input record. Keys are normalized
// with NormalizeKey. Err is set when the element could not be read as a
// record at all, e.g. a number inside a JSON array of objects.
type Record struct {
	Index  int
	Fields map[string]any
	Err    error
}

// RecordSource yields records in source order and returns io.EOF after the
// last one. Records are only read on demand, so a caller that stops pulling
// stops the underlying reader too.
type RecordSource interface {
	Next() (Record, error)
}

// DecodeError means the input itself is malformed. It aborts the import.
type DecodeError struct {
	Index int
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed input near record %d: %v", e.Index, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsClientError reports whether err was caused by the uploaded input rather
// than by the server.
func IsClientError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de) ||
		errors.Is(err, ErrMissingStructure) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrUnsupportedCharset) ||
		errors.Is(err, ErrMissingFile) ||
		errors.Is(err, ErrFileTooLarge) ||
		errors.Is(err, ErrUnknownEntity)
}

// NormalizeKey folds a field name so that ptNumber, pt_number, PT-NUMBER
// and "pt number" all compare equal.
func NormalizeKey(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "\ufeff")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch r {
		case '_', '-', ' ', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func normalizeFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		key := NormalizeKey(k)
		if _, taken := out[key]; taken && v == nil {
			continue
		}
		out[key] = v
	}
	return out
}

// canonicalize renames alias keys to their canonical names. A canonical key
// already present wins over any alias.
func canonicalize(fields map[string]any, aliases map[string]string) map[string]any {
	for alias, canonical := range aliases {
		v, ok := fields[alias]
		if !ok {
			continue
		}
		delete(fields, alias)
		if cur, exists := fields[canonical]; exists && !blank(cur) {
			continue
		}
		fields[canonical] = v
	}
	return fields
}

func toRecord(index int, v any) Record {
	m, ok := v.(map[string]any)
	if !ok {
		return Record{Index: index, Err: fmt.Errorf("element is %s, not an object", kindOf(v))}
	}
	return Record{Index: index, Fields: normalizeFields(m)}
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "an array"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case map[string]any:
		return "an object"
	default:
		return "a number"
	}
}

// sliceSource serves records that were decoded up front.
type sliceSource struct {
	records []Record
	pos     int
}

func (s *sliceSource) Next() (Record, error) {
	if s.pos >= len(s.records) {
		return Record{}, io.EOF
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, nil
}
