package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

type csvSource struct {
	reader *csv.Reader
	header []string
	index  int
}

// NewCSVSource treats the first row as field names. Rows may be shorter or
// longer than the header; missing cells are absent and extra cells ignored.
func NewCSVSource(r io.Reader) (RecordSource, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: missing header row", ErrMissingStructure)
	}
	if err != nil {
		return nil, &DecodeError{Index: 0, Err: err}
	}

	named := false
	for i, h := range header {
		header[i] = NormalizeKey(strings.TrimRight(h, "\r"))
		if header[i] != "" {
			named = true
		}
	}
	if !named {
		return nil, fmt.Errorf("%w: header row is empty", ErrMissingStructure)
	}

	return &csvSource{reader: cr, header: header}, nil
}

func (s *csvSource) Next() (Record, error) {
	for {
		row, err := s.reader.Read()
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		if err != nil {
			return Record{}, &DecodeError{Index: s.index, Err: err}
		}

		fields := make(map[string]any, len(s.header))
		empty := true
		for i, name := range s.header {
			if name == "" || i >= len(row) {
				continue
			}
			v := strings.TrimRight(row[i], "\r")
			if strings.TrimSpace(v) != "" {
				empty = false
			}
			fields[name] = v
		}
		// Spreadsheet exports often end with rows of bare separators.
		if empty {
			continue
		}

		rec := Record{Index: s.index, Fields: fields}
		s.index++
		return rec, nil
	}
}
