package importer

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

type Format string

const (
	// FormatJSON parses the whole document before importing.
	FormatJSON Format = "json"
	// FormatJSONStream decodes records incrementally.
	FormatJSONStream Format = "json-stream"
	FormatCSV        Format = "csv"
	FormatXML        Format = "xml"
	FormatDICOM      Format = "dcm"
)

// ParseFormat accepts the names used on the command line.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatJSONStream, FormatCSV, FormatXML, FormatDICOM:
		return f, nil
	case "dicom":
		return FormatDICOM, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// FormatForFile picks a format from the file extension. JSON files are
// streamed.
func FormatForFile(name string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return FormatJSONStream, true
	case ".csv":
		return FormatCSV, true
	case ".xml":
		return FormatXML, true
	case ".dcm", ".dicom":
		return FormatDICOM, true
	}
	return "", false
}

// SourceOptions carries what the decoders need beyond the byte stream.
type SourceOptions struct {
	Charset string
	Layout  Layout
	// Size and Path are only used for DICOM files.
	Size int64
	Path string
}

// OpenSource wraps r in the decoder for format. Text formats are transcoded
// from opts.Charset first.
func OpenSource(format Format, r io.Reader, opts SourceOptions) (RecordSource, error) {
	if format == FormatDICOM {
		if !opts.Layout.DICOM {
			return nil, fmt.Errorf("%w: DICOM files cannot be imported here", ErrUnsupportedFormat)
		}
		return NewDICOMSource(r, opts.Size, opts.Path)
	}

	body, err := DecodeCharset(r, opts.Charset)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatJSON:
		return NewJSONSource(body, opts.Layout.WrapperKeys)
	case FormatJSONStream:
		return NewJSONStreamSource(body, opts.Layout.WrapperKeys)
	case FormatCSV:
		return NewCSVSource(body)
	case FormatXML:
		return NewXMLSource(body, opts.Layout.Plural, opts.Layout.Singular, !isUTF8(opts.Charset))
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}
