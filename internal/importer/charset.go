package importer

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// isUTF8 reports whether label names UTF-8 or nothing at all.
func isUTF8(label string) bool {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "utf-8", "utf8":
		return true
	}
	return false
}

// DecodeCharset returns a reader that yields UTF-8. A leading byte order
// mark always wins over the declared charset and is stripped.
func DecodeCharset(r io.Reader, label string) (io.Reader, error) {
	var fallback transform.Transformer = transform.Nop
	if !isUTF8(label) {
		enc, err := htmlindex.Get(strings.TrimSpace(label))
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedCharset, label)
		}
		fallback = enc.NewDecoder()
	}
	return transform.NewReader(r, unicode.BOMOverride(fallback)), nil
}

// xmlCharsetReader honours the encoding named in an XML declaration unless
// the body has already been transcoded.
func xmlCharsetReader(transcoded bool) func(string, io.Reader) (io.Reader, error) {
	return func(label string, input io.Reader) (io.Reader, error) {
		if transcoded || isUTF8(label) {
			return input, nil
		}
		enc, err := htmlindex.Get(label)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedCharset, label)
		}
		return transform.NewReader(input, enc.NewDecoder()), nil
	}
}
