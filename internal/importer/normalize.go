package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

var (
	errRequired    = errors.New("is required")
	errInvalidText = errors.New("invalid UTF-8 text")
)

// dateLayouts are the accepted textual date and timestamp forms. Layouts
// without a zone are read as UTC.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// blank reports whether v counts as absent: nil, or a string that is empty
// after trimming.
func blank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

// ToInt coerces JSON numbers, integral floats and numeric strings.
func ToInt(v any) (int64, error) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, nil
		}
		f, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", t.String())
		}
		return floatToInt(f)
	case float64:
		return floatToInt(t)
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", s)
		}
		return floatToInt(f)
	}
	return 0, fmt.Errorf("%s is not an integer", kindOf(v))
}

func floatToInt(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	return int64(f), nil
}

// ParseTimestamp reads one of dateLayouts. Empty strings and the all-zero
// sentinel dates some exports use for "unknown" yield nil.
func ParseTimestamp(v any) (*time.Time, error) {
	s, ok := v.(string)
	if !ok {
		if blank(v) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s is not a date", kindOf(v))
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "0000-00-00") {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%q is not a recognised date", s)
}

// ParseDate is ParseTimestamp truncated to the calendar day as written.
func ParseDate(v any) (*time.Time, error) {
	t, err := ParseTimestamp(v)
	if err != nil || t == nil {
		return t, err
	}
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &day, nil
}

var stripControl = runes.Remove(runes.Predicate(func(r rune) bool {
	return unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r'
}))

// CleanText converts scalars to text, drops C0/C1 control characters other
// than tab and line breaks, and trims surrounding space. Text that is not
// valid UTF-8, or that carries replacement characters from an earlier
// failed decode, is refused.
func CleanText(v any) (string, error) {
	var s string
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		s = t
	case json.Number:
		s = t.String()
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(t)
	default:
		return "", fmt.Errorf("%s is not text", kindOf(v))
	}

	if !utf8.ValidString(s) || strings.ContainsRune(s, utf8.RuneError) {
		return "", errInvalidText
	}
	out, _, err := transform.String(stripControl, s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errInvalidText, err)
	}
	return strings.TrimSpace(out), nil
}

// ToBool accepts booleans, 0/1 and the usual yes/no spellings.
func ToBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case json.Number, float64, int, int64:
		n, err := ToInt(t)
		if err != nil {
			return false, err
		}
		return n != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "t", "yes", "y", "1", "on":
			return true, nil
		case "false", "f", "no", "n", "0", "off", "":
			return false, nil
		}
		return false, fmt.Errorf("%q is not a boolean", t)
	}
	return false, fmt.Errorf("%s is not a boolean", kindOf(v))
}

// fields reads typed values out of a record. The first failure sticks and
// later reads return zero values.
type fields struct {
	values map[string]any
	err    error
}

func newFields(values map[string]any) *fields {
	return &fields{values: values}
}

func (f *fields) Err() error {
	return f.err
}

func (f *fields) fail(key string, err error) {
	if f.err == nil {
		f.err = fmt.Errorf("%s: %w", key, err)
	}
}

func (f *fields) missing(key string) {
	if f.err == nil {
		f.err = fmt.Errorf("%s %w", key, errRequired)
	}
}

func (f *fields) get(key string) (any, bool) {
	v, ok := f.values[key]
	if !ok || blank(v) {
		return nil, false
	}
	return v, true
}

func (f *fields) Int(key string) *int64 {
	v, ok := f.get(key)
	if !ok {
		return nil
	}
	n, err := ToInt(v)
	if err != nil {
		f.fail(key, err)
		return nil
	}
	return &n
}

func (f *fields) RequireInt(key string) int64 {
	if _, ok := f.get(key); !ok {
		f.missing(key)
		return 0
	}
	if n := f.Int(key); n != nil {
		return *n
	}
	return 0
}

// SmallInt is Int narrowed to int.
func (f *fields) SmallInt(key string) *int {
	n := f.Int(key)
	if n == nil {
		return nil
	}
	if *n > math.MaxInt32 || *n < math.MinInt32 {
		f.fail(key, fmt.Errorf("%d is out of range", *n))
		return nil
	}
	i := int(*n)
	return &i
}

func (f *fields) RequireSmallInt(key string) int {
	if _, ok := f.get(key); !ok {
		f.missing(key)
		return 0
	}
	if n := f.SmallInt(key); n != nil {
		return *n
	}
	return 0
}

func (f *fields) Date(key string) *time.Time {
	return f.parseTime(key, ParseDate)
}

func (f *fields) RequireDate(key string) time.Time {
	return f.require(key, f.Date(key))
}

func (f *fields) Timestamp(key string) *time.Time {
	return f.parseTime(key, ParseTimestamp)
}

func (f *fields) RequireTimestamp(key string) time.Time {
	return f.require(key, f.Timestamp(key))
}

func (f *fields) parseTime(key string, parse func(any) (*time.Time, error)) *time.Time {
	v, ok := f.values[key]
	if !ok {
		return nil
	}
	t, err := parse(v)
	if err != nil {
		f.fail(key, err)
		return nil
	}
	return t
}

func (f *fields) require(key string, t *time.Time) time.Time {
	if t == nil {
		f.missing(key)
		return time.Time{}
	}
	return *t
}

func (f *fields) Text(key string) string {
	v, ok := f.values[key]
	if !ok {
		return ""
	}
	s, err := CleanText(v)
	if err != nil {
		f.fail(key, err)
		return ""
	}
	return s
}

func (f *fields) RequireText(key string) string {
	s := f.Text(key)
	if s == "" {
		f.missing(key)
	}
	return s
}

func (f *fields) Bool(key string) bool {
	v, ok := f.get(key)
	if !ok {
		return false
	}
	b, err := ToBool(v)
	if err != nil {
		f.fail(key, err)
	}
	return b
}
