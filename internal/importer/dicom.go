package importer

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// NewDICOMSource reads the header of one DICOM file and yields a single
// series record. Pixel data is skipped.
func NewDICOMSource(r io.Reader, size int64, path string) (RecordSource, error) {
	ds, err := dicom.Parse(r, size, nil, dicom.SkipPixelData())
	if err != nil {
		return nil, &DecodeError{Index: 0, Err: fmt.Errorf("dicom: %w", err)}
	}

	fields := map[string]any{}
	if v := elementString(&ds, tag.PatientID); v != "" {
		fields["ptnumber"] = v
	}
	if v := elementString(&ds, tag.SeriesNumber); v != "" {
		fields["seqno"] = v
	}
	if v := elementString(&ds, tag.StudyDate); v != "" {
		fields["examdate"] = dicomDate(v)
	}
	if v := elementString(&ds, tag.Modality); v != "" {
		fields["modality"] = v
	}
	fields["imagecount"] = "1"
	if v := elementString(&ds, tag.NumberOfFrames); v != "" {
		fields["imagecount"] = v
	}
	if path != "" {
		fields["path"] = path
	}

	return &sliceSource{records: []Record{{Index: 0, Fields: fields}}}, nil
}

// elementString returns the first value of t, or "" when the tag is absent
// or not textual.
func elementString(ds *dicom.Dataset, t tag.Tag) string {
	el, err := ds.FindElementByTag(t)
	if err != nil || el == nil || el.Value == nil {
		return ""
	}
	switch el.Value.ValueType() {
	case dicom.Strings:
		vals, ok := el.Value.GetValue().([]string)
		if !ok || len(vals) == 0 {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(vals[0], "\x00"))
	case dicom.Ints:
		vals, ok := el.Value.GetValue().([]int)
		if !ok || len(vals) == 0 {
			return ""
		}
		return strconv.Itoa(vals[0])
	}
	return ""
}

// dicomDate turns the DA form YYYYMMDD into YYYY-MM-DD. Anything else is
// passed through for the date normalizer to reject.
func dicomDate(v string) string {
	if len(v) != 8 {
		return v
	}
	if _, err := strconv.Atoi(v); err != nil {
		return v
	}
	return v[:4] + "-" + v[4:6] + "-" + v[6:]
}
