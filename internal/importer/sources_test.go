package importer

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

var reportLayout = Layout{
	WrapperKeys: []string{"reports", "records", "data", "items"},
	Plural:      "reports",
	Singular:    "report",
}

func drain(t *testing.T, src RecordSource) ([]Record, error) {
	t.Helper()
	var out []Record
	for {
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

func TestJSONSourceShapes(t *testing.T) {
	src, err := NewJSONSource(strings.NewReader(`[{"ptNumber": 100}, {"pt_number": "101"}]`), reportLayout.WrapperKeys)
	require.NoError(t, err)
	recs, err := drain(t, src)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, json.Number("100"), recs[0].Fields["ptnumber"])
	assert.Equal(t, "101", recs[1].Fields["ptnumber"])

	src, err = NewJSONSource(strings.NewReader(`{"count": 2, "Records": [{"a": 1}, 5]}`), reportLayout.WrapperKeys)
	require.NoError(t, err)
	recs, err = drain(t, src)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.NoError(t, recs[0].Err)
	assert.Error(t, recs[1].Err)
	assert.Equal(t, 1, recs[1].Index)

	_, err = NewJSONSource(strings.NewReader(`{"patients": []}`), reportLayout.WrapperKeys)
	assert.ErrorIs(t, err, ErrMissingStructure)

	_, err = NewJSONSource(strings.NewReader(`"just a string"`), reportLayout.WrapperKeys)
	assert.ErrorIs(t, err, ErrMissingStructure)

	_, err = NewJSONSource(strings.NewReader(`[{"a": 1}`), reportLayout.WrapperKeys)
	var de *DecodeError
	assert.ErrorAs(t, err, &de)
}

func TestJSONStreamSourceArray(t *testing.T) {
	src, err := NewJSONStreamSource(strings.NewReader("  \n[{\"a\": 1}, {\"a\": 2}, {\"a\": 3}]"), reportLayout.WrapperKeys)
	require.NoError(t, err)
	recs, err := drain(t, src)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, 2, recs[2].Index)
}

func TestJSONStreamSourceSkipsToWrapper(t *testing.T) {
	body := `{"meta": {"exported": "2024-01-01", "list": [1, 2, 3]}, "Reports": [{"ptNumber": 7}]}`
	src, err := NewJSONStreamSource(strings.NewReader(body), reportLayout.WrapperKeys)
	require.NoError(t, err)
	recs, err := drain(t, src)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, json.Number("7"), recs[0].Fields["ptnumber"])
}

func TestJSONStreamSourceStructureErrors(t *testing.T) {
	_, err := NewJSONStreamSource(strings.NewReader(`{"other": [1]}`), reportLayout.WrapperKeys)
	assert.ErrorIs(t, err, ErrMissingStructure)

	_, err = NewJSONStreamSource(strings.NewReader(`{"reports": {"a": 1}}`), reportLayout.WrapperKeys)
	assert.ErrorIs(t, err, ErrMissingStructure)

	_, err = NewJSONStreamSource(strings.NewReader(`42`), reportLayout.WrapperKeys)
	assert.ErrorIs(t, err, ErrMissingStructure)

	_, err = NewJSONStreamSource(strings.NewReader(""), reportLayout.WrapperKeys)
	var de *DecodeError
	assert.ErrorAs(t, err, &de)
}

func TestJSONWrapperSkipsNonArrayCandidates(t *testing.T) {
	decoders := map[string]func(io.Reader, []string) (RecordSource, error){
		"buffered":  NewJSONSource,
		"streaming": NewJSONStreamSource,
	}
	for name, open := range decoders {
		t.Run(name, func(t *testing.T) {
			src, err := open(strings.NewReader(`{"records": "see reports", "reports": [{"ptNumber": 1}]}`), reportLayout.WrapperKeys)
			require.NoError(t, err)
			recs, err := drain(t, src)
			require.NoError(t, err)
			require.Len(t, recs, 1)
			assert.Equal(t, json.Number("1"), recs[0].Fields["ptnumber"])

			src, err = open(strings.NewReader(`{"data": {"nested": [1]}, "items": [{"a": 1}], "reports": [{"a": 2}, {"a": 3}]}`), reportLayout.WrapperKeys)
			require.NoError(t, err)
			recs, err = drain(t, src)
			require.NoError(t, err)
			require.Len(t, recs, 1)
			assert.Equal(t, json.Number("1"), recs[0].Fields["a"])

			_, err = open(strings.NewReader(`{"records": "x", "data": 3}`), reportLayout.WrapperKeys)
			require.ErrorIs(t, err, ErrMissingStructure)
			assert.Contains(t, err.Error(), `"records" is not an array`)
		})
	}
}

func TestJSONStreamSourceMalformedMidStream(t *testing.T) {
	src, err := NewJSONStreamSource(strings.NewReader(`[{"a": 1}, {"a": ]`), reportLayout.WrapperKeys)
	require.NoError(t, err)

	rec, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Index)

	_, err = src.Next()
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 1, de.Index)
}

func TestJSONStreamSourceTruncated(t *testing.T) {
	src, err := NewJSONStreamSource(strings.NewReader(`[{"a": 1}`), reportLayout.WrapperKeys)
	require.NoError(t, err)
	_, err = drain(t, src)
	var de *DecodeError
	assert.ErrorAs(t, err, &de)
}

func TestCSVSource(t *testing.T) {
	body := "Pt_Number,Name,Exam Date\r\n100,\"Kim\r\",2024-01-01\r\n,,\r\n101,Lee\r\n102\r\n"
	src, err := OpenSource(FormatCSV, strings.NewReader("\ufeff"+body), SourceOptions{Layout: reportLayout})
	require.NoError(t, err)

	recs, err := drain(t, src)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, "100", recs[0].Fields["ptnumber"])
	assert.Equal(t, "Kim", recs[0].Fields["name"])
	assert.Equal(t, "2024-01-01", recs[0].Fields["examdate"])
	assert.Equal(t, "Lee", recs[1].Fields["name"])
	_, hasDate := recs[1].Fields["examdate"]
	assert.False(t, hasDate)
	assert.Equal(t, 2, recs[2].Index)
}

func TestCSVSourceNeedsHeader(t *testing.T) {
	_, err := NewCSVSource(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrMissingStructure)
}

func TestCSVSourceFromEUCKR(t *testing.T) {
	encoded, _, err := transform.String(korean.EUCKR.NewEncoder(), "ptnumber,name\n100,홍길동\n")
	require.NoError(t, err)

	src, err := OpenSource(FormatCSV, strings.NewReader(encoded), SourceOptions{Charset: "euc-kr", Layout: reportLayout})
	require.NoError(t, err)
	recs, err := drain(t, src)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "홍길동", recs[0].Fields["name"])
}

func TestOpenSourceRejectsUnknownCharset(t *testing.T) {
	_, err := OpenSource(FormatCSV, strings.NewReader("a\n1\n"), SourceOptions{Charset: "klingon", Layout: reportLayout})
	assert.ErrorIs(t, err, ErrUnsupportedCharset)
}

const reportsXML = `<?xml version="1.0" encoding="UTF-8"?>
<root xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
  <meta><count>2</count></meta>
  <reports>
    <report id="r1">
      <ptNumber>100</ptNumber>
      <examDate>2024-01-01</examDate>
      <modality>CT</modality>
      <report>normal</report>
      <tag>a</tag>
      <tag>b</tag>
      <inputAt xsi:nil="true"/>
    </report>
    <note>ignored</note>
    <report>
      <ptNumber>101</ptNumber>
    </report>
  </reports>
  <trailer/>
</root>`

func TestXMLSource(t *testing.T) {
	src, err := OpenSource(FormatXML, strings.NewReader(reportsXML), SourceOptions{Layout: reportLayout})
	require.NoError(t, err)

	recs, err := drain(t, src)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	first := recs[0].Fields
	assert.Equal(t, "r1", first["id"])
	assert.Equal(t, "100", first["ptnumber"])
	assert.Equal(t, "2024-01-01", first["examdate"])
	assert.Equal(t, "normal", first["report"])
	assert.Equal(t, []any{"a", "b"}, first["tag"])
	v, ok := first["inputat"]
	assert.True(t, ok)
	assert.Nil(t, v)

	assert.Equal(t, "101", recs[1].Fields["ptnumber"])
	assert.Equal(t, 1, recs[1].Index)
}

func TestXMLSourceCollectionAsRoot(t *testing.T) {
	src, err := NewXMLSource(strings.NewReader(`<Reports><Report><ptnumber>5</ptnumber></Report></Reports>`), "reports", "report", false)
	require.NoError(t, err)
	recs, err := drain(t, src)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "5", recs[0].Fields["ptnumber"])
}

func TestXMLSourceMissingCollection(t *testing.T) {
	_, err := NewXMLSource(strings.NewReader(`<root><patients><patient/></patients></root>`), "reports", "report", false)
	assert.ErrorIs(t, err, ErrMissingStructure)
}

func TestXMLSourceMalformed(t *testing.T) {
	src, err := NewXMLSource(strings.NewReader(`<root><reports><report><a>1</b></report></reports></root>`), "reports", "report", false)
	require.NoError(t, err)
	_, err = src.Next()
	var de *DecodeError
	assert.ErrorAs(t, err, &de)
}

func TestXMLSourceDeclaredEncoding(t *testing.T) {
	doc := `<?xml version="1.0" encoding="EUC-KR"?><root><reports><report><doctor>김의사</doctor></report></reports></root>`
	encoded, _, err := transform.String(korean.EUCKR.NewEncoder(), doc)
	require.NoError(t, err)

	src, err := OpenSource(FormatXML, strings.NewReader(encoded), SourceOptions{Layout: reportLayout})
	require.NoError(t, err)
	recs, err := drain(t, src)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "김의사", recs[0].Fields["doctor"])
}

func TestDICOMSourceRejectsGarbage(t *testing.T) {
	body := strings.Repeat("x", 200)
	_, err := OpenSource(FormatDICOM, strings.NewReader(body), SourceOptions{
		Layout: Layout{DICOM: true},
		Size:   int64(len(body)),
	})
	var de *DecodeError
	assert.ErrorAs(t, err, &de)

	_, err = OpenSource(FormatDICOM, strings.NewReader(body), SourceOptions{Layout: reportLayout})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDicomDate(t *testing.T) {
	assert.Equal(t, "2024-03-15", dicomDate("20240315"))
	assert.Equal(t, "2024-03", dicomDate("2024-03"))
}

func TestFormatForFile(t *testing.T) {
	f, ok := FormatForFile("Reports.JSON")
	assert.True(t, ok)
	assert.Equal(t, FormatJSONStream, f)

	_, ok = FormatForFile("reports.xlsx")
	assert.False(t, ok)

	f, err := ParseFormat("json-stream")
	require.NoError(t, err)
	assert.Equal(t, FormatJSONStream, f)
}
