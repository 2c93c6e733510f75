package resource

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/radiology-api/internal/importer"
	"github.com/jwalitptl/radiology-api/internal/model"
	"github.com/jwalitptl/radiology-api/internal/repository"
	"github.com/jwalitptl/radiology-api/internal/service/listing"
	"github.com/jwalitptl/radiology-api/pkg/httputil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeReports struct {
	rows    []model.Report
	eachErr error
	lastQ   model.ListQuery
}

func (f *fakeReports) List(_ context.Context, q model.ListQuery) ([]model.Report, int, error) {
	f.lastQ = q
	start := (q.Page - 1) * q.Limit
	if start > len(f.rows) {
		start = len(f.rows)
	}
	end := start + q.Limit
	if end > len(f.rows) {
		end = len(f.rows)
	}
	return f.rows[start:end], len(f.rows), nil
}

func (f *fakeReports) Get(_ context.Context, id int64) (*model.Report, error) {
	for i := range f.rows {
		if f.rows[i].ID == id {
			return &f.rows[i], nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeReports) Each(_ context.Context, fn func(model.Report) error) error {
	for _, r := range f.rows {
		if err := fn(r); err != nil {
			return err
		}
	}
	return f.eachErr
}

func sampleReports() []model.Report {
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
	return []model.Report{
		{ID: 1, PtNumber: 100, ExamDate: day(1), Modality: "CT", Body: "normal"},
		{ID: 2, PtNumber: 100, ExamDate: day(2), Modality: "MR", Department: "Neuro", Body: "no acute <finding> & stable"},
		{ID: 3, PtNumber: 101, ExamDate: day(3), Modality: "US"},
	}
}

func setup(t *testing.T, reader *fakeReports) *gin.Engine {
	t.Helper()
	r := gin.New()
	h := NewHandler(listing.NewService[model.Report]("report", reader), "reports", "report")
	h.RegisterRoutes(r.Group("/api/reports"))
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestList(t *testing.T) {
	reader := &fakeReports{rows: sampleReports()}
	r := setup(t, reader)

	w := get(r, "/api/reports?page=2&limit=2")
	require.Equal(t, http.StatusOK, w.Code)

	var page model.Page[model.Report]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Data, 1)
	assert.Equal(t, int64(3), page.Data[0].ID)
}

func TestListClampsQuery(t *testing.T) {
	reader := &fakeReports{rows: sampleReports()}
	r := setup(t, reader)

	w := get(r, "/api/reports?page=0&limit=100000")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, reader.lastQ.Page)
	assert.Equal(t, model.MaxPageSize, reader.lastQ.Limit)

	w = get(r, "/api/reports?page=abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGet(t *testing.T) {
	r := setup(t, &fakeReports{rows: sampleReports()})

	tests := []struct {
		path   string
		status int
	}{
		{"/api/reports/2", http.StatusOK},
		{"/api/reports/42", http.StatusNotFound},
		{"/api/reports/abc", http.StatusBadRequest},
		{"/api/reports/0", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := get(r, tt.path)
			assert.Equal(t, tt.status, w.Code)
		})
	}

	var resp struct {
		httputil.Response
		Data model.Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal(get(r, "/api/reports/2").Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "Neuro", resp.Data.Department)
}

func TestExportJSON(t *testing.T) {
	r := setup(t, &fakeReports{rows: sampleReports()})

	w := get(r, "/api/reports/export/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="reports.json"`, w.Header().Get("Content-Disposition"))

	var rows []model.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	assert.Len(t, rows, 3)
	assert.Equal(t, "MR", rows[1].Modality)
}

func TestExportJSONEmpty(t *testing.T) {
	r := setup(t, &fakeReports{})

	w := get(r, "/api/reports/export/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestExportJSONTruncatesOnFailure(t *testing.T) {
	r := setup(t, &fakeReports{rows: sampleReports(), eachErr: errors.New("connection lost")})

	w := get(r, "/api/reports/export/json")
	assert.Equal(t, http.StatusOK, w.Code)

	var rows []model.Report
	assert.Error(t, json.Unmarshal(w.Body.Bytes(), &rows))
	assert.NotContains(t, w.Body.String(), "connection lost")
}

// The XML export must be readable by the XML importer of the same entity.
func TestExportXMLReadsBackThroughImporter(t *testing.T) {
	r := setup(t, &fakeReports{rows: sampleReports()})

	w := get(r, "/api/reports/export/xml")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="reports.xml"`, w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "<?xml"))

	src, err := importer.NewXMLSource(strings.NewReader(w.Body.String()), "reports", "report", false)
	require.NoError(t, err)

	var got []importer.Record
	for {
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, rec)
	}
	require.Len(t, got, 3)
	assert.Equal(t, "100", got[1].Fields["ptnumber"])
	assert.Equal(t, "MR", got[1].Fields["modality"])
	assert.Equal(t, "no acute <finding> & stable", got[1].Fields["report"])

	examDate, err := importer.ParseDate(got[1].Fields["examdate"])
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", model.DateKey(*examDate))
}
