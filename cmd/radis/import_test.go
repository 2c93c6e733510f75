package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/radiology-api/internal/importer"
)

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		flag, file string
		want       importer.Format
	}{
		{"", "reports.json", importer.FormatJSONStream},
		{"", "/data/PATIENTS.CSV", importer.FormatCSV},
		{"", "export.xml", importer.FormatXML},
		{"", "study.dcm", importer.FormatDICOM},
		{"json", "reports.json", importer.FormatJSON},
		{"csv", "dump.txt", importer.FormatCSV},
	}
	for _, tt := range tests {
		got, err := resolveFormat(tt.flag, tt.file)
		require.NoError(t, err, tt.file)
		assert.Equal(t, tt.want, got, tt.file)
	}

	_, err := resolveFormat("", "notes.txt")
	assert.ErrorIs(t, err, importer.ErrUnsupportedFormat)
	_, err = resolveFormat("yaml", "a.yaml")
	assert.Error(t, err)
}

func TestImportFlagsRequired(t *testing.T) {
	path := ""
	cmd := importCmd(&path)
	cmd.SetArgs([]string{"--entity", "reports"})
	cmd.SetOut(new(nopWriter))
	cmd.SetErr(new(nopWriter))
	assert.ErrorContains(t, cmd.Execute(), "file")
}

type nopWriter struct{}

func (*nopWriter) Write(p []byte) (int, error) { return len(p), nil }
