package model

import "time"

const (
	ImportStatusSuccess = "success"
	ImportStatusError   = "error"
)

// ImportSummary is the single payload returned for an import request.
type ImportSummary struct {
	Status             string `json:"status"`
	Processed          int    `json:"processed"`
	Errors             int    `json:"errors"`
	Message            string `json:"message"`
	Total              int    `json:"total"`
	Duplicates         int    `json:"duplicates"`
	MissingReportCount int    `json:"missingReportCount"`
	ValidationErrors   int    `json:"validationErrors"`
	ReferenceErrors    int    `json:"referenceErrors"`
	WriteErrors        int    `json:"writeErrors"`
	RunID              string `json:"runId"`
}

// Finalize derives Errors from the category counters.
func (s *ImportSummary) Finalize() {
	s.Errors = s.ValidationErrors + s.ReferenceErrors + s.WriteErrors
}

// ImportEvent announces a finished import run.
type ImportEvent struct {
	RunID   string        `json:"runId"`
	Entity  string        `json:"entity"`
	Actor   string        `json:"actor,omitempty"`
	Source  string        `json:"source"`
	Summary ImportSummary `json:"summary"`
	At      time.Time     `json:"at"`
}
