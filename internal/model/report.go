package model

import (
	"fmt"
	"strings"
	"time"
)

type Report struct {
	ID         int64      `db:"id" json:"id" xml:"id"`
	PtNumber   int64      `db:"ptnumber" json:"ptNumber" xml:"ptnumber" validate:"gt=0"`
	ExamDate   time.Time  `db:"exam_date" json:"examDate" xml:"examdate" validate:"required"`
	Modality   string     `db:"modality" json:"modality" xml:"modality" validate:"required,max=16"`
	Doctor     string     `db:"doctor" json:"doctor" xml:"doctor"`
	Department string     `db:"department" json:"department" xml:"department"`
	Diagnosis  string     `db:"diagnosis" json:"diagnosis" xml:"diagnosis"`
	Conclusion string     `db:"conclusion" json:"conclusion" xml:"conclusion"`
	Body       string     `db:"report" json:"report" xml:"report"`
	InputBy    string     `db:"input_by" json:"inputBy" xml:"inputby"`
	InputAt    *time.Time `db:"input_at" json:"inputAt,omitempty" xml:"inputat,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt" xml:"createdat"`
}

// DedupKey is the (patient, exam date, modality, department) tuple that
// identifies a report.
func (r Report) DedupKey() string {
	return fmt.Sprintf("%d|%s|%s|%s", r.PtNumber, DateKey(r.ExamDate), r.Modality, r.Department)
}

// MissingBody reports whether the report was written without findings.
func (r Report) MissingBody() bool {
	return strings.TrimSpace(r.Body) == ""
}
