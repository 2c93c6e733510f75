package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/radiology-api/internal/model"
	"github.com/jwalitptl/radiology-api/internal/repository"
)

type reportRepository struct {
	*table[model.Report]
}

func NewReportRepository(db *sqlx.DB) repository.ReportRepository {
	return &reportRepository{table: &table[model.Report]{
		BaseRepository: NewBaseRepository(db),
		name:           "reports",
		columns: []string{
			"ptnumber", "exam_date", "modality", "doctor", "department",
			"diagnosis", "conclusion", "report", "input_by", "input_at",
		},
		selects: `id, ptnumber, exam_date, modality, doctor, department, diagnosis,
			conclusion, report, input_by, input_at, created_at`,
		onConflict: "ON CONFLICT ON CONSTRAINT reports_dedup_key DO NOTHING",
		returning:  `ptnumber::text || '|' || to_char(exam_date, 'YYYY-MM-DD') || '|' || modality || '|' || department`,
		values: func(r model.Report) []any {
			return []any{
				r.PtNumber, dateArg(r.ExamDate), r.Modality, r.Doctor, r.Department,
				r.Diagnosis, r.Conclusion, r.Body, r.InputBy, r.InputAt,
			}
		},
		key:    model.Report.DedupKey,
		search: "(ptnumber::text = $1 OR modality ILIKE $1 OR department ILIKE '%' || $1 || '%' OR diagnosis ILIKE '%' || $1 || '%')",
	}}
}
