package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/radiology-api/internal/model"
	"github.com/jwalitptl/radiology-api/internal/repository"
)

type dicomRepository struct {
	*table[model.DicomRecord]
}

func NewDicomRepository(db *sqlx.DB) repository.DicomRepository {
	return &dicomRepository{table: &table[model.DicomRecord]{
		BaseRepository: NewBaseRepository(db),
		name:           "dicom_records",
		columns:        []string{"ptnumber", "seqno", "exam_date", "modality", "image_count", "path"},
		selects:        "id, ptnumber, seqno, exam_date, modality, image_count, path, created_at",
		onConflict:     "ON CONFLICT ON CONSTRAINT dicom_records_series_key DO NOTHING",
		returning:      "ptnumber::text || '|' || seqno::text",
		values: func(d model.DicomRecord) []any {
			return []any{d.PtNumber, d.SeqNo, dateArg(d.ExamDate), d.Modality, d.ImageCount, d.Path}
		},
		key:    model.DicomRecord.DedupKey,
		search: "(ptnumber::text = $1 OR modality ILIKE $1)",
	}}
}
