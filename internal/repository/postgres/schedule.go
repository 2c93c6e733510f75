package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/radiology-api/internal/model"
	"github.com/jwalitptl/radiology-api/internal/repository"
)

type scheduleRepository struct {
	*table[model.Schedule]
}

// NewScheduleRepository returns a store without a conflict key: importing the
// same schedule twice stores it twice.
func NewScheduleRepository(db *sqlx.DB) repository.ScheduleRepository {
	return &scheduleRepository{table: &table[model.Schedule]{
		BaseRepository: NewBaseRepository(db),
		name:           "schedules",
		columns:        []string{"ptnumber", "start_at", "end_at", "department", "doctor", "procedure_name", "memo"},
		selects:        "id, ptnumber, start_at, end_at, department, doctor, procedure_name, memo, created_at",
		values: func(s model.Schedule) []any {
			return []any{s.PtNumber, s.StartAt, s.EndAt, s.Department, s.Doctor, s.ProcedureName, s.Memo}
		},
		search: "(ptnumber::text = $1 OR department ILIKE '%' || $1 || '%' OR procedure_name ILIKE '%' || $1 || '%')",
	}}
}
