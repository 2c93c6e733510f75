package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/radiology-api/internal/model"
	"github.com/jwalitptl/radiology-api/internal/repository"
)

type doctorRepository struct {
	*table[model.Doctor]
}

func NewDoctorRepository(db *sqlx.DB) repository.DoctorRepository {
	return &doctorRepository{table: &table[model.Doctor]{
		BaseRepository: NewBaseRepository(db),
		name:           "doctors",
		columns:        []string{"employee_number", "name", "department", "hospital", "access_level", "password_hash"},
		selects:        "id, employee_number, name, department, hospital, access_level, password_hash, created_at",
		onConflict:     "ON CONFLICT (employee_number) DO NOTHING",
		returning:      "employee_number",
		values: func(d model.Doctor) []any {
			return []any{d.EmployeeNumber, d.Name, d.Department, d.Hospital, int(d.AccessLevel), d.PasswordHash}
		},
		key:    model.Doctor.DedupKey,
		search: "(employee_number = $1 OR name ILIKE '%' || $1 || '%' OR department ILIKE '%' || $1 || '%')",
	}}
}

func (r *doctorRepository) GetByEmployeeNumber(ctx context.Context, employeeNumber string) (*model.Doctor, error) {
	var d model.Doctor
	query := `SELECT ` + r.selects + ` FROM doctors WHERE employee_number = $1`
	if err := r.db.GetContext(ctx, &d, query, employeeNumber); err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}
