package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/radiology-api/internal/model"
	"github.com/jwalitptl/radiology-api/internal/repository"
)

type patientRepository struct {
	*table[model.Patient]
}

func NewPatientRepository(db *sqlx.DB) repository.PatientRepository {
	return &patientRepository{table: &table[model.Patient]{
		BaseRepository: NewBaseRepository(db),
		name:           "patients",
		columns:        []string{"ptnumber", "name", "age", "birth_date", "sex"},
		selects:        "id, ptnumber, name, age, birth_date, sex, created_at, updated_at",
		onConflict: `ON CONFLICT (ptnumber) DO UPDATE SET
			name = EXCLUDED.name, age = EXCLUDED.age, birth_date = EXCLUDED.birth_date,
			sex = EXCLUDED.sex, updated_at = NOW()`,
		values: func(p model.Patient) []any {
			return []any{p.PtNumber, p.Name, p.Age, nullableDateArg(p.BirthDate), string(p.Sex)}
		},
		key:    model.Patient.DedupKey,
		search: "(name ILIKE '%' || $1 || '%' OR ptnumber::text = $1)",
	}}
}

func (r *patientRepository) ExistingPtNumbers(ctx context.Context, ptNumbers []int64) ([]int64, error) {
	found := []int64{}
	if len(ptNumbers) == 0 {
		return found, nil
	}
	query := `SELECT ptnumber FROM patients WHERE ptnumber = ANY($1)`
	if err := r.db.SelectContext(ctx, &found, query, pq.Array(ptNumbers)); err != nil {
		return nil, fmt.Errorf("failed to look up patients: %w", err)
	}
	return found, nil
}

// Wipe removes every patient and, through the foreign keys, every child row,
// and restarts the id sequences.
func (r *patientRepository) Wipe(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `TRUNCATE TABLE patients RESTART IDENTITY CASCADE`); err != nil {
		return fmt.Errorf("failed to wipe patients: %w", err)
	}
	return nil
}
