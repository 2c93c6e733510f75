package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/radiology-api/internal/model"
	"github.com/jwalitptl/radiology-api/internal/repository"
)

type teachingFileRepository struct {
	*table[model.TeachingFile]
}

func NewTeachingFileRepository(db *sqlx.DB) repository.TeachingFileRepository {
	return &teachingFileRepository{table: &table[model.TeachingFile]{
		BaseRepository: NewBaseRepository(db),
		name:           "teaching_files",
		columns:        []string{"ptnumber", "series_id", "title", "history", "answer", "explanation", "difficulty", "published"},
		selects:        "id, ptnumber, series_id, title, history, answer, explanation, difficulty, published, created_at",
		values: func(t model.TeachingFile) []any {
			return []any{t.PtNumber, t.SeriesID, t.Title, t.History, t.Answer, t.Explanation, t.Difficulty, t.Published}
		},
		search: "(ptnumber::text = $1 OR title ILIKE '%' || $1 || '%' OR answer ILIKE '%' || $1 || '%')",
	}}
}
