package repository

import (
	"context"
	"errors"

	"github.com/jwalitptl/radiology-api/internal/model"
)

var ErrNotFound = errors.New("record not found")

// All repository interfaces in one file
type (
	// BatchWriter inserts items in one transaction. written[i] reports
	// whether items[i] produced a row; false means it was skipped as a
	// duplicate of a row already stored.
	BatchWriter[T any] interface {
		InsertBatch(ctx context.Context, items []T) (written []bool, err error)
	}

	// Reader backs the listing and export endpoints. Each streams every row
	// in id order and stops at the first error returned by fn.
	Reader[T any] interface {
		List(ctx context.Context, q model.ListQuery) ([]T, int, error)
		Get(ctx context.Context, id int64) (*T, error)
		Each(ctx context.Context, fn func(T) error) error
	}

	PatientRepository interface {
		BatchWriter[model.Patient]
		Reader[model.Patient]
		ExistingPtNumbers(ctx context.Context, ptNumbers []int64) ([]int64, error)
		Wipe(ctx context.Context) error
	}

	ReportRepository interface {
		BatchWriter[model.Report]
		Reader[model.Report]
	}

	ScheduleRepository interface {
		BatchWriter[model.Schedule]
		Reader[model.Schedule]
	}

	DoctorRepository interface {
		BatchWriter[model.Doctor]
		Reader[model.Doctor]
		GetByEmployeeNumber(ctx context.Context, employeeNumber string) (*model.Doctor, error)
	}

	TeachingFileRepository interface {
		BatchWriter[model.TeachingFile]
		Reader[model.TeachingFile]
	}

	DicomRepository interface {
		BatchWriter[model.DicomRecord]
		Reader[model.DicomRecord]
	}
)
