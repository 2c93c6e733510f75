package patient

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/radiology-api/internal/repository"
	apperrors "github.com/jwalitptl/radiology-api/pkg/errors"
)

// ParentCache is the cache of known patient numbers kept by the importer.
type ParentCache interface {
	Reset()
}

type Service struct {
	repo    repository.PatientRepository
	parents ParentCache
	logger  zerolog.Logger
}

func NewService(repo repository.PatientRepository, parents ParentCache, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		parents: parents,
		logger:  logger.With().Str("component", "patient-service").Logger(),
	}
}

// Wipe removes every patient together with their reports, schedules,
// teaching files and DICOM records, and restarts id numbering.
func (s *Service) Wipe(ctx context.Context, actor string) error {
	if err := s.repo.Wipe(ctx); err != nil {
		return apperrors.Internal(fmt.Errorf("failed to wipe patients: %w", err))
	}
	if s.parents != nil {
		s.parents.Reset()
	}

	s.logger.Warn().Str("actor", actor).Msg("patient table wiped")
	return nil
}
