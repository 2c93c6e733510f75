package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/radiology-api/internal/model"
	"github.com/jwalitptl/radiology-api/internal/repository"
	"github.com/jwalitptl/radiology-api/pkg/auth"
	apperrors "github.com/jwalitptl/radiology-api/pkg/errors"
	"github.com/jwalitptl/radiology-api/pkg/security"
)

var errDoctorGone = errors.New("doctor no longer exists")

type Service struct {
	doctors repository.DoctorRepository
	jwtSvc  auth.JWTService
	hasher  security.PasswordHasher
	logger  zerolog.Logger
}

func NewService(doctors repository.DoctorRepository, jwtSvc auth.JWTService, hasher security.PasswordHasher, logger zerolog.Logger) *Service {
	return &Service{
		doctors: doctors,
		jwtSvc:  jwtSvc,
		hasher:  hasher,
		logger:  logger.With().Str("component", "auth-service").Logger(),
	}
}

func invalidCredentials() *apperrors.AppError {
	return &apperrors.AppError{
		Code:    apperrors.ErrUnauthorized,
		Message: model.ErrInvalidCredentials.Error(),
		Err:     model.ErrInvalidCredentials,
	}
}

func (s *Service) Login(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error) {
	doctor, err := s.doctors.GetByEmployeeNumber(ctx, req.EmployeeNumber)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, invalidCredentials()
	}
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to load doctor: %w", err))
	}

	if err := s.hasher.Compare(doctor.PasswordHash, req.Password); err != nil {
		s.logger.Info().Str("employee_number", req.EmployeeNumber).Msg("login rejected")
		return nil, invalidCredentials()
	}

	token, err := s.jwtSvc.GenerateAccessToken(doctor.ID, int(doctor.AccessLevel))
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to generate token: %w", err))
	}

	return &model.LoginResponse{Token: token, Doctor: doctor}, nil
}

// Authenticate resolves a bearer token to the doctor it was issued for. The
// doctor is loaded again so that removed accounts lose access at once.
func (s *Service) Authenticate(ctx context.Context, token string) (*model.Doctor, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}
	id, err := claims.DoctorID()
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}

	doctor, err := s.doctors.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Unauthorized(errDoctorGone)
	}
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to load doctor %d: %w", id, err))
	}
	return doctor, nil
}
