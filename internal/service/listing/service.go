package listing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jwalitptl/radiology-api/internal/model"
	"github.com/jwalitptl/radiology-api/internal/repository"
	apperrors "github.com/jwalitptl/radiology-api/pkg/errors"
)

// Service serves paginated reads and full exports of one table.
type Service[T any] struct {
	resource string
	reader   repository.Reader[T]
}

func NewService[T any](resource string, reader repository.Reader[T]) *Service[T] {
	return &Service[T]{resource: resource, reader: reader}
}

func (s *Service[T]) Resource() string {
	return s.resource
}

func (s *Service[T]) List(ctx context.Context, q model.ListQuery) (*model.Page[T], error) {
	q = q.Normalize()
	items, total, err := s.reader.List(ctx, q)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list %s: %w", s.resource, err))
	}
	page := model.NewPage(items, total, q)
	return &page, nil
}

func (s *Service[T]) Get(ctx context.Context, id int64) (*T, error) {
	if id <= 0 {
		return nil, apperrors.BadRequest("invalid id", nil)
	}
	item, err := s.reader.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound(s.resource, err)
	}
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to get %s %d: %w", s.resource, id, err))
	}
	return item, nil
}

// Export calls fn for every row in id order.
func (s *Service[T]) Export(ctx context.Context, fn func(T) error) error {
	if err := s.reader.Each(ctx, fn); err != nil {
		return fmt.Errorf("failed to export %s: %w", s.resource, err)
	}
	return nil
}
