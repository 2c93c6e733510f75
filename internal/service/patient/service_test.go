package patient

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/radiology-api/internal/repository"
	apperrors "github.com/jwalitptl/radiology-api/pkg/errors"
)

type fakeRepo struct {
	repository.PatientRepository
	wiped   int
	wipeErr error
}

func (f *fakeRepo) Wipe(context.Context) error {
	if f.wipeErr != nil {
		return f.wipeErr
	}
	f.wiped++
	return nil
}

type fakeCache struct{ resets int }

func (c *fakeCache) Reset() { c.resets++ }

func TestWipeResetsParentCache(t *testing.T) {
	repo := &fakeRepo{}
	cache := &fakeCache{}
	svc := NewService(repo, cache, zerolog.Nop())

	require.NoError(t, svc.Wipe(context.Background(), "E1"))
	assert.Equal(t, 1, repo.wiped)
	assert.Equal(t, 1, cache.resets)
}

func TestWipeFailureKeepsCache(t *testing.T) {
	repo := &fakeRepo{wipeErr: errors.New("lock timeout")}
	cache := &fakeCache{}
	svc := NewService(repo, cache, zerolog.Nop())

	err := svc.Wipe(context.Background(), "E1")
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrInternal, appErr.Code)
	assert.Equal(t, 0, cache.resets)
}

func TestWipeWithoutCache(t *testing.T) {
	svc := NewService(&fakeRepo{}, nil, zerolog.Nop())
	assert.NoError(t, svc.Wipe(context.Background(), ""))
}
