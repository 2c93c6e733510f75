package importer

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/radiology-api/internal/model"
)

// Notifier is told about every finished import.
type Notifier interface {
	Notify(ctx context.Context, ev model.ImportEvent) error
}

// Job is one import request.
type Job struct {
	Entity  string
	Format  Format
	Charset string
	Body    io.Reader
	Size    int64
	Path    string
	Meta    RunMeta
}

type Service struct {
	registry       *Registry
	observer       Observer
	notifier       Notifier
	logger         zerolog.Logger
	defaultCharset string
	now            func() time.Time

	pending sync.WaitGroup
}

func NewService(registry *Registry, observer Observer, notifier Notifier, logger zerolog.Logger, defaultCharset string) *Service {
	if observer == nil {
		observer = Observers{}
	}
	return &Service{
		registry:       registry,
		observer:       observer,
		notifier:       notifier,
		logger:         logger.With().Str("component", "import-service").Logger(),
		defaultCharset: defaultCharset,
		now:            time.Now,
	}
}

func (s *Service) Registry() *Registry {
	return s.registry
}

// Run decodes job.Body and imports it. The summary is non-nil whenever the
// entity exists, including for aborted runs.
func (s *Service) Run(ctx context.Context, job Job) (*model.ImportSummary, error) {
	if job.Meta.RunID == "" {
		job.Meta.RunID = uuid.NewString()
	}
	if job.Meta.Now.IsZero() {
		job.Meta.Now = s.now().UTC()
	}

	imp, err := s.registry.Get(job.Entity)
	if err != nil {
		return nil, err
	}

	charset := job.Charset
	if charset == "" {
		charset = s.defaultCharset
	}

	src, err := OpenSource(job.Format, job.Body, SourceOptions{
		Charset: charset,
		Layout:  imp.Layout(),
		Size:    job.Size,
		Path:    job.Path,
	})
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) || errors.Is(err, ErrMissingStructure) {
			s.observer.DecodeFailed(Scope{Entity: job.Entity, RunID: job.Meta.RunID}, err)
		}
		summary := &model.ImportSummary{
			Status:  model.ImportStatusError,
			Message: err.Error(),
			RunID:   job.Meta.RunID,
		}
		return summary, err
	}

	return imp.Import(ctx, src, job.Meta)
}

// AnnounceAsync notifies in the background with a private copy of summary.
// Wait blocks until every such notification has returned.
func (s *Service) AnnounceAsync(ctx context.Context, job Job, summary model.ImportSummary) {
	if s.notifier == nil {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		s.Announce(ctx, job, &summary)
	}()
}

// Wait returns once pending notifications are done or ctx expires.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Announce hands the outcome to the notifier. Failures are only logged.
func (s *Service) Announce(ctx context.Context, job Job, summary *model.ImportSummary) {
	if s.notifier == nil || summary == nil {
		return
	}
	ev := model.ImportEvent{
		RunID:   summary.RunID,
		Entity:  job.Entity,
		Actor:   job.Meta.Actor,
		Source:  job.Meta.Source,
		Summary: *summary,
		At:      s.now().UTC(),
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.logger.Warn().
			Err(err).
			Str("run_id", ev.RunID).
			Str("entity", ev.Entity).
			Msg("import notification failed")
	}
}
