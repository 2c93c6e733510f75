package importer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jwalitptl/radiology-api/internal/model"
	"github.com/jwalitptl/radiology-api/pkg/validator"
)

// keyedStore skips items whose key is already stored, like an
// ON CONFLICT DO NOTHING table. A batch containing an item for which failOn
// returns true fails as a whole and writes nothing.
type keyedStore[T any] struct {
	mu     sync.Mutex
	key    func(T) string
	rows   map[string]T
	order  []string
	failOn func(T) bool
	calls  int
}

func newKeyedStore[T any](key func(T) string) *keyedStore[T] {
	return &keyedStore[T]{key: key, rows: make(map[string]T)}
}

func (s *keyedStore[T]) InsertBatch(_ context.Context, items []T) ([]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failOn != nil {
		for _, it := range items {
			if s.failOn(it) {
				return nil, errors.New("violates check constraint")
			}
		}
	}
	written := make([]bool, len(items))
	for i, it := range items {
		k := s.key(it)
		if _, ok := s.rows[k]; ok {
			continue
		}
		s.rows[k] = it
		s.order = append(s.order, k)
		written[i] = true
	}
	return written, nil
}

func (s *keyedStore[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// appendStore stores everything it is given.
type appendStore[T any] struct {
	mu   sync.Mutex
	rows []T
}

func (s *appendStore[T]) InsertBatch(_ context.Context, items []T) ([]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, items...)
	written := make([]bool, len(items))
	for i := range written {
		written[i] = true
	}
	return written, nil
}

type fakePatients struct {
	mu       sync.Mutex
	existing map[int64]bool
	calls    int
	err      error
}

func newFakePatients(pts ...int64) *fakePatients {
	f := &fakePatients{existing: make(map[int64]bool)}
	for _, pt := range pts {
		f.existing[pt] = true
	}
	return f
}

func (f *fakePatients) ExistingPtNumbers(_ context.Context, pts []int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var found []int64
	for _, pt := range pts {
		if f.existing[pt] {
			found = append(found, pt)
		}
	}
	return found, nil
}

type recordingObserver struct {
	mu         sync.Mutex
	decodes    []error
	rejections []Rejection
	batches    []BatchStats
	failures   int
}

func (o *recordingObserver) DecodeFailed(_ Scope, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.decodes = append(o.decodes, err)
}

func (o *recordingObserver) RecordRejected(_ Scope, r Rejection) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejections = append(o.rejections, r)
}

func (o *recordingObserver) BatchCommitted(_ Scope, b BatchStats) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.batches = append(o.batches, b)
}

func (o *recordingObserver) BatchFailed(Scope, int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures++
}

func newTestPipeline(patients *fakePatients, obs Observer) *Pipeline {
	return NewPipeline(NewParentChecker(patients, time.Minute), validator.New(), obs)
}

var testMeta = RunMeta{
	RunID:  "run-1",
	Actor:  "E100",
	Source: "test.json",
	Now:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
}

func reportStore() *keyedStore[model.Report] {
	return newKeyedStore(model.Report.DedupKey)
}
