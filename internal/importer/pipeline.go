package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jwalitptl/radiology-api/internal/model"
	"github.com/jwalitptl/radiology-api/internal/repository"
	"github.com/jwalitptl/radiology-api/pkg/validator"
)

// RunMeta describes one import run.
type RunMeta struct {
	RunID string
	// Actor is the employee number of the importing doctor, if known.
	Actor  string
	Source string
	Now    time.Time
}

// Entity configures the pipeline for one destination table.
type Entity[T any] struct {
	Name      string
	Plural    string
	Singular  string
	BatchSize int
	// Aliases maps normalized alternative field names to canonical ones.
	Aliases map[string]string
	Build   func(f *fields, meta RunMeta) (T, error)
	// Key enables deduplication; nil means none is attempted.
	Key func(T) string
	// Parent returns the patient number that must already exist; nil skips
	// the reference check.
	Parent func(T) int64
	// Soft flags written records that deserve a warning count.
	Soft  func(T) bool
	Store repository.BatchWriter[T]
	// DICOM allows single-file DICOM header uploads.
	DICOM bool
}

// WrapperKeys lists the object keys accepted around a JSON record array.
func (e *Entity[T]) WrapperKeys() []string {
	return []string{e.Plural, "records", "data", "items"}
}

type Pipeline struct {
	parents  *ParentChecker
	validate validator.Validator
	observer Observer
}

func NewPipeline(parents *ParentChecker, v validator.Validator, observer Observer) *Pipeline {
	if observer == nil {
		observer = Observers{}
	}
	return &Pipeline{parents: parents, validate: v, observer: observer}
}

func (p *Pipeline) Parents() *ParentChecker {
	return p.parents
}

type pending[T any] struct {
	rec  Record
	item T
}

type run[T any] struct {
	p       *Pipeline
	e       *Entity[T]
	scope   Scope
	meta    RunMeta
	summary *model.ImportSummary
	batch   []pending[T]
	batchNo int
}

// Run drives src through normalization, reference checks and batched
// writes. Record-level failures are counted in the summary. A decode error
// or cancellation stops the run: batches already committed stay, the
// partially filled batch is dropped, and the returned summary has status
// "error" alongside the error.
func Run[T any](ctx context.Context, p *Pipeline, e *Entity[T], src RecordSource, meta RunMeta) (*model.ImportSummary, error) {
	r := &run[T]{
		p:       p,
		e:       e,
		scope:   Scope{Entity: e.Name, RunID: meta.RunID},
		meta:    meta,
		summary: &model.ImportSummary{RunID: meta.RunID},
		batch:   make([]pending[T], 0, e.BatchSize),
	}

	for {
		if err := ctx.Err(); err != nil {
			return r.abort(err)
		}

		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			p.observer.DecodeFailed(r.scope, err)
			return r.abort(err)
		}

		r.summary.Total++
		item, err := r.build(rec)
		if err != nil {
			r.reject(rec, ReasonValidation, err)
			continue
		}

		r.batch = append(r.batch, pending[T]{rec: rec, item: item})
		if len(r.batch) >= e.BatchSize {
			if err := r.flush(ctx); err != nil {
				return r.abort(err)
			}
		}
	}

	if err := r.flush(ctx); err != nil {
		return r.abort(err)
	}

	r.summary.Status = model.ImportStatusSuccess
	r.summary.Finalize()
	r.summary.Message = fmt.Sprintf("imported %d of %d %s", r.summary.Processed, r.summary.Total, e.Name)
	return r.summary, nil
}

func (r *run[T]) build(rec Record) (T, error) {
	var zero T
	if rec.Err != nil {
		return zero, rec.Err
	}
	f := newFields(canonicalize(rec.Fields, r.e.Aliases))
	item, err := r.e.Build(f, r.meta)
	if err != nil {
		return zero, err
	}
	if err := f.Err(); err != nil {
		return zero, err
	}
	if err := r.p.validate.Validate(item); err != nil {
		return zero, err
	}
	return item, nil
}

func (r *run[T]) abort(err error) (*model.ImportSummary, error) {
	r.summary.Status = model.ImportStatusError
	r.summary.Finalize()
	r.summary.Message = fmt.Sprintf("import aborted after %d records: %v", r.summary.Total, err)
	return r.summary, err
}

func (r *run[T]) reject(rec Record, reason Reason, err error) {
	switch reason {
	case ReasonValidation:
		r.summary.ValidationErrors++
	case ReasonReference:
		r.summary.ReferenceErrors++
	case ReasonWrite:
		r.summary.WriteErrors++
	}
	r.p.observer.RecordRejected(r.scope, Rejection{
		Index:   rec.Index,
		Reason:  reason,
		Excerpt: Excerpt(rec.Fields),
		Err:     err,
	})
}

// flush writes the pending batch. It only returns an error when ctx ends.
func (r *run[T]) flush(ctx context.Context) error {
	if len(r.batch) == 0 {
		return nil
	}
	defer func() { r.batch = r.batch[:0] }()

	r.batchNo++
	start := time.Now()
	stats := BatchStats{Number: r.batchNo, Size: len(r.batch)}

	kept := r.dedup(&stats)

	kept, ok := r.checkParents(ctx, kept, &stats)
	if !ok {
		stats.Duration = time.Since(start)
		r.p.observer.BatchCommitted(r.scope, stats)
		return ctx.Err()
	}

	if len(kept) > 0 {
		items := make([]T, len(kept))
		for i, pd := range kept {
			items[i] = pd.item
		}

		written, err := r.e.Store.InsertBatch(ctx, items)
		if err == nil && len(written) != len(items) {
			err = fmt.Errorf("store reported %d results for %d items", len(written), len(items))
		}
		switch {
		case err == nil:
			for i, pd := range kept {
				r.tally(pd, written[i], &stats)
			}
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			r.p.observer.BatchFailed(r.scope, r.batchNo, err)
			stats.Fallback = true
			if err := r.insertEach(ctx, kept, &stats); err != nil {
				return err
			}
		}
	}

	stats.Duration = time.Since(start)
	r.p.observer.BatchCommitted(r.scope, stats)
	return nil
}

// dedup drops records whose key already appeared earlier in the batch.
func (r *run[T]) dedup(stats *BatchStats) []pending[T] {
	if r.e.Key == nil {
		return r.batch
	}
	seen := make(map[string]bool, len(r.batch))
	kept := make([]pending[T], 0, len(r.batch))
	for _, pd := range r.batch {
		k := r.e.Key(pd.item)
		if seen[k] {
			r.summary.Duplicates++
			stats.Duplicates++
			continue
		}
		seen[k] = true
		kept = append(kept, pd)
	}
	return kept
}

// checkParents rejects records whose patient is not committed. When the
// lookup itself fails every record in the batch is counted as a write
// failure and ok is false.
func (r *run[T]) checkParents(ctx context.Context, batch []pending[T], stats *BatchStats) ([]pending[T], bool) {
	if r.e.Parent == nil || r.p.parents == nil || len(batch) == 0 {
		return batch, true
	}

	ids := make([]int64, len(batch))
	for i, pd := range batch {
		ids[i] = r.e.Parent(pd.item)
	}

	missing, err := r.p.parents.Missing(ctx, ids)
	if err != nil {
		for _, pd := range batch {
			r.reject(pd.rec, ReasonWrite, fmt.Errorf("patient lookup failed: %w", err))
			stats.Failed++
		}
		return nil, false
	}

	kept := batch[:0:0]
	for _, pd := range batch {
		pt := r.e.Parent(pd.item)
		if missing[pt] {
			r.reject(pd.rec, ReasonReference, fmt.Errorf("patient %d does not exist", pt))
			stats.Failed++
			continue
		}
		kept = append(kept, pd)
	}
	return kept, true
}

// insertEach isolates the records that broke a bulk write.
func (r *run[T]) insertEach(ctx context.Context, batch []pending[T], stats *BatchStats) error {
	for _, pd := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		written, err := r.e.Store.InsertBatch(ctx, []T{pd.item})
		if err == nil && len(written) != 1 {
			err = fmt.Errorf("store reported %d results for 1 item", len(written))
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.reject(pd.rec, ReasonWrite, err)
			stats.Failed++
			continue
		}
		r.tally(pd, written[0], stats)
	}
	return nil
}

func (r *run[T]) tally(pd pending[T], written bool, stats *BatchStats) {
	if !written {
		r.summary.Duplicates++
		stats.Duplicates++
		return
	}
	r.summary.Processed++
	stats.Written++
	if r.e.Soft != nil && r.e.Soft(pd.item) {
		r.summary.MissingReportCount++
	}
}
