package importer

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/radiology-api/pkg/metrics"
)

type Reason string

const (
	ReasonValidation Reason = "validation"
	ReasonReference  Reason = "reference"
	ReasonWrite      Reason = "write"
)

// Scope identifies the import run an event belongs to.
type Scope struct {
	Entity string
	RunID  string
}

// Rejection describes one record that was not written.
type Rejection struct {
	Index   int
	Reason  Reason
	Excerpt string
	Err     error
}

type BatchStats struct {
	Number     int
	Size       int
	Written    int
	Duplicates int
	Failed     int
	Fallback   bool
	Duration   time.Duration
}

// Observer is called at the pipeline's extension points. Implementations
// must not block for long; they run inline with the import.
type Observer interface {
	DecodeFailed(s Scope, err error)
	RecordRejected(s Scope, r Rejection)
	BatchCommitted(s Scope, b BatchStats)
	BatchFailed(s Scope, batch int, err error)
}

// Observers fans events out in order.
type Observers []Observer

func (o Observers) DecodeFailed(s Scope, err error) {
	for _, obs := range o {
		obs.DecodeFailed(s, err)
	}
}

func (o Observers) RecordRejected(s Scope, r Rejection) {
	for _, obs := range o {
		obs.RecordRejected(s, r)
	}
}

func (o Observers) BatchCommitted(s Scope, b BatchStats) {
	for _, obs := range o {
		obs.BatchCommitted(s, b)
	}
}

func (o Observers) BatchFailed(s Scope, batch int, err error) {
	for _, obs := range o {
		obs.BatchFailed(s, batch, err)
	}
}

type LogObserver struct {
	logger zerolog.Logger
}

func NewLogObserver(logger zerolog.Logger) *LogObserver {
	return &LogObserver{logger: logger.With().Str("component", "importer").Logger()}
}

func (l *LogObserver) DecodeFailed(s Scope, err error) {
	l.logger.Warn().
		Err(err).
		Str("entity", s.Entity).
		Str("run_id", s.RunID).
		Msg("import input could not be decoded")
}

func (l *LogObserver) RecordRejected(s Scope, r Rejection) {
	l.logger.Warn().
		Err(r.Err).
		Str("entity", s.Entity).
		Str("run_id", s.RunID).
		Int("index", r.Index).
		Str("reason", string(r.Reason)).
		Str("record", r.Excerpt).
		Msg("record rejected")
}

func (l *LogObserver) BatchCommitted(s Scope, b BatchStats) {
	l.logger.Info().
		Str("entity", s.Entity).
		Str("run_id", s.RunID).
		Int("batch", b.Number).
		Int("size", b.Size).
		Int("written", b.Written).
		Int("duplicates", b.Duplicates).
		Int("failed", b.Failed).
		Bool("fallback", b.Fallback).
		Dur("duration", b.Duration).
		Msg("batch committed")
}

func (l *LogObserver) BatchFailed(s Scope, batch int, err error) {
	l.logger.Error().
		Err(err).
		Str("entity", s.Entity).
		Str("run_id", s.RunID).
		Int("batch", batch).
		Msg("bulk write failed, retrying records one at a time")
}

type MetricsObserver struct {
	m *metrics.Metrics
}

func NewMetricsObserver(m *metrics.Metrics) *MetricsObserver {
	return &MetricsObserver{m: m}
}

func (o *MetricsObserver) DecodeFailed(s Scope, _ error) {
	o.m.ImportDecodeErrors.WithLabelValues(s.Entity).Inc()
}

func (o *MetricsObserver) RecordRejected(s Scope, r Rejection) {
	o.m.ImportRecords.WithLabelValues(s.Entity, string(r.Reason)).Inc()
}

func (o *MetricsObserver) BatchCommitted(s Scope, b BatchStats) {
	o.m.ImportRecords.WithLabelValues(s.Entity, "written").Add(float64(b.Written))
	o.m.ImportRecords.WithLabelValues(s.Entity, "duplicate").Add(float64(b.Duplicates))
	mode := "bulk"
	if b.Fallback {
		mode = "fallback"
	}
	o.m.ImportBatches.WithLabelValues(s.Entity, mode).Inc()
	o.m.ImportBatchDuration.WithLabelValues(s.Entity).Observe(b.Duration.Seconds())
}

func (o *MetricsObserver) BatchFailed(Scope, int, error) {}
