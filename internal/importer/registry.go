package importer

import (
	"context"
	"fmt"
	"sort"

	"github.com/jwalitptl/radiology-api/internal/model"
)

// Layout describes where records sit inside an upload.
type Layout struct {
	WrapperKeys []string
	Plural      string
	Singular    string
	DICOM       bool
}

// Importer runs the pipeline for one entity.
type Importer interface {
	Name() string
	Layout() Layout
	Import(ctx context.Context, src RecordSource, meta RunMeta) (*model.ImportSummary, error)
}

type entityImporter[T any] struct {
	p *Pipeline
	e *Entity[T]
}

// Bind pairs an entity configuration with a pipeline.
func Bind[T any](p *Pipeline, e *Entity[T]) Importer {
	return &entityImporter[T]{p: p, e: e}
}

func (i *entityImporter[T]) Name() string {
	return i.e.Name
}

func (i *entityImporter[T]) Layout() Layout {
	return Layout{
		WrapperKeys: i.e.WrapperKeys(),
		Plural:      i.e.Plural,
		Singular:    i.e.Singular,
		DICOM:       i.e.DICOM,
	}
}

func (i *entityImporter[T]) Import(ctx context.Context, src RecordSource, meta RunMeta) (*model.ImportSummary, error) {
	return Run(ctx, i.p, i.e, src, meta)
}

type Registry struct {
	byName map[string]Importer
}

func NewRegistry(importers ...Importer) *Registry {
	r := &Registry{byName: make(map[string]Importer, len(importers))}
	for _, imp := range importers {
		r.byName[imp.Name()] = imp
	}
	return r
}

func (r *Registry) Get(name string) (Importer, error) {
	imp, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, name)
	}
	return imp, nil
}

// Names lists registered entities in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
