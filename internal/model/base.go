package model

import "time"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ListQuery carries the pagination and search parameters of list endpoints.
type ListQuery struct {
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
	Search string `form:"q"`
}

// Normalize clamps page and limit into their accepted ranges.
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	return q
}

func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Page is one page of a listing.
type Page[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	TotalPages int `json:"totalPages"`
}

func NewPage[T any](items []T, total int, q ListQuery) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if q.Limit > 0 {
		pages = (total + q.Limit - 1) / q.Limit
	}
	return Page[T]{Data: items, Total: total, Page: q.Page, TotalPages: pages}
}

// DateKey formats the calendar date used in dedup keys.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
