package pagination

import "gorm.io/gorm"

const (
	// MaxLimit caps how many rows any page can request.
	MaxLimit = 100
)

// Params holds page/limit inputs from controllers. Pagination is applied only
// when both values are positive; otherwise callers receive the full set.
type Params struct {
	Page  int
	Limit int
}

// Enabled reports whether both page and limit were supplied.
func (p Params) Enabled() bool {
	return p.Page > 0 && p.Limit > 0
}

// NormalizedLimit caps the limit at MaxLimit.
func (p Params) NormalizedLimit() int {
	if p.Limit > MaxLimit {
		return MaxLimit
	}
	return p.Limit
}

// Offset returns the row offset for the current page.
func (p Params) Offset() int {
	if !p.Enabled() {
		return 0
	}
	return (p.Page - 1) * p.NormalizedLimit()
}

// Scope applies LIMIT/OFFSET when pagination is enabled.
func (p Params) Scope(q *gorm.DB) *gorm.DB {
	if !p.Enabled() {
		return q
	}
	return q.Limit(p.NormalizedLimit()).Offset(p.Offset())
}

// Meta describes the page returned to clients.
type Meta struct {
	Page            int   `json:"page"`
	Limit           int   `json:"limit"`
	Total           int64 `json:"total"`
	TotalPages      int   `json:"totalPages"`
	HasNextPage     bool  `json:"hasNextPage"`
	HasPreviousPage bool  `json:"hasPreviousPage"`
}

// NewMeta computes totalPages = ceil(total/limit) and the navigation flags.
func NewMeta(p Params, total int64) Meta {
	limit := p.NormalizedLimit()
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Meta{
		Page:            p.Page,
		Limit:           limit,
		Total:           total,
		TotalPages:      totalPages,
		HasNextPage:     p.Page < totalPages,
		HasPreviousPage: p.Page > 1,
	}
}

// Page is a list result; Pagination is nil for unpaginated responses.
type Page[T any] struct {
	Data       []T   `json:"data"`
	Pagination *Meta `json:"pagination,omitempty"`
}

// NewPage wraps items, attaching metadata only when pagination is enabled.
func NewPage[T any](items []T, p Params, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	page := Page[T]{Data: items}
	if p.Enabled() {
		meta := NewMeta(p, total)
		page.Pagination = &meta
	}
	return page
}
