package report

import "turnos/internal/domain"

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page is one 1-indexed slice of a result set.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Paginate returns page (1-indexed) of size items. A page past the end is
// empty, not an error; the last page may be partial.
func Paginate[T any](items []T, page, size int) (Page[T], error) {
	if page < 1 || size < 1 {
		return Page[T]{}, domain.InvalidInput("page and page_size must be at least 1")
	}

	p := Page[T]{
		Items:      []T{},
		Page:       page,
		PageSize:   size,
		Total:      len(items),
		TotalPages: (len(items) + size - 1) / size,
	}
	if page > p.TotalPages {
		return p, nil
	}
	start := (page - 1) * size
	end := min(start+size, len(items))
	p.Items = append(p.Items, items[start:end]...)
	return p, nil
}

// ClampPageSize maps 0 to DefaultPageSize and caps at MaxPageSize. Negative
// values pass through so Paginate can reject them.
func ClampPageSize(requested int) int {
	switch {
	case requested == 0:
		return DefaultPageSize
	case requested > MaxPageSize:
		return MaxPageSize
	}
	return requested
}

// MapPage converts the items of a page, keeping its counters.
func MapPage[T, U any](p Page[T], fn func(T) U) Page[U] {
	out := Page[U]{
		Items:      make([]U, 0, len(p.Items)),
		Page:       p.Page,
		PageSize:   p.PageSize,
		Total:      p.Total,
		TotalPages: p.TotalPages,
	}
	for _, item := range p.Items {
		out.Items = append(out.Items, fn(item))
	}
	return out
}
