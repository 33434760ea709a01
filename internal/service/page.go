package service

// Default and maximum page sizes for search and history.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 1000
)

// Page is one slice of a longer, ordered result.
type Page[T any] struct {
	Items  []T
	Offset int
	Limit  int
	Total  int
}

// NextOffset returns the offset of the following page, if there is one.
func (p Page[T]) NextOffset() (int, bool) {
	next := p.Offset + p.Limit
	return next, next < p.Total
}

// PageLimit applies the default to a missing or zero limit.
func PageLimit(limit *int) int {
	if limit == nil || *limit <= 0 {
		return DefaultPageLimit
	}
	return *limit
}
