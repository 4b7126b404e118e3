package shared

// Page size bounds for list queries
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Filter carries the paging and ordering of a list query. Page is 1-based.
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
}

// DefaultFilter is the first page, newest first
func DefaultFilter() Filter {
	return Filter{Page: 1, PageSize: DefaultPageSize, OrderBy: "created_at", OrderDir: "desc"}
}

// Clamped returns f with Page at least 1 and PageSize within (0, MaxPageSize].
// An out of range page size falls back to DefaultPageSize.
func (f Filter) Clamped() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > MaxPageSize {
		f.PageSize = DefaultPageSize
	}
	return f
}

// Offset is the number of rows before the page
func (f Filter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// Paginated is one page of a list together with the total match count
type Paginated[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginated wraps items fetched with f
func NewPaginated[T any](items []T, total int64, f Filter) Paginated[T] {
	p := Paginated[T]{Items: items, Total: total, Page: f.Page, PageSize: f.PageSize}
	if f.PageSize > 0 {
		size := int64(f.PageSize)
		p.TotalPages = int((total + size - 1) / size)
	}
	return p
}
