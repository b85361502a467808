package pagination

const (
	// DefaultPageSize mirrors the order list shown on picker tablets.
	DefaultPageSize = 10
	// MaxPageSize caps how many rows any page can request.
	MaxPageSize = 100
)

// Params holds page-based pagination inputs from controllers or services.
type Params struct {
	Page     int
	PageSize int
}

// Page describes the slice of a result set that was returned.
type Page struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Normalize enforces the default page size and a 1-based page number.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Bounds returns the [start, end) indexes of the page within total items.
func (p Params) Bounds(total int) (int, int) {
	p = p.Normalize()
	start := (p.Page - 1) * p.PageSize
	if start > total {
		start = total
	}
	end := start + p.PageSize
	if end > total {
		end = total
	}
	return start, end
}

// Describe builds the Page metadata for total items.
func (p Params) Describe(total int) Page {
	p = p.Normalize()
	pages := 0
	if total > 0 {
		pages = (total + p.PageSize - 1) / p.PageSize
	}
	return Page{Page: p.Page, PageSize: p.PageSize, Total: total, TotalPages: pages}
}

// Slice returns the page of items described by p.
func Slice[T any](items []T, p Params) ([]T, Page) {
	start, end := p.Bounds(len(items))
	return items[start:end], p.Describe(len(items))
}
