package library

// DefaultPageSize is used when a caller asks for a non-positive page size.
const DefaultPageSize = 10

// Page is one slice of a list plus what a pager needs to render.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	Size       int `json:"size"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Paginate slices items into 1-based pages. Out-of-range pages are clamped
// to the nearest valid one; an empty list yields page 1 of 0.
func Paginate[T any](items []T, page, size int) Page[T] {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := len(items)
	pages := (total + size - 1) / size
	page = max(page, 1)
	if pages > 0 {
		page = min(page, pages)
	} else {
		page = 1
	}

	start := min((page-1)*size, total)
	end := min(start+size, total)
	return Page[T]{
		Items:      items[start:end:end],
		Page:       page,
		Size:       size,
		Total:      total,
		TotalPages: pages,
	}
}
