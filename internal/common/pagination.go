package common

import (
	"net/http"
	"strconv"
)

// MaxPerPage bounds list page sizes.
const MaxPerPage = 100

// Page is a 1-based page request plus, once known, the total item count.
type Page struct {
	Number     int   `json:"page"`
	Size       int   `json:"perPage"`
	TotalItems int64 `json:"totalItems"`
}

// Offset returns the row offset of the page.
func (p Page) Offset() int {
	if p.Number <= 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// TotalPages returns the page count implied by TotalItems.
func (p Page) TotalPages() int {
	if p.Size <= 0 || p.TotalItems <= 0 {
		return 0
	}
	return int((p.TotalItems + int64(p.Size) - 1) / int64(p.Size))
}

// PageFromRequest reads ?page= and ?per_page= (or ?limit=), clamping the size
// to MaxPerPage and falling back to defaultSize.
func PageFromRequest(r *http.Request, defaultSize int) Page {
	q := r.URL.Query()
	p := Page{Number: 1, Size: defaultSize}
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		p.Number = n
	}
	size := q.Get("per_page")
	if size == "" {
		size = q.Get("limit")
	}
	if n, err := strconv.Atoi(size); err == nil && n > 0 {
		p.Size = n
	}
	if p.Size > MaxPerPage {
		p.Size = MaxPerPage
	}
	return p
}
