package convert

import (
	"net/http"
	"strconv"
)

const (
	defaultPerPage = 100
	MaxPerPage     = 1000
)

// Page is the ?page=&per_page= request. A zero Page means no pagination.
type Page struct {
	Number  int
	PerPage int
}

func (p Page) Requested() bool {
	return p.Number > 0
}

func ParsePage(r *http.Request) Page {
	q := r.URL.Query()
	number, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if number <= 0 {
		return Page{}
	}
	return Page{Number: number, PerPage: clampPerPage(perPage)}
}

func clampPerPage(perPage int) int {
	if perPage <= 0 {
		return defaultPerPage
	}
	return min(perPage, MaxPerPage)
}

// Paginate returns the requested page of items. Without a page request the
// items are returned whole with a nil PageInfo.
func Paginate[T any](items []T, page Page) ([]T, *PageInfo) {
	if !page.Requested() {
		return items, nil
	}

	perPage := clampPerPage(page.PerPage)
	total := len(items)
	totalPages := total / perPage
	if total%perPage != 0 {
		totalPages++
	}
	info := &PageInfo{
		TotalItems: total,
		TotalPages: totalPages,
		PageNumber: page.Number,
		PerPage:    perPage,
	}

	// Compared in pages so huge page numbers cannot overflow the offset.
	if page.Number-1 >= totalPages {
		return []T{}, info
	}
	start := (page.Number - 1) * perPage
	end := start + min(perPage, total-start)
	return items[start:end], info
}
