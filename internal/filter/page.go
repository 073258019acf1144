package filter

import "estate/internal/core"

const DefaultPageSize = 20

type PageResult struct {
	Items      []core.Record `json:"items"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalItems int           `json:"total_items"`
	TotalPages int           `json:"total_pages"`
}

// Paginate returns the 1-based page of records. Out-of-range pages are
// clamped to the nearest valid page; an empty list yields page 1 with no
// items.
func Paginate(records []core.Record, page, pageSize int) PageResult {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	total := len(records)
	pages := (total + pageSize - 1) / pageSize
	if pages == 0 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}

	start := (page - 1) * pageSize
	end := min(start+pageSize, total)
	items := make([]core.Record, 0, end-start)
	items = append(items, records[start:end]...)

	return PageResult{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: pages,
	}
}

// PageOf returns the 1-based page holding the item at index.
func PageOf(index, pageSize int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if index < 0 {
		return 0
	}
	return index/pageSize + 1
}

// IndexOf returns the position of the record with id, or -1.
func IndexOf(records []core.Record, id string) int {
	for i, r := range records {
		if r.ID == id {
			return i
		}
	}
	return -1
}
