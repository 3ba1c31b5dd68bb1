// Package pagination computes the page markers shown by the pager and slices post lists.
package pagination

import "github.com/takak2166/notionblog/internal/models"

// MinVisible is the smallest window that still fits first, last, current and an ellipsis
const MinVisible = 5

// Window returns the page markers to render for the current page.
// Inputs are clamped: total >= 1, 1 <= current <= total, maxVisible >= MinVisible.
func Window(current, total, maxVisible int) []models.PageMarker {
	total = max(total, 1)
	current = min(max(current, 1), total)
	maxVisible = max(maxVisible, MinVisible)

	if total <= maxVisible {
		return pageRange(nil, 1, total)
	}

	markers := []models.PageMarker{models.PageNumber(1)}
	half := (maxVisible - 3) / 2

	switch {
	case current <= half+2:
		markers = pageRange(markers, 2, min(maxVisible-2, total-1))
		markers = append(markers, models.Ellipsis, models.PageNumber(total))
	case current >= total-half-1:
		markers = append(markers, models.Ellipsis)
		markers = pageRange(markers, max(total-maxVisible+3, 2), total-1)
		markers = append(markers, models.PageNumber(total))
	default:
		markers = append(markers, models.Ellipsis)
		markers = pageRange(markers, current-half, current+half)
		markers = append(markers, models.Ellipsis)
		if total > 1 {
			markers = append(markers, models.PageNumber(total))
		}
	}

	return markers
}

func pageRange(markers []models.PageMarker, from, to int) []models.PageMarker {
	for p := from; p <= to; p++ {
		markers = append(markers, models.PageNumber(p))
	}
	return markers
}

// TotalPages returns how many pages of perPage items are needed, at least one
func TotalPages(items, perPage int) int {
	if perPage <= 0 || items <= 0 {
		return 1
	}
	return (items + perPage - 1) / perPage
}

// Slice returns the items on the given 1-based page; out of range pages are empty
func Slice[T any](items []T, page, perPage int) []T {
	if perPage <= 0 || page < 1 || len(items) == 0 {
		return nil
	}
	// compare page indexes first so (page-1)*perPage cannot overflow
	if page-1 > (len(items)-1)/perPage {
		return nil
	}
	start := (page - 1) * perPage
	end := len(items)
	if end-start > perPage {
		end = start + perPage
	}
	return items[start:end]
}
