package symbollist

import "fmt"

// PageSize is the number of rows per page.
const PageSize = 100

// Page is one 1-based page of a collection. Start and End are the item
// indices [Start, End) of the page within the full collection.
type Page[T any] struct {
	Items  []T
	Number int
	Count  int
	Start  int
	End    int
	Total  int
}

// Paginate returns page number (1-based) of items. An empty collection
// yields an empty page 1 of 1; out-of-range numbers are clamped.
func Paginate[T any](items []T, number, size int) Page[T] {
	if size <= 0 {
		size = PageSize
	}
	total := len(items)
	count := (total + size - 1) / size
	if count == 0 {
		count = 1
	}
	number = min(max(number, 1), count)

	start := (number - 1) * size
	end := min(start+size, total)
	return Page[T]{
		Items:  items[start:end],
		Number: number,
		Count:  count,
		Start:  start,
		End:    end,
		Total:  total,
	}
}

// Label renders "Page 3 of 3 (201-250 of 250)".
func (p Page[T]) Label() string {
	first := p.Start + 1
	if p.Total == 0 {
		first = 0
	}
	return fmt.Sprintf("Page %d of %d (%d-%d of %d)", p.Number, p.Count, first, p.End, p.Total)
}

// HasPrev reports whether a previous page exists.
func (p Page[T]) HasPrev() bool { return p.Number > 1 }

// HasNext reports whether a following page exists.
func (p Page[T]) HasNext() bool { return p.Number < p.Count }
