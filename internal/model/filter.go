package model

// CategoryFilter is the immutable set of categories selected for display.
// The zero value selects nothing.
type CategoryFilter struct {
	selected map[Category]struct{}
}

// AllCategories selects every known category.
func AllCategories() CategoryFilter {
	return NewCategoryFilter(Categories...)
}

// NoCategories selects nothing.
func NoCategories() CategoryFilter {
	return CategoryFilter{}
}

func NewCategoryFilter(cats ...Category) CategoryFilter {
	sel := make(map[Category]struct{}, len(cats))
	for _, c := range cats {
		sel[c] = struct{}{}
	}
	return CategoryFilter{selected: sel}
}

// Toggle returns a new filter with c flipped; f itself is left unchanged.
func (f CategoryFilter) Toggle(c Category) CategoryFilter {
	sel := make(map[Category]struct{}, len(f.selected)+1)
	for k := range f.selected {
		sel[k] = struct{}{}
	}
	if _, ok := sel[c]; ok {
		delete(sel, c)
	} else {
		sel[c] = struct{}{}
	}
	return CategoryFilter{selected: sel}
}

func (f CategoryFilter) Has(c Category) bool {
	_, ok := f.selected[c]
	return ok
}

// Selected lists the selected categories in display order.
func (f CategoryFilter) Selected() []Category {
	out := make([]Category, 0, len(f.selected))
	for _, c := range Categories {
		if f.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Allows reports whether any of the event's categories is selected.
func (f CategoryFilter) Allows(e RawEvent) bool {
	for _, c := range e.Categories {
		if f.Has(c) {
			return true
		}
	}
	return false
}

// Apply keeps the events the filter allows, preserving order.
func (f CategoryFilter) Apply(events []RawEvent) []RawEvent {
	out := make([]RawEvent, 0, len(events))
	for _, e := range events {
		if f.Allows(e) {
			out = append(out, e)
		}
	}
	return out
}

// CategoryStats summarizes an event list for the filter bar.
type CategoryStats struct {
	Total    int              `json:"total"`
	ByType   map[Category]int `json:"by_type"`
	Filtered int              `json:"filtered"`
}

// CountByCategory counts events per category; an event with several
// categories is counted once in each.
func CountByCategory(events []RawEvent, f CategoryFilter) CategoryStats {
	stats := CategoryStats{
		Total:  len(events),
		ByType: make(map[Category]int, len(Categories)),
	}
	for _, c := range Categories {
		stats.ByType[c] = 0
	}
	for _, e := range events {
		for _, c := range Categories {
			if e.HasCategory(c) {
				stats.ByType[c]++
			}
		}
		if f.Allows(e) {
			stats.Filtered++
		}
	}
	return stats
}
