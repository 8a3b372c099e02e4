// Package filter holds the exact-match metadata constraints applied during
// candidate retrieval.
package filter

// Filter restricts candidates by exact match on the denormalized passage
// attributes. The zero value matches everything.
type Filter struct {
	year     *int
	category string
}

// New creates a filter. A nil year or empty category leaves that attribute
// unconstrained.
func New(year *int, category string) Filter {
	return Filter{year: year, category: category}
}

// ByYear creates a filter constraining only the year.
func ByYear(year int) Filter {
	return Filter{year: &year}
}

// ByCategory creates a filter constraining only the category.
func ByCategory(category string) Filter {
	return Filter{category: category}
}

// Year returns the year constraint, nil when unconstrained.
func (f Filter) Year() *int { return f.year }

// Category returns the category constraint, empty when unconstrained.
func (f Filter) Category() string { return f.category }

// IsEmpty reports whether the filter has no constraints.
func (f Filter) IsEmpty() bool {
	return f.year == nil && f.category == ""
}

// Matches reports whether a passage with the given attributes satisfies the
// filter.
func (f Filter) Matches(year int, category string) bool {
	if f.year != nil && *f.year != year {
		return false
	}
	if f.category != "" && f.category != category {
		return false
	}
	return true
}
