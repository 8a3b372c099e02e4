package filter

import "testing"

func TestFilter_Matches(t *testing.T) {
	year := 2019

	tests := []struct {
		name     string
		f        Filter
		year     int
		category string
		want     bool
	}{
		{"empty matches anything", Filter{}, 2020, "legal", true},
		{"year match", ByYear(2019), 2019, "legal", true},
		{"year mismatch", ByYear(2019), 2020, "legal", false},
		{"category match", ByCategory("legal"), 2020, "legal", true},
		{"category mismatch", ByCategory("legal"), 2020, "finance", false},
		{"both match", New(&year, "legal"), 2019, "legal", true},
		{"both set year mismatch", New(&year, "legal"), 2020, "legal", false},
		{"both set category mismatch", New(&year, "legal"), 2019, "finance", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.f.Matches(tc.year, tc.category); got != tc.want {
				t.Errorf("Matches(%d, %q) = %v, want %v", tc.year, tc.category, got, tc.want)
			}
		})
	}
}

func TestFilter_IsEmpty(t *testing.T) {
	if !(Filter{}).IsEmpty() {
		t.Error("zero filter should be empty")
	}
	if ByYear(2020).IsEmpty() {
		t.Error("year filter should not be empty")
	}
	if ByCategory("legal").IsEmpty() {
		t.Error("category filter should not be empty")
	}
}
