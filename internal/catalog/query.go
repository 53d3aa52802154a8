package catalog

import (
	"sort"
	"strings"
)

// Filter keeps products matching category and search, in their original order.
//
// Category is compared exactly (case-sensitive) against the raw category,
// while search is trimmed, lower-cased and matched as a substring of the
// lower-cased name or category.
func Filter(products []Product, search, category string) []Product {
	q := strings.ToLower(strings.TrimSpace(search))

	out := make([]Product, 0, len(products))
	for _, p := range products {
		if category != "" && p.Category != category {
			continue
		}
		if q == "" ||
			strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Category), q) {
			out = append(out, p)
		}
	}
	return out
}

// DistinctCategories returns the non-empty categories, deduplicated and sorted.
func DistinctCategories(products []Product) []string {
	seen := make(map[string]struct{}, len(products))
	out := make([]string, 0, len(products))

	for _, p := range products {
		if p.Category == "" {
			continue
		}
		if _, dup := seen[p.Category]; dup {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}

	sort.Strings(out)
	return out
}
