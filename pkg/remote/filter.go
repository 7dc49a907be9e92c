package remote

import (
	"strings"

	"golang.org/x/text/cases"
)

// Filter returns the items whose display field contains query, ignoring case.
// An empty query returns items unchanged. No match returns an empty, non-nil
// slice so callers can tell "nothing matched" from "not loaded yet".
func Filter[T any](items []T, query string, display func(T) string) []T {
	if query == "" {
		return items
	}

	fold := cases.Fold()
	needle := fold.String(query)

	out := make([]T, 0)
	for _, item := range items {
		if strings.Contains(fold.String(display(item)), needle) {
			out = append(out, item)
		}
	}
	return out
}
