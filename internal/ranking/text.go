package ranking

import "strings"

func normalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), needle)
}
