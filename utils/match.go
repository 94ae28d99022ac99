// Package utils holds small matching helpers shared by the engine and stores.
package utils

import "strings"

// MatchScope reports whether a resource id matches a scope pattern.
// Patterns support:
//   - "*" matching every id
//   - a trailing '*' matching any prefix ("doc-*" matches "doc-42",
//     "org/1/*" matches the whole subtree under "org/1/")
//   - anything else matching exactly
func MatchScope(id, pattern string) bool {
	if pattern == "*" || pattern == id {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(id, strings.TrimSuffix(pattern, "*"))
	}
	return false
}
