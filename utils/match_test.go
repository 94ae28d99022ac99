package utils

import "testing"

func TestMatchScope(t *testing.T) {
	cases := []struct {
		id      string
		pattern string
		want    bool
	}{
		{"doc-1", "*", true},
		{"doc-1", "doc-1", true},
		{"doc-1", "doc-2", false},
		{"reports/q3/summary", "reports/*", true},
		{"invoices/2026", "reports/*", false},
		{"doc-123", "doc-*", true},
		{"note-123", "doc-*", false},
		{"", "*", true},
		{"doc-1", "", false},
	}
	for _, tc := range cases {
		if got := MatchScope(tc.id, tc.pattern); got != tc.want {
			t.Fatalf("MatchScope(%q, %q) = %v, want %v", tc.id, tc.pattern, got, tc.want)
		}
	}
}
