package geocode

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeQuery canonicalizes a place query so that equivalent spellings share
// one cache key: Unicode NFC, whitespace collapsed, comma-separated parts
// trimmed and empty parts removed. Case is preserved.
func NormalizeQuery(q string) string {
	q = norm.NFC.String(q)
	parts := strings.Split(q, ",")
	out := parts[:0]
	for _, p := range parts {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}
