package model

import "strings"

// searchText lowercases the non-empty parts and joins them one per line.
// Folding happens in Go because SQLite LOWER() only knows ASCII, and the
// line breaks keep a query from matching across two fields.
func searchText(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.ToLower(p))
	}
	return b.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
