package snapshot

import (
	"path"
	"strings"

	"github.com/sahilm/fuzzy"
)

// suggest returns up to limit names from candidates that fuzzy-match name.
// The full name is tried first, then its base name without extension, so
// "snap1.txt" finds "snapshot1.txt" and "nested/value" finds "value.txt".
func suggest(name string, candidates []string, limit int) []string {
	if limit <= 0 || len(candidates) == 0 {
		return nil
	}

	patterns := []string{name}
	base := strings.TrimSuffix(path.Base(name), path.Ext(name))
	if base != "" && base != name {
		patterns = append(patterns, base)
	}

	seen := make(map[string]struct{})
	var out []string
	for _, p := range patterns {
		for _, m := range fuzzy.Find(p, candidates) {
			if m.Str == name {
				continue
			}
			if _, ok := seen[m.Str]; ok {
				continue
			}
			seen[m.Str] = struct{}{}
			out = append(out, m.Str)
			if len(out) == limit {
				return out
			}
		}
	}
	return out
}
