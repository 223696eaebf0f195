package worker

import (
	"net/url"
	"sort"
	"strings"

	"harvester/packages/domain"
)

// diversityShuffle interleaves items across their category path segment so a
// batch never walks one section of the source back to back. Order within a
// segment is preserved.
func diversityShuffle(items []domain.SourceItem) []domain.SourceItem {
	if len(items) < 3 {
		return items
	}

	groups := make(map[string][]domain.SourceItem)
	keys := make([]string, 0)
	for _, item := range items {
		key := sectionKey(item.SourceURL)
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], item)
	}
	if len(keys) < 2 {
		return items
	}
	sort.Strings(keys)

	out := make([]domain.SourceItem, 0, len(items))
	for len(out) < len(items) {
		for _, key := range keys {
			if len(groups[key]) == 0 {
				continue
			}
			out = append(out, groups[key][0])
			groups[key] = groups[key][1:]
		}
	}
	return out
}

// sectionKey is the first path segment, which on the source maps to the
// category listing an item was discovered under.
func sectionKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return "/"
	}
	return parts[0]
}
