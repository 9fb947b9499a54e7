package conduit

import (
	"slices"
	"strings"
)

// FilterMode selects how a Filter's item list is applied.
type FilterMode int

const (
	// Whitelist only lets listed items through.
	Whitelist FilterMode = iota
	// Blacklist lets everything but the listed items through.
	Blacklist
)

// String returns the string representation of the filter mode.
func (m FilterMode) String() string {
	switch m {
	case Whitelist:
		return "Whitelist"
	case Blacklist:
		return "Blacklist"
	default:
		return "Unknown"
	}
}

// Filter is the item filter configured on an extract or insert node.
type Filter struct {
	Mode  FilterMode
	Items []string
}

// parseFilterList splits the stored comma-separated item list.
func parseFilterList(s string) []string {
	if s == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// list returns the stored form of the item list.
func (f Filter) list() string {
	return strings.Join(f.Items, ",")
}

// Allows reports whether an item passes the filter.
// An empty whitelist lets nothing through.
func (f Filter) Allows(item string) bool {
	listed := slices.Contains(f.Items, item)
	if f.Mode == Blacklist {
		return !listed
	}
	return listed
}
