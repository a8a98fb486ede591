// Package param models request parameter names and the reserved control
// parameters the dispatcher understands.
package param

import (
	"regexp"
	"sort"
	"strings"
)

// Reserved request parameter names.
const (
	SourcePage    = "_sourcePage"
	FieldsPresent = "__fp"
	EventName     = "_eventName"
	FlashScopeKey = "__fsk"
)

var reserved = map[string]struct{}{
	SourcePage:    {},
	FieldsPresent: {},
	EventName:     {},
	FlashScopeKey: {},
}

// IsReserved reports whether name is one of the dispatcher's control parameters
func IsReserved(name string) bool {
	_, ok := reserved[name]
	return ok
}

var indexPattern = regexp.MustCompile(`\[[^\]]*\]`)

// Name wraps a raw parameter name such as "rows[2].name" and its stripped
// property form "rows.name".
type Name struct {
	raw      string
	stripped string
	indexed  bool
}

// NewName parses a raw request parameter name
func NewName(raw string) Name {
	n := Name{raw: raw, stripped: raw}
	if indexPattern.MatchString(raw) {
		n.indexed = true
		n.stripped = indexPattern.ReplaceAllString(raw, "")
	}
	return n
}

// Raw returns the name exactly as submitted
func (n Name) Raw() string { return n.raw }

// Stripped returns the name with every bracketed index removed
func (n Name) Stripped() string { return n.stripped }

// Indexed reports whether the name carried at least one [...] segment
func (n Name) Indexed() bool { return n.indexed }

// RowKey returns the name up to and including the first closing bracket,
// e.g. "items[1]" for "items[1].qty". Non-indexed names return "".
func (n Name) RowKey() string {
	if !n.indexed {
		return ""
	}
	return n.raw[:strings.Index(n.raw, "]")+1]
}

func (n Name) String() string { return n.raw }

// SortedNames returns the parameter names of values ordered by raw name
func SortedNames[V any](values map[string]V) []Name {
	names := make([]Name, 0, len(values))
	for raw := range values {
		names = append(names, NewName(raw))
	}
	sort.Slice(names, func(i, j int) bool { return names[i].raw < names[j].raw })
	return names
}
