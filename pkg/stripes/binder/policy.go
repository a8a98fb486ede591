package binder

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/stripes-go/stripes/pkg/stripes/action"
	"github.com/stripes-go/stripes/pkg/stripes/property"
)

var (
	globSplit       = regexp.MustCompile(`(\s*,\s*)+`)
	propertyPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)
)

const (
	segmentRegex   = `[^.]+`
	segmentsRegex  = `[^.]+(\.[^.]+)*`
	contextSegment = "context"
)

// Policy decides which property paths a bean accepts from a request
type Policy struct {
	def       action.Policy
	allow     *regexp.Regexp
	deny      *regexp.Regexp
	validated map[string]bool
}

// NewPolicy compiles a strict binding policy. Properties in validated carry
// validation rules and are implicitly allowed. A nil strict allows
// everything except the context.
func NewPolicy(strict *action.StrictBinding, validated []string) (*Policy, error) {
	p := &Policy{def: action.Allow, validated: make(map[string]bool, len(validated))}
	for _, name := range validated {
		p.validated[name] = true
	}
	if strict == nil {
		return p, nil
	}

	var err error
	p.def = strict.Default
	if p.allow, err = globToRegexp(strict.Allow); err != nil {
		return nil, err
	}
	if p.deny, err = globToRegexp(strict.Deny); err != nil {
		return nil, err
	}
	return p, nil
}

// Allowed reports whether expr may be bound
func (p *Policy) Allowed(expr *property.Expression) bool {
	if strings.EqualFold(expr.Root(), contextSegment) {
		return false
	}

	path, stripped := policyPaths(expr)
	deny := p.deny != nil && p.deny.MatchString(path)
	allow := (p.allow != nil && p.allow.MatchString(path)) || p.validated[stripped]

	if p.def == action.Deny && allow == deny {
		return false
	}
	if !allow && deny {
		return false
	}
	return true
}

// policyPaths renders expr as dotted segments, with and without its index
// segments: rows[2].name gives "rows.2.name" and "rows.name"
func policyPaths(expr *property.Expression) (string, string) {
	full := make([]string, 0, len(expr.Nodes))
	stripped := make([]string, 0, len(expr.Nodes))
	for _, n := range expr.Nodes {
		if n.Index {
			full = append(full, n.Key)
			continue
		}
		full = append(full, n.Name)
		stripped = append(stripped, n.Name)
	}
	return strings.Join(full, "."), strings.Join(stripped, ".")
}

// globToRegexp translates comma separated property globs. "*" matches one
// path segment and "**" one or more.
func globToRegexp(globs []string) (*regexp.Regexp, error) {
	var alternatives []string
	for _, g := range globs {
		for _, glob := range globSplit.Split(strings.TrimSpace(g), -1) {
			if glob == "" {
				continue
			}
			segments := strings.Split(glob, ".")
			parts := make([]string, 0, len(segments))
			for _, s := range segments {
				switch {
				case s == "*":
					parts = append(parts, segmentRegex)
				case s == "**":
					parts = append(parts, segmentsRegex)
				case propertyPattern.MatchString(s):
					parts = append(parts, regexp.QuoteMeta(s))
				default:
					return nil, fmt.Errorf("invalid property %q in binding glob %q", s, glob)
				}
			}
			alternatives = append(alternatives, strings.Join(parts, `\.`))
		}
	}
	if len(alternatives) == 0 {
		return nil, nil
	}
	return regexp.Compile("^(?:" + strings.Join(alternatives, "|") + ")$")
}
