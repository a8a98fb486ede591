// Package validation holds per-property validation rules and the errors
// produced when request parameters fail them.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// Metadata describes the validation and binding rules for one property.
// Zero values mean "no rule".
type Metadata struct {
	Property string

	Required  bool
	NoTrim    bool
	Ignore    bool
	Encrypted bool

	MinLength *int
	MaxLength *int
	MinValue  *float64
	MaxValue  *float64

	// Mask must match the whole (pre-conversion) value
	Mask string
	// Expression is evaluated after conversion with the value bound to `this`
	Expression string
	// Tag is a go-playground/validator tag applied to non-empty raw values
	Tag string
	// Converter names a registered converter, overriding the type default
	Converter string
	Label     string

	// On restricts Required to some events: {"save","update"} or {"!delete"}
	On []string

	mask *regexp.Regexp
}

// Prepare validates the rule set and compiles the mask
func (m *Metadata) Prepare() error {
	if err := ValidateOn(m.On); err != nil {
		return fmt.Errorf("property %s: %w", m.Property, err)
	}
	if m.Mask != "" {
		re, err := regexp.Compile("^(?:" + m.Mask + ")$")
		if err != nil {
			return fmt.Errorf("property %s: invalid mask: %w", m.Property, err)
		}
		m.mask = re
	}
	return nil
}

// MaskMatches reports whether value fully matches the mask
func (m *Metadata) MaskMatches(value string) bool {
	if m.Mask == "" {
		return true
	}
	re := m.mask
	if re == nil {
		re = regexp.MustCompile("^(?:" + m.Mask + ")$")
	}
	return re.MatchString(value)
}

// RequiredOn reports whether the property is required for event
func (m *Metadata) RequiredOn(event string) bool {
	return m.Required && !m.Ignore && Applies(m.On, event)
}

// Trim reports whether values are trimmed before validation
func (m *Metadata) Trim() bool { return !m.NoTrim }

// HasConstraints reports whether any rule beyond Ignore is set; properties
// with constraints are implicitly allowed by a binding policy.
func (m *Metadata) HasConstraints() bool {
	return m.Required || m.Encrypted || m.MinLength != nil || m.MaxLength != nil ||
		m.MinValue != nil || m.MaxValue != nil || m.Mask != "" || m.Expression != "" ||
		m.Tag != "" || m.Converter != "" || m.Label != ""
}

// ValidateOn rejects empty entries and a bare "!" in an event list
func ValidateOn(on []string) error {
	for _, event := range on {
		if event == "" || event == "!" {
			return fmt.Errorf("invalid event %q in on list %v", event, on)
		}
	}
	return nil
}

// Applies reports whether an on-list applies to event. An empty list applies
// to every event; a list whose first entry starts with "!" is an exclusion
// list.
func Applies(on []string, event string) bool {
	if len(on) == 0 {
		return true
	}
	if !strings.HasPrefix(on[0], "!") {
		return contains(on, event)
	}
	return !contains(on, "!"+event)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Int returns a pointer to v, for MinLength/MaxLength literals
func Int(v int) *int { return &v }

// Float returns a pointer to v, for MinValue/MaxValue literals
func Float(v float64) *float64 { return &v }
