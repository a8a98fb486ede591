package urlbinding

import (
	"reflect"
	"strings"
	"unicode"

	"github.com/stripes-go/stripes/internal/errors"
)

// Parse parses a binding pattern for beanType. Parameters are written as
// {name} or {name=default}; a '{' inside a parameter is plain text and a
// backslash escapes the next character anywhere in the pattern. The leading
// literal up to the first parameter becomes the binding's Path, minus any
// trailing punctuation which is kept as the first literal component.
func Parse(beanType reflect.Type, pattern string) (*Binding, error) {
	if pattern == "" {
		return nil, errors.ParseError(pattern, "binding must not be empty")
	}

	var (
		path       string
		havePath   bool
		components []Component
		inParam    bool
		escape     bool
		buf        strings.Builder
	)

	for _, c := range pattern {
		if escape {
			// parameter text keeps its escapes until it is split on '='
			if inParam {
				buf.WriteRune('\\')
			}
			buf.WriteRune(c)
			escape = false
			continue
		}

		switch {
		case c == '\\':
			escape = true
			continue
		case c == '{' && !inParam:
			inParam = true
			if !havePath {
				path, components = splitPath(buf.String(), components)
				havePath = true
			} else if buf.Len() > 0 {
				components = append(components, Component{Literal: buf.String()})
			}
			buf.Reset()
			continue
		case c == '}' && inParam:
			p, err := parseParameter(pattern, buf.String())
			if err != nil {
				return nil, err
			}
			components = append(components, Component{Param: p})
			inParam = false
			buf.Reset()
			continue
		case c == '}':
			return nil, errors.ParseError(pattern, "Unbalanced right brace ('}') in expression")
		}

		buf.WriteRune(c)
	}

	switch {
	case escape:
		return nil, errors.ParseError(pattern, "Expression must not end with escape character")
	case inParam:
		return nil, errors.ParseError(pattern, "Unterminated left brace ('{') in expression")
	case !havePath:
		path = buf.String()
	case buf.Len() > 0:
		components = append(components, Component{Literal: buf.String()})
	}

	if path == "" {
		return nil, errors.ParseError(pattern, "binding must begin with a literal path")
	}

	return newBinding(beanType, path, components), nil
}

// MustParse is like Parse but panics on error
func MustParse(beanType reflect.Type, pattern string) *Binding {
	b, err := Parse(beanType, pattern)
	if err != nil {
		panic(err)
	}
	return b
}

// splitPath moves trailing non-identifier characters of the leading literal
// into a component so that /dept/{id} has path /dept and literal "/".
func splitPath(literal string, components []Component) (string, []Component) {
	runes := []rune(literal)
	end := len(runes)
	for end > 0 && !isIdentifierPart(runes[end-1]) {
		end--
	}
	if end == 0 {
		return literal, components
	}
	if end < len(runes) {
		components = append(components, Component{Literal: string(runes[end:])})
	}
	return string(runes[:end]), components
}

func isIdentifierPart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// parseParameter splits name=default on the first unescaped '='
func parseParameter(pattern, text string) (*Parameter, error) {
	var name, dflt strings.Builder
	current := &name
	escape := false
	for _, c := range text {
		switch {
		case escape:
			escape = false
		case c == '\\':
			escape = true
			continue
		case c == '=' && current == &name:
			current = &dflt
			continue
		}
		current.WriteRune(c)
	}

	if name.Len() == 0 {
		return nil, errors.ParseError(pattern, "parameter name must not be empty")
	}
	if name.String() == EventParameter && dflt.Len() > 0 {
		return nil, errors.ParseError(pattern,
			"the $event parameter may not be assigned a default value; the default handler determines it")
	}
	return &Parameter{Name: name.String(), Default: dflt.String()}, nil
}
