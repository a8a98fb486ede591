package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stripes-go/stripes/internal/errors"
)

type line struct {
	Qty int
}

type order struct {
	Name     string
	Min      int
	Max      *int
	Lines    []line
	Labels   map[string]string
	Approved bool
}

func TestEvaluate(t *testing.T) {
	max := 10
	bean := &order{
		Name:     "spring",
		Min:      2,
		Max:      &max,
		Lines:    []line{{Qty: 3}},
		Labels:   map[string]string{"tier": "gold"},
		Approved: true,
	}

	tests := []struct {
		source   string
		this     interface{}
		expected bool
	}{
		{"this > 0", 5, true},
		{"this > 0", -1, false},
		{"${this >= min && this <= max}", 7, true},
		{"this >= min and this <= max", 11, false},
		{"this == 'abc'", "abc", true},
		{"this != ''", "", false},
		{"name == 'spring' || this == 1", 0, true},
		{"!approved", nil, false},
		{"not (min > 5)", nil, true},
		{"lines[0].qty * 2 == 6", nil, true},
		{"labels['tier'] eq 'gold'", nil, true},
		{"labels.tier == \"gold\"", nil, true},
		{"empty this", "", true},
		{"empty lines", nil, false},
		{"this == null", nil, true},
		{"this % 2 == 1", 7, true},
		{"-this < 0", 3, true},
		{"(this + 1) / 2 == 2", 3, true},
		{"this == 5", "5", true},
		{"this", true, true},
		{"this lt 'b'", "a", true},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			ok, err := Evaluate(tt.source, bean, tt.this)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
		})
	}
}

func TestShortCircuit(t *testing.T) {
	// the right-hand side would fail to compare a string with a number
	ok, err := Evaluate("this == 1 || this > 'x'", 1, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Evaluate("this == 2 && this > 'x'", 1, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompileErrors(t *testing.T) {
	for _, source := range []string{"this >", "&& this", "(this", "this == 'open"} {
		t.Run(source, func(t *testing.T) {
			_, err := Compile(source)
			require.Error(t, err)
			assert.Equal(t, errors.ParseErrorCode, errors.CodeOf(err))
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		source string
		bean   interface{}
		this   interface{}
	}{
		{"this > 'x'", nil, 1},
		{"unknown == 1", &order{}, nil},
		{"this", nil, 42},
		{"name == 'x'", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			_, err := Evaluate(tt.source, tt.bean, tt.this)
			assert.Error(t, err)
		})
	}
}

func TestCompileCaches(t *testing.T) {
	a, err := Compile("this > 1")
	require.NoError(t, err)
	b, err := Compile("this > 1")
	require.NoError(t, err)
	assert.Same(t, a, b)
}
