package convert

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type status string

type level int

func (l *level) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "low":
		*l = 1
	case "high":
		*l = 2
	default:
		return errors.New("unknown level")
	}
	return nil
}

func TestRegistry_Builtins(t *testing.T) {
	r := NewRegistry()
	id := uuid.New()

	testCases := []struct {
		name     string
		input    string
		target   interface{}
		expected interface{}
	}{
		{"string", "hello", "", "hello"},
		{"named string", "open", status(""), status("open")},
		{"int", "42", 0, 42},
		{"int grouping", "1,234", 0, 1234},
		{"int accounting negative", "(12)", 0, -12},
		{"int8", "-7", int8(0), int8(-7)},
		{"uint16", "65535", uint16(0), uint16(65535)},
		{"float64 currency", "$19.99", float64(0), 19.99},
		{"float32", "1.5", float32(0), float32(1.5)},
		{"bool yes", "yes", false, true},
		{"bool on", "on", false, true},
		{"bool garbage is false", "nope", false, false},
		{"uuid", id.String(), uuid.UUID{}, id},
		{"date", "2024-03-01", time.Time{}, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"duration", "1h30m", time.Duration(0), 90 * time.Minute},
		{"text unmarshaler", "HIGH", level(0), level(2)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := r.Convert(tc.input, reflect.TypeOf(tc.target), "")
			require.NoError(t, err)
			assert.Equal(t, tc.expected, v)
		})
	}
}

func TestRegistry_PointerTarget(t *testing.T) {
	r := NewRegistry()

	v, err := r.Convert("7", reflect.TypeOf((*int)(nil)), "")
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestRegistry_ConversionErrors(t *testing.T) {
	r := NewRegistry()

	testCases := []struct {
		name   string
		input  string
		target interface{}
		scope  string
		key    string
	}{
		{"invalid number", "abc", 0, "converter.number", "invalidNumber"},
		{"out of range", "300", int8(0), "converter.integer", "outOfRange"},
		{"invalid uuid", "not-a-uuid", uuid.UUID{}, "converter.uuid", "invalidUUID"},
		{"invalid date", "yesterday", time.Time{}, "converter.date", "invalidDate"},
		{"text unmarshaler", "medium", level(0), "converter", "failed"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Convert(tc.input, reflect.TypeOf(tc.target), "")
			var convErr *Error
			require.ErrorAs(t, err, &convErr)
			assert.Equal(t, tc.scope, convErr.Scope)
			assert.Equal(t, tc.key, convErr.Key)
		})
	}
}

func TestRegistry_OutOfRangeParams(t *testing.T) {
	_, err := NewRegistry().Convert("300", reflect.TypeOf(int8(0)), "")
	var convErr *Error
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, []interface{}{int64(-128), int64(127)}, convErr.Params)
}

func TestRegistry_Named(t *testing.T) {
	r := NewRegistry()

	v, err := r.Convert(" Ann <ann@example.com> ", reflect.TypeOf(""), "email")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", v)

	_, err = r.Convert("nobody", reflect.TypeOf(""), "email")
	assert.Error(t, err)

	v, err = r.Convert("1, 2 3", reflect.TypeOf([]int{}), "oneToMany")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{1, 2, 3}, v)

	v, err = r.Convert("15%", reflect.TypeOf(float64(0)), "percentage")
	require.NoError(t, err)
	assert.InDelta(t, 0.15, v, 1e-9)

	_, err = r.Convert("x", reflect.TypeOf(""), "missing")
	assert.ErrorIs(t, err, ErrNoConverter)
}

func TestRegistry_NoConverter(t *testing.T) {
	_, err := NewRegistry().Convert("x", reflect.TypeOf(struct{}{}), "")
	assert.ErrorIs(t, err, ErrNoConverter)
}

func TestRegistry_CustomType(t *testing.T) {
	r := NewRegistry()
	r.Register(reflect.TypeOf(status("")), ConverterFunc(func(input string, target reflect.Type) (interface{}, error) {
		return status(strings.ToUpper(input)), nil
	}))

	v, err := r.Convert("open", reflect.TypeOf(status("")), "")
	require.NoError(t, err)
	assert.Equal(t, status("OPEN"), v)
}
