package param

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewName(t *testing.T) {
	testCases := []struct {
		raw      string
		stripped string
		indexed  bool
		rowKey   string
	}{
		{raw: "name", stripped: "name"},
		{raw: "items[0].qty", stripped: "items.qty", indexed: true, rowKey: "items[0]"},
		{raw: "prefs['color']", stripped: "prefs", indexed: true, rowKey: "prefs['color']"},
		{raw: "a[1].b[2].c", stripped: "a.b.c", indexed: true, rowKey: "a[1]"},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			n := NewName(tc.raw)
			assert.Equal(t, tc.raw, n.Raw())
			assert.Equal(t, tc.stripped, n.Stripped())
			assert.Equal(t, tc.indexed, n.Indexed())
			assert.Equal(t, tc.rowKey, n.RowKey())
		})
	}
}

func TestSortedNames(t *testing.T) {
	names := SortedNames(map[string][]string{"b": nil, "a[1]": nil, "a": nil})
	raws := make([]string, len(names))
	for i, n := range names {
		raws[i] = n.Raw()
	}
	assert.Equal(t, []string{"a", "a[1]", "b"}, raws)
}

func TestIsReserved(t *testing.T) {
	assert.True(t, IsReserved("_sourcePage"))
	assert.True(t, IsReserved("__fp"))
	assert.True(t, IsReserved("_eventName"))
	assert.True(t, IsReserved("__fsk"))
	assert.False(t, IsReserved("name"))
}
