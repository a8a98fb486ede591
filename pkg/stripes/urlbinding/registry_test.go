package urlbinding

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stripes-go/stripes/internal/errors"
)

type (
	foo1 struct{}
	foo2 struct{}
	foo3 struct{}
	foo5 struct{}
	foo7 struct{}
	foo8 struct{}
	tieA struct{}
	tieB struct{}
	rep1 struct{}
	rep2 struct{}
	sts1 struct{}
	sts2 struct{}
	sts3 struct{}
)

func register(t *testing.T, r *Registry, bean interface{}, pattern string) *Binding {
	t.Helper()
	b, err := Parse(reflect.TypeOf(bean), pattern)
	require.NoError(t, err)
	r.Register(b)
	return b
}

func newFooRegistry(t *testing.T) *Registry {
	r := NewRegistry(nil)
	register(t, r, foo1{}, "/foo/{a}")
	register(t, r, foo2{}, "/foo/{a}/{b}")
	register(t, r, foo3{}, "/foo/{a}/{b}/{c}")
	register(t, r, foo5{}, "/foo/{a}/bar")
	register(t, r, foo8{}, "/foo/goo/{a}")
	return r
}

func TestRegistry_MatchPrefersDeepestLiteral(t *testing.T) {
	r := newFooRegistry(t)

	testCases := []struct {
		uri      string
		expected interface{}
	}{
		{"/foo/1", foo1{}},
		{"/foo/1/2", foo2{}},
		{"/foo/1/bar", foo5{}},
		{"/foo/1/2/3", foo3{}},
		{"/foo/goo", foo8{}},
		{"/foo/goo/1", foo8{}},
		{"/foo/goo/1/2", foo8{}},
	}

	for _, tc := range testCases {
		t.Run(tc.uri, func(t *testing.T) {
			b, err := r.Match(tc.uri)
			require.NoError(t, err)
			require.NotNil(t, b, "uri %s matched nothing", tc.uri)
			assert.Equal(t, reflect.TypeOf(tc.expected), b.BeanType)
		})
	}
}

func TestRegistry_ExactPathsWin(t *testing.T) {
	r := newFooRegistry(t)
	register(t, r, foo7{}, "/foo/{a}/{b}/{c}/{d}.action")

	b, err := r.Match("/foo.action")
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(foo7{}), b.BeanType)

	b, err = r.Match("/foo/{a}/bar")
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(foo5{}), b.BeanType)
}

func TestRegistry_SharedPathIsConflict(t *testing.T) {
	r := newFooRegistry(t)

	_, err := r.Match("/foo")
	require.Error(t, err)
	assert.Equal(t, errors.BindingConflictErrorCode, errors.CodeOf(err))
}

func TestRegistry_NoMatch(t *testing.T) {
	r := newFooRegistry(t)

	b, err := r.Match("/elsewhere")
	assert.NoError(t, err)
	assert.Nil(t, b)
}

func TestRegistry_LiteralConflictNamesContenders(t *testing.T) {
	r := NewRegistry(nil)
	register(t, r, rep1{}, "/report.action")
	register(t, r, rep2{}, "/report.action")

	_, err := r.Match("/report.action")
	require.Error(t, err)
	assert.Equal(t, errors.BindingConflictErrorCode, errors.CodeOf(err))

	var be *errors.BaseError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, []string{"/report.action", "/report.action"}, be.Context()["contenders"])
	assert.Contains(t, r.Conflicts(), "/report.action")
}

func TestRegistry_RemoveResolvesConflict(t *testing.T) {
	r := NewRegistry(nil)
	register(t, r, rep1{}, "/report.action")
	register(t, r, rep2{}, "/report.action")

	r.Remove(reflect.TypeOf(rep1{}))

	b, err := r.Match("/report.action")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, reflect.TypeOf(rep2{}), b.BeanType)
	assert.Empty(t, r.Conflicts())
}

func TestRegistry_TrueTieIsConflict(t *testing.T) {
	r := NewRegistry(nil)
	register(t, r, tieA{}, "/tie/{a}")
	register(t, r, tieB{}, "/tie/{b}")

	_, err := r.Match("/tie/1")
	require.Error(t, err)
	assert.Equal(t, errors.BindingConflictErrorCode, errors.CodeOf(err))
	assert.ErrorContains(t, err, "/tie/{a}")
	assert.ErrorContains(t, err, "/tie/{b}")
}

func TestRegistry_BindWidget(t *testing.T) {
	r := NewRegistry(nil)
	register(t, r, widgetBean{}, "/widget/{id}/{$event}")

	b, err := r.Bind("/widget/42/save")
	require.NoError(t, err)
	require.NotNil(t, b)

	assert.Equal(t, widgetType, b.BeanType)
	assert.Equal(t, map[string]string{"id": "42", EventParameter: "save"}, b.Values())

	// the prototype is never mutated
	proto, _ := r.Lookup(widgetType)
	assert.Empty(t, proto.Parameters()[0].Value)
}

func TestRegistry_BindDefaults(t *testing.T) {
	r := NewRegistry(nil)
	register(t, r, widgetBean{}, "/report/{year=2024}/{month=1}")

	b, err := r.Bind("/report/2019")
	require.NoError(t, err)

	year, _ := b.Parameter("year")
	month, _ := b.Parameter("month")
	assert.Equal(t, "2019", year.Effective())
	assert.Equal(t, "1", month.Effective())
	assert.Empty(t, month.Value)
}

func TestRegistry_BindTrailingSlashSuffix(t *testing.T) {
	r := NewRegistry(nil)
	register(t, r, sts1{}, "/sts731/{a}/")
	register(t, r, sts2{}, "/sts731/{a}/foo/")
	register(t, r, sts3{}, "/sts731/{a}/bar/")

	for _, value := range []string{"really-long", "long", "XX", "X"} {
		for uri, expected := range map[string]interface{}{
			fmt.Sprintf("/sts731/%s/", value):     sts1{},
			fmt.Sprintf("/sts731/%s/foo/", value): sts2{},
			fmt.Sprintf("/sts731/%s/bar/", value): sts3{},
		} {
			b, err := r.Bind(uri)
			require.NoError(t, err, uri)
			require.NotNil(t, b, uri)
			assert.Equal(t, reflect.TypeOf(expected), b.BeanType, uri)
			assert.Equal(t, value, b.Values()["a"], uri)
		}
	}
}

func TestRegistry_RenderRoundTrip(t *testing.T) {
	patterns := []string{
		"/widget/{id}/{$event}",
		"/dept/{dept}/emp/{emp}.action",
		"/a/{x}-{y}/z",
	}
	values := map[string]string{"id": "42", "$event": "save", "dept": "sales", "emp": "7", "x": "1", "y": "2"}

	for _, pattern := range patterns {
		t.Run(pattern, func(t *testing.T) {
			proto := MustParse(widgetType, pattern)
			rendered := proto.Render(values)

			live := Extract(proto, rendered)
			for _, p := range proto.Parameters() {
				assert.Equal(t, values[p.Name], live.Values()[p.Name], "parameter %s of %s", p.Name, rendered)
			}
		})
	}
}

func TestRegistry_ReRegisterReplaces(t *testing.T) {
	r := NewRegistry(nil)
	register(t, r, widgetBean{}, "/old/{id}")
	register(t, r, widgetBean{}, "/new/{id}")

	b, err := r.Match("/old/1")
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = r.Match("/new/1")
	require.NoError(t, err)
	assert.NotNil(t, b)
	assert.Len(t, r.Bindings(), 1)
}
