package adapters

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/chi/v5"
	"github.com/gofiber/fiber/v2"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stripes-go/stripes/pkg/stripes"
	"github.com/stripes-go/stripes/pkg/stripes/action"
	"github.com/stripes-go/stripes/pkg/stripes/controller"
)

type greetAction struct {
	action.BaseAction
	Name string
}

func newDispatcher(t *testing.T) *stripes.Dispatcher {
	t.Helper()
	registry := controller.NewRegistry(nil)
	require.NoError(t, registry.Register(&action.Descriptor{
		Name:    "greet",
		Binding: "/greet/{name}",
		New:     func() action.ActionBean { return &greetAction{} },
		Handlers: []action.Handler{
			action.Handle("hello", func(a *greetAction) (action.Resolution, error) {
				return action.OK(map[string]string{"hello": a.Name}), nil
			}).AsDefault(),
		},
	}))
	return stripes.NewDispatcher(registry)
}

func decode(t *testing.T, resp *http.Response) map[string]string {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

type mounted struct {
	router Router
	serve  func(*http.Request) (*http.Response, error)
}

func TestMountBindings(t *testing.T) {
	gin.SetMode(gin.TestMode)
	d := newDispatcher(t)

	echoAdapter := NewEchoAdapter(echo.New())
	ginAdapter := NewDefaultGinAdapter()
	chiAdapter := NewChiAdapter(chi.NewRouter())
	fiberAdapter := NewFiberAdapter(fiber.New())

	routers := []mounted{
		{echoAdapter, recorderServe(echoAdapter.Engine())},
		{ginAdapter, recorderServe(ginAdapter.GetEngine())},
		{chiAdapter, recorderServe(chiAdapter.Router())},
		{fiberAdapter, func(r *http.Request) (*http.Response, error) { return fiberAdapter.App().Test(r) }},
	}

	for _, tc := range routers {
		t.Run(tc.router.Name(), func(t *testing.T) {
			prefixes := MountBindings(tc.router, d.Beans(), d)
			assert.Equal(t, []string{"/greet"}, prefixes)

			resp, err := tc.serve(httptest.NewRequest(http.MethodGet, "/greet/ada", nil))
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, map[string]string{"hello": "ada"}, decode(t, resp))

			resp, err = tc.serve(httptest.NewRequest(http.MethodPost, "/greet?name=bob", nil))
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, map[string]string{"hello": "bob"}, decode(t, resp))
		})
	}
}

func TestMountRoot(t *testing.T) {
	d := newDispatcher(t)
	a := NewDefaultChiAdapter()
	a.Mount("/", d)

	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/greet/cy", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouteBase(t *testing.T) {
	tests := map[string]string{
		"/":         "",
		"":          "",
		"/greet":    "/greet",
		"/greet/":   "/greet",
		"api/beans": "/api/beans",
	}
	for prefix, want := range tests {
		assert.Equal(t, want, routeBase(prefix), prefix)
	}
}

func recorderServe(h http.Handler) func(*http.Request) (*http.Response, error) {
	return func(r *http.Request) (*http.Response, error) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec.Result(), nil
	}
}
