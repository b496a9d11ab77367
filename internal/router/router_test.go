package router

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/rawhttp/internal/request"
	"github.com/Brownie44l1/rawhttp/internal/response"
)

func mustRequest(t *testing.T, method request.Method, path string) *request.Request {
	t.Helper()
	req, err := request.Parse([]byte(fmt.Sprintf("%s %s HTTP/1.1\r\n\r\n", method, path)))
	require.NoError(t, err)
	return req
}

func named(name string, calls *[]string) Handler {
	return func(captures []string, req *request.Request, res *response.Response) error {
		*calls = append(*calls, name)
		res.Text(response.StatusOK, name)
		return nil
	}
}

func TestFirstMatchWins(t *testing.T) {
	var calls []string
	r := New()
	r.GET("/a", named("first", &calls))
	r.GET(".*", named("second", &calls))

	res := response.New()
	ok, err := r.Dispatch(mustRequest(t, request.GET, "/a"), res)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"first"}, calls)

	calls = nil
	ok, err = r.Dispatch(mustRequest(t, request.GET, "/b"), response.New())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"second"}, calls)
}

func TestMethodMustMatch(t *testing.T) {
	var calls []string
	r := New()
	r.GET("/about", named("about", &calls))

	ok, err := r.Dispatch(mustRequest(t, request.POST, "/about"), response.New())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, calls)
}

func TestMethodCheckedBeforePattern(t *testing.T) {
	var calls []string
	r := New()
	r.POST(".*", named("post-any", &calls))
	r.GET("/x", named("get-x", &calls))

	ok, err := r.Dispatch(mustRequest(t, request.GET, "/x"), response.New())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"get-x"}, calls)
}

func TestPatternsAreAnchored(t *testing.T) {
	r := New()
	r.GET("/a", func([]string, *request.Request, *response.Response) error { return nil })

	for _, path := range []string{"/a/b", "/ab", "x/a", "/a?x=1"} {
		_, _, ok := r.Match(request.GET, path)
		assert.False(t, ok, path)
	}
	_, _, ok := r.Match(request.GET, "/a")
	assert.True(t, ok)
}

func TestAlternationIsAnchoredAsAWhole(t *testing.T) {
	r := New()
	r.GET("/a|/b", func([]string, *request.Request, *response.Response) error { return nil })

	_, _, ok := r.Match(request.GET, "/b")
	assert.True(t, ok)
	_, _, ok = r.Match(request.GET, "/a/junk")
	assert.False(t, ok)
	_, _, ok = r.Match(request.GET, "junk/b")
	assert.False(t, ok)
}

func TestCapturesPassedInOrder(t *testing.T) {
	var got []string
	r := New()
	r.GET(`/users/(\d+)/posts/(\w+)`, func(captures []string, req *request.Request, res *response.Response) error {
		got = captures
		return nil
	})

	ok, err := r.Dispatch(mustRequest(t, request.GET, "/users/42/posts/intro"), response.New())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"42", "intro"}, got)
}

func TestNoCapturesIsEmpty(t *testing.T) {
	r := New()
	r.GET("/", func([]string, *request.Request, *response.Response) error { return nil })

	_, captures, ok := r.Match(request.GET, "/")
	assert.True(t, ok)
	assert.Empty(t, captures)
}

func TestHandlerErrorReturned(t *testing.T) {
	boom := errors.New("boom")
	r := New()
	r.PUT("/fail", func([]string, *request.Request, *response.Response) error { return boom })

	ok, err := r.Dispatch(mustRequest(t, request.PUT, "/fail"), response.New())
	assert.True(t, ok)
	assert.ErrorIs(t, err, boom)
}

func TestEmptyRouterMisses(t *testing.T) {
	ok, err := New().Dispatch(mustRequest(t, request.GET, "/"), response.New())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHandleErrors(t *testing.T) {
	r := New()
	noop := func([]string, *request.Request, *response.Response) error { return nil }

	assert.Error(t, r.Handle(request.GET, "(", noop))
	assert.Error(t, r.Handle(request.GET, "/x", nil))
	assert.Error(t, r.Handle(request.Method("BREW"), "/x", noop))
	assert.Panics(t, func() { r.DELETE("[", noop) })
	assert.Empty(t, r.Routes())
}

func TestFreeze(t *testing.T) {
	r := New()
	noop := func([]string, *request.Request, *response.Response) error { return nil }
	require.NoError(t, r.Handle(request.PATCH, "/p", noop))

	r.Freeze()
	assert.True(t, r.Frozen())
	assert.ErrorIs(t, r.Handle(request.GET, "/late", noop), ErrFrozen)
	assert.Len(t, r.Routes(), 1)
}

func TestMiddlewareOrder(t *testing.T) {
	var trace []string
	tag := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(c []string, req *request.Request, res *response.Response) error {
				trace = append(trace, name)
				return next(c, req, res)
			}
		}
	}

	r := New()
	r.GET("/before", func([]string, *request.Request, *response.Response) error {
		trace = append(trace, "before")
		return nil
	})
	r.Use(tag("outer"), tag("inner"))
	r.GET("/after", func([]string, *request.Request, *response.Response) error {
		trace = append(trace, "after")
		return nil
	})

	_, err := r.Dispatch(mustRequest(t, request.GET, "/after"), response.New())
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner", "after"}, trace)

	trace = nil
	_, err = r.Dispatch(mustRequest(t, request.GET, "/before"), response.New())
	require.NoError(t, err)
	assert.Equal(t, []string{"before"}, trace)
}

func TestRoutesCopy(t *testing.T) {
	r := New()
	r.GET(`/hello/(\w+)`, func([]string, *request.Request, *response.Response) error { return nil })
	r.POST("/echo", func([]string, *request.Request, *response.Response) error { return nil })

	routes := r.Routes()
	require.Len(t, routes, 2)
	assert.Equal(t, request.GET, routes[0].Method)
	assert.Equal(t, `/hello/(\w+)`, routes[0].Source())
	assert.Equal(t, request.POST, routes[1].Method)

	routes[0].Method = request.DELETE
	assert.Equal(t, request.GET, r.Routes()[0].Method)
}
