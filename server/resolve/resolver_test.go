package resolve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// redirectServer redirects /hop/N to /hop/N-1 and serves /hop/0
func redirectServer(t *testing.T, contentType string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var n int
		if _, err := fmt.Sscanf(r.URL.Path, "/hop/%d", &n); err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if n > 0 {
			http.Redirect(w, r, fmt.Sprintf("/hop/%d", n-1), http.StatusMovedPermanently)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPResolver_FollowsRedirects(t *testing.T) {
	srv := redirectServer(t, "text/html; charset=utf-8")
	r := NewHTTPResolver()
	final, err := r.Resolve(context.Background(), srv.URL+"/hop/3")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/hop/0", final)
}

func TestHTTPResolver_NoRedirect(t *testing.T) {
	srv := redirectServer(t, "text/html")
	r := NewHTTPResolver()
	final, err := r.Resolve(context.Background(), srv.URL+"/hop/0")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/hop/0", final)
}

func TestHTTPResolver_BoundedChain(t *testing.T) {
	srv := redirectServer(t, "text/html")
	r := NewHTTPResolver()
	r.MaxRedirects = 2
	_, err := r.Resolve(context.Background(), srv.URL+"/hop/5")
	assert.True(t, errors.Is(err, ErrTooManyRedirects), "%v", err)

	final, err := r.Resolve(context.Background(), srv.URL+"/hop/2")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/hop/0", final)
}

func TestHTTPResolver_RequireHTML(t *testing.T) {
	srv := redirectServer(t, "image/png")
	r := NewHTTPResolver()
	r.RequireHTML = true
	final, err := r.Resolve(context.Background(), srv.URL+"/hop/1")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/hop/1", final)
}

func TestHTTPResolver_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	r := NewHTTPResolver()
	r.Timeout = 50 * time.Millisecond
	_, err := r.Resolve(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestHTTPResolver_SendsHead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
	}))
	defer srv.Close()
	_, err := NewHTTPResolver().Resolve(context.Background(), srv.URL)
	assert.NoError(t, err)
}

func TestHTTPResolver_BadURL(t *testing.T) {
	_, err := NewHTTPResolver().Resolve(context.Background(), "http://[::1")
	assert.Error(t, err)
}
