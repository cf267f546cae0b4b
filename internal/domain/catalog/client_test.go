package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchFixture = `{
  "info": {"page": 1, "pages": 3, "results": 52},
  "plugins": [
    {
      "slug": "shop-builder",
      "name": "Shop Builder",
      "version": "2.4.1",
      "author": "<a href=\"https://example.com\">Acme Plugins</a>",
      "short_description": "Build shops.",
      "rating": 92,
      "num_ratings": 2000,
      "active_installs": 5000000,
      "support_threads": 100,
      "support_threads_resolved": 85,
      "last_updated": "2026-07-30 8:50pm GMT",
      "added": "2014-03-01",
      "tested": "6.8",
      "requires": "5.8",
      "ratings": {"1": 40, "2": 20, "3": 100, "4": 340, "5": 1500}
    },
    {
      "slug": "cart-lite",
      "name": "Cart Lite",
      "version": "1.0",
      "author": "solo-dev",
      "rating": 80,
      "num_ratings": 12,
      "active_installs": 200000,
      "support_threads": 0,
      "support_threads_resolved": 0,
      "last_updated": "2025-01-15 9:00am GMT",
      "added": "2020-06-10",
      "tested": "6.4",
      "requires": "5.0",
      "ratings": {}
    }
  ]
}`

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{
		BaseURL:   srv.URL,
		Timeout:   2 * time.Second,
		UserAgent: "test",
	})
}

func TestClient_Search_ParsesRecords(t *testing.T) {
	t.Parallel()

	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "query_plugins", r.URL.Query().Get("action"))
		assert.Equal(t, "ecommerce", r.URL.Query().Get("request[search]"))
		assert.Equal(t, "1", r.URL.Query().Get("request[page]"))
		assert.Equal(t, "24", r.URL.Query().Get("request[per_page]"))
		assert.Equal(t, "shop", r.URL.Query().Get("request[tag]"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchFixture))
	})

	plugins, page, err := client.Search(context.Background(), "ecommerce", 1, 24, map[string]string{"tag": "shop"})
	require.NoError(t, err)
	require.Len(t, plugins, 2)

	assert.Equal(t, PageInfo{Page: 1, TotalPages: 3, TotalResults: 52}, page)

	first := plugins[0]
	assert.Equal(t, "shop-builder", first.Slug)
	assert.Equal(t, "Acme Plugins", first.Author)
	assert.InDelta(t, 4.6, first.Rating, 0.001) // 92/20
	assert.Equal(t, 5000000, first.ActiveInstalls)
	assert.Equal(t, 100, first.SupportThreadsTotal)
	assert.Equal(t, 85, first.SupportThreadsResolved)
	assert.Equal(t, 1500, first.RatingDistribution[5])
	assert.Equal(t, 2026, first.LastUpdated.Year())
	assert.Equal(t, "6.8", first.TestedUpTo)

	second := plugins[1]
	assert.Equal(t, "solo-dev", second.Author)
	assert.InDelta(t, 4.0, second.Rating, 0.001)
}

func TestClient_Search_SkipsInvalidRecords(t *testing.T) {
	t.Parallel()

	client := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"info":{"page":1,"pages":1,"results":2},
			"plugins":[{"slug":""},{"slug":"good-one","name":"Good One","rating":60}]}`))
	})

	plugins, _, err := client.Search(context.Background(), "x", 1, 10, nil)
	require.NoError(t, err)
	require.Len(t, plugins, 1)
	assert.Equal(t, "good-one", plugins[0].Slug)
}

func TestClient_Details_Success(t *testing.T) {
	t.Parallel()

	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "plugin_information", r.URL.Query().Get("action"))
		assert.Equal(t, "shop-builder", r.URL.Query().Get("request[slug]"))
		_, _ = w.Write([]byte(`{"slug":"shop-builder","name":"Shop Builder","rating":92,
			"ratings":{"5":10},"last_updated":"2026-07-30 8:50pm GMT"}`))
	})

	meta, err := client.Details(context.Background(), "shop-builder")
	require.NoError(t, err)
	assert.Equal(t, "Shop Builder", meta.Name)
	assert.Equal(t, 10, meta.RatingDistribution[5])
}

func TestClient_Details_NotFound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "404 status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
		},
		{
			name: "error payload",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"error":"Plugin not found."}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client := newTestServer(t, tt.handler)
			_, err := client.Details(context.Background(), "nope")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestClient_ErrorKinds(t *testing.T) {
	t.Parallel()

	t.Run("server error maps to ErrStatus", func(t *testing.T) {
		t.Parallel()
		client := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		_, _, err := client.Search(context.Background(), "x", 1, 10, nil)
		assert.ErrorIs(t, err, ErrStatus)
	})

	t.Run("rate limit maps to ErrRateLimited", func(t *testing.T) {
		t.Parallel()
		client := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
		_, _, err := client.Search(context.Background(), "x", 1, 10, nil)
		assert.ErrorIs(t, err, ErrRateLimited)
	})

	t.Run("bad json maps to ErrMalformed", func(t *testing.T) {
		t.Parallel()
		client := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"plugins": [truncated`))
		})
		_, _, err := client.Search(context.Background(), "x", 1, 10, nil)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("unreachable host maps to ErrConnection", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close() // now refuses connections
		client := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: time.Second})
		_, _, err := client.Search(context.Background(), "x", 1, 10, nil)
		assert.ErrorIs(t, err, ErrConnection)
	})
}

func TestClient_ContextCancellation(t *testing.T) {
	t.Parallel()

	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := client.Search(ctx, "x", 1, 10, nil)
	assert.ErrorIs(t, err, ErrConnection)
}
