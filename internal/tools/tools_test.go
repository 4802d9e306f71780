package tools

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serpBody = `{
  "answer_box": {"answer": "Zillow Research publishes home value indices."},
  "organic_results": [
    {"position": 1, "title": "Zillow Housing Data", "link": "https://www.zillow.com/research/data/", "snippet": "ZHVI and rent indices."},
    {"position": 2, "title": "Housing Prices - Kaggle", "link": "https://www.kaggle.com/datasets/housing", "snippet": ""},
    {"position": 3, "title": "Third", "link": "https://example.com/3", "snippet": "x"}
  ]
}`

func newSerpServer(t *testing.T, status int, body string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "google", r.URL.Query().Get("engine"))
		assert.Equal(t, "serp-key", r.URL.Query().Get("api_key"))
		assert.NotEmpty(t, r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSerpAPI_Call(t *testing.T) {
	t.Run("Should expose the tool name and description", func(t *testing.T) {
		s := NewSerpAPI(SerpAPIConfig{})

		assert.Equal(t, "serpapi_search", s.Name())
		assert.Contains(t, s.Description(), "search the web for datasets")
	})

	t.Run("Should render answer box and organic results as text", func(t *testing.T) {
		var calls atomic.Int32
		srv := newSerpServer(t, http.StatusOK, serpBody, &calls)
		s := NewSerpAPI(SerpAPIConfig{APIKey: "serp-key", Endpoint: srv.URL, NumResults: 2})

		out, err := s.Call(context.Background(), "housing prices dataset")

		require.NoError(t, err)
		assert.Equal(t, "Answer: Zillow Research publishes home value indices.\n"+
			"1. Zillow Housing Data\n   https://www.zillow.com/research/data/\n   ZHVI and rent indices.\n"+
			"2. Housing Prices - Kaggle\n   https://www.kaggle.com/datasets/housing", out)
	})

	t.Run("Should serve repeated queries from the cache", func(t *testing.T) {
		var calls atomic.Int32
		srv := newSerpServer(t, http.StatusOK, serpBody, &calls)
		s := NewSerpAPI(SerpAPIConfig{
			APIKey: "serp-key", Endpoint: srv.URL, CacheSize: 8, CacheTTL: time.Minute,
		})

		first, err := s.Call(context.Background(), "Housing prices")
		require.NoError(t, err)
		second, err := s.Call(context.Background(), "  housing PRICES ")
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("Should propagate provider errors", func(t *testing.T) {
		var calls atomic.Int32
		srv := newSerpServer(t, http.StatusUnauthorized, `{"error":"Invalid API key."}`, &calls)
		s := NewSerpAPI(SerpAPIConfig{APIKey: "serp-key", Endpoint: srv.URL})

		_, err := s.Call(context.Background(), "housing")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "Invalid API key.")
		assert.Contains(t, err.Error(), "401")
	})

	t.Run("Should report an empty result set as text", func(t *testing.T) {
		var calls atomic.Int32
		srv := newSerpServer(t, http.StatusOK, `{"error":"Google hasn't returned any results for this query."}`, &calls)
		s := NewSerpAPI(SerpAPIConfig{APIKey: "serp-key", Endpoint: srv.URL})

		out, err := s.Call(context.Background(), "zzqqxx dataset")

		require.NoError(t, err)
		assert.Equal(t, noResults, out)
	})

	t.Run("Should reject an empty query without a request", func(t *testing.T) {
		var calls atomic.Int32
		srv := newSerpServer(t, http.StatusOK, serpBody, &calls)
		s := NewSerpAPI(SerpAPIConfig{APIKey: "serp-key", Endpoint: srv.URL})

		out, err := s.Call(context.Background(), "   ")

		require.NoError(t, err)
		assert.Equal(t, emptyQuery, out)
		assert.Zero(t, calls.Load())
	})
}

func TestPageReader_Call(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/dataset", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>County Prices</title></head><body><p>Median prices by county, CSV, 2010-2024.</p></body></html>`))
	})
	mux.HandleFunc("/data.csv", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(strings.Repeat("a", 400)))
	})
	mux.HandleFunc("/archive.zip", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write([]byte("PK"))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/huge", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(strings.Repeat("b", 5000)))
	})
	mux.HandleFunc("/hop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dataset", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	reader := NewPageReader(PageReaderConfig{MaxBytes: 4096, MaxChars: 300, AllowPrivateNetworks: true})

	t.Run("Should return the title and text of an HTML page", func(t *testing.T) {
		out, err := reader.Call(context.Background(), srv.URL+"/dataset")

		require.NoError(t, err)
		assert.Contains(t, out, "Title: County Prices")
		assert.Contains(t, out, "Median prices by county, CSV, 2010-2024.")
	})

	t.Run("Should truncate long documents", func(t *testing.T) {
		out, err := reader.Call(context.Background(), `"`+srv.URL+`/data.csv"`)

		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(out, "[truncated]"))
	})

	t.Run("Should describe binary documents instead of reading them", func(t *testing.T) {
		out, err := reader.Call(context.Background(), srv.URL+"/archive.zip")

		require.NoError(t, err)
		assert.Contains(t, out, "application/zip")
	})

	t.Run("Should report error statuses as text", func(t *testing.T) {
		out, err := reader.Call(context.Background(), srv.URL+"/missing")

		require.NoError(t, err)
		assert.Equal(t, "fetch "+srv.URL+"/missing: status 404", out)
	})

	t.Run("Should report oversized documents as text", func(t *testing.T) {
		out, err := reader.Call(context.Background(), srv.URL+"/huge")

		require.NoError(t, err)
		assert.Contains(t, out, "more than 4096 bytes")
	})

	t.Run("Should follow redirects", func(t *testing.T) {
		out, err := reader.Call(context.Background(), srv.URL+"/hop")

		require.NoError(t, err)
		assert.Contains(t, out, "Title: County Prices")
	})

	t.Run("Should report non-URL input as text", func(t *testing.T) {
		out, err := reader.Call(context.Background(), "kaggle housing")

		require.NoError(t, err)
		assert.Contains(t, out, ErrInvalidURL.Error())
	})

	t.Run("Should return transport failures as errors", func(t *testing.T) {
		dead := httptest.NewServer(http.NotFoundHandler())
		url := dead.URL
		dead.Close()

		_, err := reader.Call(context.Background(), url)

		require.Error(t, err)
	})
}

func TestPageReader_PublicAddressesOnly(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("internal"))
	}))
	t.Cleanup(srv.Close)
	reader := NewPageReader(PageReaderConfig{})

	t.Run("Should refuse loopback addresses", func(t *testing.T) {
		out, err := reader.Call(context.Background(), srv.URL+"/admin")

		require.NoError(t, err)
		assert.Contains(t, out, ErrBlockedAddress.Error())
		assert.NotContains(t, out, "internal")
		assert.Zero(t, hits.Load())
	})

	t.Run("Should refuse loopback names", func(t *testing.T) {
		u := strings.Replace(srv.URL, "127.0.0.1", "localhost", 1)

		out, err := reader.Call(context.Background(), u)

		require.NoError(t, err)
		assert.Contains(t, out, ErrBlockedAddress.Error())
		assert.Zero(t, hits.Load())
	})

	t.Run("Should classify addresses", func(t *testing.T) {
		for _, addr := range []string{"127.0.0.1", "10.1.2.3", "172.16.0.1", "192.168.1.1", "169.254.169.254", "100.64.0.1", "0.0.0.0", "::1", "fe80::1", "fc00::1", "224.0.0.1"} {
			assert.False(t, isPublicIP(net.ParseIP(addr)), addr)
		}
		for _, addr := range []string{"8.8.8.8", "151.101.1.69", "2606:4700:4700::1111"} {
			assert.True(t, isPublicIP(net.ParseIP(addr)), addr)
		}
	})
}

func TestRegistry(t *testing.T) {
	search := NewSerpAPI(SerpAPIConfig{})
	reader := NewPageReader(PageReaderConfig{})

	t.Run("Should keep registration order", func(t *testing.T) {
		r, err := NewRegistry(search, reader)

		require.NoError(t, err)
		assert.Equal(t, []string{SerpAPIName, PageReaderName}, r.Names())
		got, ok := r.Get(PageReaderName)
		require.True(t, ok)
		assert.Equal(t, reader, got)
		assert.Equal(t, 2, r.Len())
	})

	t.Run("Should reject duplicate names", func(t *testing.T) {
		_, err := NewRegistry(search, NewSerpAPI(SerpAPIConfig{}))

		assert.ErrorContains(t, err, "already registered")
	})
}
