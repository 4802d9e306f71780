package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/williammiras/dash/internal/config"
	"go.opentelemetry.io/otel"
)

func TestSetup(t *testing.T) {
	t.Run("Should do nothing when disabled", func(t *testing.T) {
		shutdown, err := Setup(context.Background(), config.TracingConfig{})

		require.NoError(t, err)
		assert.NoError(t, shutdown(context.Background()))
	})

	t.Run("Should require an endpoint when enabled", func(t *testing.T) {
		_, err := Setup(context.Background(), config.TracingConfig{Enabled: true})

		require.Error(t, err)
	})

	t.Run("Should export spans with the API key header", func(t *testing.T) {
		var (
			mu      sync.Mutex
			paths   []string
			apiKeys []string
		)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			paths = append(paths, r.URL.Path)
			apiKeys = append(apiKeys, r.Header.Get("x-api-key"))
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()
		previous := otel.GetTracerProvider()
		t.Cleanup(func() { otel.SetTracerProvider(previous) })

		shutdown, err := Setup(context.Background(), config.TracingConfig{
			Enabled:  true,
			Endpoint: srv.URL + "/v1/traces",
			APIKey:   "secret",
			Project:  "dash-test",
		})
		require.NoError(t, err)

		_, span := otel.Tracer("test").Start(context.Background(), "query")
		span.End()
		require.NoError(t, shutdown(context.Background()))

		mu.Lock()
		defer mu.Unlock()
		require.NotEmpty(t, paths)
		assert.Equal(t, "/v1/traces", paths[0])
		assert.Equal(t, "secret", apiKeys[0])
	})
}
