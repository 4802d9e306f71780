package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/williammiras/dash/internal/models"
)

type countingSource struct {
	tokens []models.AccessToken
	err    error
	calls  int
}

func (c *countingSource) GetAccessTokens(context.Context) ([]models.AccessToken, error) {
	c.calls++
	return c.tokens, c.err
}

func TestAccessTokenAuthorizer_CheckToken(t *testing.T) {
	ctx := context.Background()

	t.Run("Should accept a configured static token", func(t *testing.T) {
		a := NewAccessTokenAuthorizer(StaticTokens{"secret", ""}, 0)

		ok, err := a.CheckToken(ctx, "secret")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = a.CheckToken(ctx, "other")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Should never accept an empty token", func(t *testing.T) {
		a := NewAccessTokenAuthorizer(StaticTokens{""}, 0)

		ok, err := a.CheckToken(ctx, "")

		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Should skip expired tokens", func(t *testing.T) {
		now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		src := &countingSource{tokens: []models.AccessToken{
			{Token: "old", Expiration: now.Add(-time.Minute)},
			{Token: "new", Expiration: now.Add(time.Hour)},
		}}
		a := NewAccessTokenAuthorizer(src, 0)
		a.now = func() time.Time { return now }

		ok, err := a.CheckToken(ctx, "old")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = a.CheckToken(ctx, "new")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Should cache tokens until the refresh interval passes", func(t *testing.T) {
		now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		src := &countingSource{tokens: []models.AccessToken{{Token: "t"}}}
		a := NewAccessTokenAuthorizer(src, time.Minute)
		a.now = func() time.Time { return now }

		_, _ = a.CheckToken(ctx, "t")
		_, _ = a.CheckToken(ctx, "t")
		assert.Equal(t, 1, src.calls)

		now = now.Add(2 * time.Minute)
		_, _ = a.CheckToken(ctx, "t")
		assert.Equal(t, 2, src.calls)
	})

	t.Run("Should wrap source errors", func(t *testing.T) {
		a := NewAccessTokenAuthorizer(&countingSource{err: errors.New("db down")}, 0)

		_, err := a.CheckToken(ctx, "t")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "db down")
	})

	t.Run("Should merge several sources", func(t *testing.T) {
		a := NewAccessTokenAuthorizer(Sources{
			StaticTokens{"a"},
			&countingSource{tokens: []models.AccessToken{{Token: "b"}}},
		}, 0)

		ok, err := a.CheckToken(ctx, "b")

		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/private", Middleware(NewAccessTokenAuthorizer(StaticTokens{"secret"}, 0)), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"Should allow a valid bearer token", "Bearer secret", http.StatusOK},
		{"Should accept a lowercase scheme", "bearer secret", http.StatusOK},
		{"Should reject a wrong token", "Bearer nope", http.StatusUnauthorized},
		{"Should reject a missing header", "", http.StatusUnauthorized},
		{"Should reject another scheme", "Basic secret", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tc.status, w.Code)
		})
	}
}
