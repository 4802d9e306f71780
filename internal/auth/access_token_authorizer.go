package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"github.com/williammiras/dash/internal/models"
)

// TokenSource lists the access tokens that are currently valid.
type TokenSource interface {
	GetAccessTokens(ctx context.Context) ([]models.AccessToken, error)
}

// StaticTokens never expire.
type StaticTokens []string

func (s StaticTokens) GetAccessTokens(context.Context) ([]models.AccessToken, error) {
	tokens := make([]models.AccessToken, 0, len(s))
	for _, t := range s {
		if t == "" {
			continue
		}
		tokens = append(tokens, models.AccessToken{Token: t})
	}
	return tokens, nil
}

// Sources merges several token sources into one.
type Sources []TokenSource

func (s Sources) GetAccessTokens(ctx context.Context) ([]models.AccessToken, error) {
	var all []models.AccessToken
	for _, src := range s {
		tokens, err := src.GetAccessTokens(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, tokens...)
	}
	return all, nil
}

type AccessTokenAuthorizer struct {
	source  TokenSource
	refresh time.Duration
	now     func() time.Time

	mu           sync.Mutex
	accessTokens []models.AccessToken
	loadedAt     time.Time
}

// NewAccessTokenAuthorizer caches the source's tokens for refresh. Zero refresh loads them once.
func NewAccessTokenAuthorizer(source TokenSource, refresh time.Duration) *AccessTokenAuthorizer {
	return &AccessTokenAuthorizer{
		source:  source,
		refresh: refresh,
		now:     time.Now,
	}
}

func (a *AccessTokenAuthorizer) CheckToken(ctx context.Context, accessTokenValue string) (bool, error) {
	if accessTokenValue == "" {
		return false, nil
	}

	tokens, err := a.tokens(ctx)
	if err != nil {
		return false, err
	}

	now := a.now()
	for _, token := range tokens {
		if !token.Expiration.IsZero() && !token.Expiration.After(now) {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(token.Token), []byte(accessTokenValue)) == 1 {
			return true, nil
		}
	}

	return false, nil
}

func (a *AccessTokenAuthorizer) tokens(ctx context.Context) ([]models.AccessToken, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	stale := a.refresh > 0 && a.now().Sub(a.loadedAt) >= a.refresh
	if a.accessTokens == nil || stale {
		accessTokens, err := a.source.GetAccessTokens(ctx)
		if err != nil {
			return nil, fmt.Errorf("could not fetch access tokens: %w", err)
		}
		if accessTokens == nil {
			accessTokens = []models.AccessToken{}
		}
		a.accessTokens = accessTokens
		a.loadedAt = a.now()
	}

	return a.accessTokens, nil
}
