package db

import (
	"context"
	"errors"

	"github.com/williammiras/dash/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

// HistoryStore keeps conversation history per session.
type HistoryStore interface {
	GetSession(ctx context.Context, id string) (*models.ChatSession, error)
	SaveSession(ctx context.Context, session models.ChatSession) error
	// AppendTurns atomically adds turns to a session, creating it when missing,
	// and trims it to the maxTurns most recent turns.
	AppendTurns(ctx context.Context, id, model string, maxTurns int, turns ...models.Turn) error
	DeleteSession(ctx context.Context, id string) error
	Close() error
}

// Archive stores answered queries for similarity lookup.
type Archive interface {
	AddRecommendation(ctx context.Context, rec models.Recommendation) error
	SearchRecommendations(ctx context.Context, queryVector []float32, limit int) ([]models.Recommendation, error)
}
