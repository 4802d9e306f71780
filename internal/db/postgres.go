package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/williammiras/dash/internal/models"
)

type PostgresDB struct {
	db *sql.DB
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		messages JSONB NOT NULL DEFAULT '[]'::jsonb,
		model TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS access_tokens (
		token TEXT PRIMARY KEY,
		expiration TIMESTAMPTZ NOT NULL
	)`,
}

var archiveSchema = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE TABLE IF NOT EXISTS recommendations (
		id BIGSERIAL PRIMARY KEY,
		query TEXT NOT NULL,
		result JSONB NOT NULL,
		vector vector NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// NewPostgresDB connects and creates the sessions and access token tables.
// withArchive also installs pgvector and the recommendations table.
func NewPostgresDB(connString string, withArchive bool) (*PostgresDB, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("unable to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	schema := postgresSchema
	if withArchive {
		schema = append(append([]string(nil), schema...), archiveSchema...)
	}
	for _, q := range schema {
		if _, err := db.ExecContext(ctx, q); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize postgres schema: %w", err)
		}
	}

	return &PostgresDB{db: db}, nil
}

func (pg *PostgresDB) AddRecommendation(ctx context.Context, rec models.Recommendation) error {
	if len(rec.Vec) == 0 {
		return errors.New("vector cannot be empty")
	}

	result, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("failed to encode recommendation: %w", err)
	}

	query := `
		INSERT INTO recommendations (query, result, vector)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	var insertedID int64
	err = pg.db.QueryRowContext(ctx, query, rec.Query, string(result), pgvector.NewVector(rec.Vec)).Scan(&insertedID)
	if err != nil {
		return fmt.Errorf("failed to insert recommendation: %w", err)
	}

	return nil
}

func (pg *PostgresDB) SearchRecommendations(ctx context.Context, queryVector []float32, limit int) ([]models.Recommendation, error) {
	if len(queryVector) == 0 {
		return nil, errors.New("query vector cannot be empty")
	}
	if limit <= 0 {
		return nil, errors.New("limit must be greater than zero")
	}

	query := `
		SELECT id, query, result, created_at
		FROM recommendations
		ORDER BY vector <-> $1
		LIMIT $2
	`

	rows, err := pg.db.QueryContext(ctx, query, pgvector.NewVector(queryVector), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search query: %w", err)
	}
	defer rows.Close()

	var recs []models.Recommendation
	for rows.Next() {
		var (
			rec    models.Recommendation
			result []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Query, &result, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		if err := json.Unmarshal(result, &rec.Result); err != nil {
			return nil, fmt.Errorf("failed to decode recommendation %d: %w", rec.ID, err)
		}
		recs = append(recs, rec)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("error iterating through recommendations: %w", rows.Err())
	}

	return recs, nil
}

func (pg *PostgresDB) GetSession(ctx context.Context, id string) (*models.ChatSession, error) {
	if id == "" {
		return nil, errors.New("session ID cannot be empty")
	}
	return getPostgresSession(ctx, pg.db, id, "")
}

func getPostgresSession(ctx context.Context, q queryRower, id, suffix string) (*models.ChatSession, error) {
	query := `
		SELECT id, messages, model, updated_at
		FROM sessions
		WHERE id = $1
	` + suffix

	var (
		session  models.ChatSession
		messages []byte
	)
	err := q.QueryRowContext(ctx, query, id).Scan(&session.ID, &messages, &session.Model, &session.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to retrieve session: %w", err)
	}
	if err := json.Unmarshal(messages, &session.Turns); err != nil {
		return nil, fmt.Errorf("failed to decode session messages: %w", err)
	}
	return &session, nil
}

func (pg *PostgresDB) SaveSession(ctx context.Context, session models.ChatSession) error {
	if session.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	return savePostgresSession(ctx, pg.db, session)
}

func savePostgresSession(ctx context.Context, e execer, session models.ChatSession) error {
	turns := session.Turns
	if turns == nil {
		turns = []models.Turn{}
	}
	messages, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("failed to encode session messages: %w", err)
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO sessions (id, messages, model, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET messages = EXCLUDED.messages,
		    model = EXCLUDED.model,
		    updated_at = EXCLUDED.updated_at
	`

	if _, err := e.ExecContext(ctx, query, session.ID, string(messages), session.Model, session.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (pg *PostgresDB) AppendTurns(ctx context.Context, id, model string, maxTurns int, turns ...models.Turn) error {
	if id == "" {
		return errors.New("session ID cannot be empty")
	}
	tx, err := pg.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Make sure the row exists so FOR UPDATE has something to lock.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, model) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`, id, model); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	session, err := getPostgresSession(ctx, tx, id, "FOR UPDATE")
	if err != nil {
		return err
	}
	session.Append(maxTurns, turns...)
	session.Model = model
	session.UpdatedAt = time.Now().UTC()

	if err := savePostgresSession(ctx, tx, *session); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	return nil
}

func (pg *PostgresDB) DeleteSession(ctx context.Context, id string) error {
	res, err := pg.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (pg *PostgresDB) GetAccessTokens(ctx context.Context) ([]models.AccessToken, error) {
	query := `
		SELECT token, expiration
		FROM access_tokens
		WHERE expiration > NOW();
	`

	rows, err := pg.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var accessTokens []models.AccessToken
	for rows.Next() {
		var accessToken models.AccessToken
		if err := rows.Scan(&accessToken.Token, &accessToken.Expiration); err != nil {
			return nil, fmt.Errorf("failed to scan access token: %w", err)
		}
		accessTokens = append(accessTokens, accessToken)
	}

	return accessTokens, rows.Err()
}

func (pg *PostgresDB) Close() error {
	return pg.db.Close()
}
