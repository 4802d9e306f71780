package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/williammiras/dash/internal/models"
	_ "modernc.org/sqlite"
)

type SQLiteDB struct {
	conn *sql.DB
}

func NewSQLiteDB(dataSourceName string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	// A single connection serialises writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	queries := []string{
		`PRAGMA busy_timeout = 5000;`,
		`CREATE TABLE IF NOT EXISTS sessions (
            id TEXT PRIMARY KEY,
            messages TEXT NOT NULL DEFAULT '[]',
            model TEXT NOT NULL DEFAULT '',
            updated_at TIMESTAMP NOT NULL
        );`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize sqlite schema: %w", err)
		}
	}

	return &SQLiteDB{conn: db}, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteDB) GetSession(ctx context.Context, id string) (*models.ChatSession, error) {
	if id == "" {
		return nil, errors.New("session ID cannot be empty")
	}
	return s.getSession(ctx, s.conn, id)
}

func (s *SQLiteDB) getSession(ctx context.Context, q queryRower, id string) (*models.ChatSession, error) {
	var (
		session  = models.ChatSession{ID: id}
		messages string
	)
	err := q.QueryRowContext(ctx, `SELECT messages, model, updated_at FROM sessions WHERE id = ?`, id).
		Scan(&messages, &session.Model, &session.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to retrieve session: %w", err)
	}
	if err := json.Unmarshal([]byte(messages), &session.Turns); err != nil {
		return nil, fmt.Errorf("failed to decode session messages: %w", err)
	}
	return &session, nil
}

func (s *SQLiteDB) SaveSession(ctx context.Context, session models.ChatSession) error {
	if session.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	return s.saveSession(ctx, s.conn, session)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteDB) saveSession(ctx context.Context, e execer, session models.ChatSession) error {
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
    INSERT INTO sessions (id, messages, model, updated_at) VALUES (?, ?, ?, ?)
    ON CONFLICT(id) DO UPDATE SET messages=excluded.messages, model=excluded.model, updated_at=excluded.updated_at
    `
	if _, err := e.ExecContext(ctx, query, session.ID, string(messages), session.Model, session.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *SQLiteDB) AppendTurns(ctx context.Context, id, model string, maxTurns int, turns ...models.Turn) error {
	if id == "" {
		return errors.New("session ID cannot be empty")
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	session, err := s.getSession(ctx, tx, id)
	if errors.Is(err, ErrSessionNotFound) {
		session, err = &models.ChatSession{ID: id}, nil
	}
	if err != nil {
		return err
	}
	session.Append(maxTurns, turns...)
	session.Model = model
	session.UpdatedAt = time.Now().UTC()

	if err := s.saveSession(ctx, tx, *session); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	return nil
}

func (s *SQLiteDB) DeleteSession(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *SQLiteDB) Close() error {
	return s.conn.Close()
}
