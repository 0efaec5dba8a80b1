package sessionstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"pagerduty-tools/internal/components/chrono"

	_ "embed"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

// SQLite stores sessions in a sqlite database, one row per host.
type SQLite struct {
	db    *sql.DB
	clock chrono.API
}

// OpenSQLite opens (creating if needed) the database at path, `:memory:` is allowed.
func OpenSQLite(ctx context.Context, path string, clock chrono.API) (SQLite, error) {
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return SQLite{}, err
	}
	// an in memory database only lives as long as its connection
	database.SetMaxOpenConns(1)

	_, err = database.ExecContext(ctx, Schema)
	if err != nil {
		database.Close()
		return SQLite{}, fmt.Errorf("apply schema: %w", err)
	}
	return SQLite{db: database, clock: clock}, nil
}

func (s SQLite) Close() error {
	return s.db.Close()
}

func (s SQLite) Load(ctx context.Context, host string) ([]*http.Cookie, error) {
	var payload string
	err := s.db.QueryRowContext(
		ctx,
		"select payload from session where host = ?",
		host,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var stored session
	err = json.Unmarshal([]byte(payload), &stored)
	if err != nil {
		return nil, fmt.Errorf("decode session for %s: %w", host, err)
	}
	return stored.httpCookies(), nil
}

func (s SQLite) Save(ctx context.Context, host string, cookies []*http.Cookie) error {
	stored := toSession(cookies, s.clock.Now())
	payload, err := json.Marshal(stored)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(
		ctx,
		`insert into session(host, payload, updated_at) values (?, ?, ?)
		on conflict(host) do update set payload = excluded.payload, updated_at = excluded.updated_at`,
		host, string(payload), stored.UpdatedAt.Unix(),
	)
	return err
}

func (s SQLite) Clear(ctx context.Context, host string) error {
	_, err := s.db.ExecContext(ctx, "delete from session where host = ?", host)
	return err
}
