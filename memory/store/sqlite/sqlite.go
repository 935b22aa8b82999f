// Package sqlite implements the fact store on an embedded SQLite database
// (modernc.org/sqlite, no cgo), with a ristretto cache in front of the read
// path.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/ristretto"
	_ "modernc.org/sqlite"

	"github.com/mnemolabs/mnemo/core"
)

// Store persists user preferences and facts. Preferences upsert with
// last-write-wins per (user_id, key); facts are append-only rows.
type Store struct {
	db    *sql.DB
	cache *ristretto.Cache
}

// New opens (or creates) the fact database at path. Use ":memory:" for an
// ephemeral store in tests.
func New(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("%w: create db dir: %v", core.ErrStorageUnavailable, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", core.ErrStorageUnavailable, err)
	}
	// One shared connection avoids writer lock contention under concurrent
	// turns; SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache: %w", err)
	}

	s := &Store{db: db, cache: cache}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS preferences (
			user_id    TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, key)
		);`,
		`CREATE TABLE IF NOT EXISTS facts (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    TEXT NOT NULL,
			fact_type  TEXT NOT NULL,
			content    TEXT NOT NULL,
			source     TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_facts_user ON facts(user_id, created_at DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("%w: init schema: %v", core.ErrStorageUnavailable, err)
		}
	}
	return nil
}

func prefsKey(userID string) string { return "prefs:" + userID }
func factsKey(userID string) string { return "facts:" + userID }

// PutPreference inserts or overwrites a preference. The upsert makes
// concurrent writes to the same (user, key) last-write-wins.
func (s *Store) PutPreference(ctx context.Context, userID, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (user_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		userID, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%w: put preference: %v", core.ErrStorageUnavailable, err)
	}
	s.cache.Del(prefsKey(userID))
	return nil
}

// Preferences returns all preference keys and values for the user.
func (s *Store) Preferences(ctx context.Context, userID string) (map[string]string, error) {
	if cached, ok := s.cache.Get(prefsKey(userID)); ok {
		if prefs, ok := cached.(map[string]string); ok {
			return prefs, nil
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM preferences WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: query preferences: %v", core.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	prefs := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("%w: scan preference: %v", core.ErrStorageUnavailable, err)
		}
		prefs[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate preferences: %v", core.ErrStorageUnavailable, err)
	}

	s.cache.Set(prefsKey(userID), prefs, int64(len(prefs)+1))
	return prefs, nil
}

// AddFact appends a freeform fact about the user.
func (s *Store) AddFact(ctx context.Context, userID, factType, content, source string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO facts (user_id, fact_type, content, source, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		userID, factType, content, source, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%w: add fact: %v", core.ErrStorageUnavailable, err)
	}
	s.cache.Del(factsKey(userID))
	return nil
}

// Facts returns the user's most recent facts, newest first.
func (s *Store) Facts(ctx context.Context, userID string, limit int) ([]core.UserFact, error) {
	if limit <= 0 {
		limit = 50
	}

	if cached, ok := s.cache.Get(factsKey(userID)); ok {
		if facts, ok := cached.([]core.UserFact); ok && len(facts) >= limit {
			return facts[:limit], nil
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fact_type, content, source, created_at
		FROM facts WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: query facts: %v", core.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var facts []core.UserFact
	for rows.Next() {
		f := core.UserFact{UserID: userID}
		if err := rows.Scan(&f.ID, &f.FactType, &f.Content, &f.Source, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan fact: %v", core.ErrStorageUnavailable, err)
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate facts: %v", core.ErrStorageUnavailable, err)
	}

	s.cache.Set(factsKey(userID), facts, int64(len(facts)+1))
	return facts, nil
}

// Clear removes all preferences and facts for the user in one transaction.
func (s *Store) Clear(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin clear: %v", core.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM preferences WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("%w: clear preferences: %v", core.ErrStorageUnavailable, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM facts WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("%w: clear facts: %v", core.ErrStorageUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit clear: %v", core.ErrStorageUnavailable, err)
	}

	s.cache.Del(prefsKey(userID))
	s.cache.Del(factsKey(userID))
	return nil
}

// Close releases the database and cache.
func (s *Store) Close() error {
	s.cache.Close()
	return s.db.Close()
}
