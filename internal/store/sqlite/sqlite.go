package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/loykin/tempchan/internal/store"
)

// DB implements store.Store for SQLite (modernc.org/sqlite driver, CGO-free).
// DSN is a filesystem path. Use ":memory:" for in-memory.
type DB struct {
	db *sql.DB
}

func New(path string) (*DB, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// busy timeout helps with short concurrent locks
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	return &DB{db: d}, nil
}

func (s *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS slots(
			slot_id TEXT PRIMARY KEY,
			group_id TEXT NOT NULL,
			preset_name TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			last_empty_at TIMESTAMP NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_slots_group ON slots(group_id);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) Close() error { return s.db.Close() }

func (s *DB) Load(ctx context.Context) ([]store.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT slot_id, group_id, preset_name, created_at, last_empty_at
		FROM slots ORDER BY created_at;`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := make([]store.Record, 0)
	for rows.Next() {
		var r store.Record
		var lastEmpty sql.NullTime
		if err := rows.Scan(&r.SlotID, &r.GroupID, &r.PresetName, &r.CreatedAt, &lastEmpty); err != nil {
			return nil, err
		}
		if lastEmpty.Valid {
			t := lastEmpty.Time.UTC()
			r.LastEmptyAt = &t
		}
		r.CreatedAt = r.CreatedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Save rewrites the whole table in one transaction, matching the
// rewrite-wholesale contract of the document store.
func (s *DB) Save(ctx context.Context, recs []store.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM slots;`); err != nil {
		_ = tx.Rollback()
		return err
	}
	for _, r := range recs {
		var lastEmpty interface{}
		if r.LastEmptyAt != nil {
			lastEmpty = r.LastEmptyAt.UTC()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO slots(slot_id, group_id, preset_name, created_at, last_empty_at)
			VALUES(?, ?, ?, ?, ?);`,
			r.SlotID, r.GroupID, r.PresetName, r.CreatedAt.UTC(), lastEmpty); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
