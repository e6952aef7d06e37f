package postgres

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/loykin/tempchan/internal/store"
)

// DB implements store.Store on PostgreSQL via the pgx stdlib driver.
type DB struct {
	db *sql.DB
}

func New(dsn string) (*DB, error) {
	d, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &DB{db: d}, nil
}

func (p *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS slots(
			slot_id TEXT PRIMARY KEY,
			group_id TEXT NOT NULL,
			preset_name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			last_empty_at TIMESTAMPTZ NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_slots_group ON slots(group_id);`,
	}
	for _, q := range stmts {
		if _, err := p.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (p *DB) Close() error { return p.db.Close() }

func (p *DB) Load(ctx context.Context) ([]store.Record, error) {
	rows, err := p.db.QueryContext(ctx, `
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

func (p *DB) Save(ctx context.Context, recs []store.Record) error {
	tx, err := p.db.BeginTx(ctx, nil)
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
			VALUES($1, $2, $3, $4, $5);`,
			r.SlotID, r.GroupID, r.PresetName, r.CreatedAt.UTC(), lastEmpty); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
