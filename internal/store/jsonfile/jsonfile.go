package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/loykin/tempchan/internal/store"
)

// DB implements store.Store as a single JSON document on disk. Save writes
// to a temp file in the same directory and renames it over the target, so a
// crash mid-write leaves the previous valid document intact. An unreadable
// or corrupt document loads as the empty set; corruption is never fatal.
type DB struct {
	path string
}

type document struct {
	Slots []store.Record `json:"slots"`
}

func New(path string) (*DB, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty jsonfile path")
	}
	return &DB{path: p}, nil
}

func (d *DB) EnsureSchema(_ context.Context) error {
	dir := filepath.Dir(d.path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o750)
}

func (d *DB) Load(_ context.Context) ([]store.Record, error) {
	b, err := os.ReadFile(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		slog.Warn("slot document unreadable, starting empty", "path", d.path, "error", err)
		return nil, nil
	}
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		slog.Warn("slot document corrupt, starting empty", "path", d.path, "error", err)
		return nil, nil
	}
	return doc.Slots, nil
}

func (d *DB) Save(_ context.Context, recs []store.Record) error {
	doc := document{Slots: recs}
	if doc.Slots == nil {
		doc.Slots = []store.Record{}
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(d.path), filepath.Base(d.path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, d.path)
}

func (d *DB) Close() error { return nil }
