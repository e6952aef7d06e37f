package factory

import (
	"errors"
	"strings"

	"github.com/loykin/tempchan/internal/store"
	jf "github.com/loykin/tempchan/internal/store/jsonfile"
	pg "github.com/loykin/tempchan/internal/store/postgres"
	sq "github.com/loykin/tempchan/internal/store/sqlite"
)

// NewFromDSN selects a store implementation based on DSN.
// Supported:
//   - jsonfile: "jsonfile://<path>" or a bare path ending in .json
//   - sqlite:   "sqlite://<path>" or any other bare filepath
//   - postgres: DSN starting with "postgres://" or "postgresql://"
func NewFromDSN(dsn string) (store.Store, error) {
	d := strings.TrimSpace(dsn)
	ld := strings.ToLower(d)
	if ld == "" {
		return nil, errors.New("empty DSN")
	}
	if strings.HasPrefix(ld, "postgres://") || strings.HasPrefix(ld, "postgresql://") {
		return pg.New(d)
	}
	if strings.HasPrefix(ld, "jsonfile://") {
		return jf.New(strings.TrimPrefix(d, "jsonfile://"))
	}
	if strings.HasPrefix(ld, "sqlite://") {
		return sq.New(strings.TrimPrefix(d, "sqlite://"))
	}
	if strings.HasSuffix(ld, ".json") {
		return jf.New(d)
	}
	// default to sqlite path
	return sq.New(d)
}
