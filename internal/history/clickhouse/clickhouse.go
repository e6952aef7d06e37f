package clickhouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/loykin/tempchan/internal/history"
)

// Sink sends slot lifecycle events to ClickHouse using the official client.
type Sink struct {
	conn  driver.Conn
	table string
}

// New connects to ClickHouse. dsn is either a clickhouse:// URL or a bare
// host:port (default database and credentials).
func New(dsn, table string) (*Sink, error) {
	var opts *clickhouse.Options
	if strings.Contains(dsn, "://") {
		parsed, err := clickhouse.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse ClickHouse dsn: %w", err)
		}
		opts = parsed
	} else {
		opts = &clickhouse.Options{
			Addr: []string{dsn},
			Auth: clickhouse.Auth{
				Database: "default",
				Username: "default",
				Password: "",
			},
		}
	}
	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// Test the connection
	if err := conn.Ping(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &Sink{
		conn:  conn,
		table: table,
	}, nil
}

func (s *Sink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	query := fmt.Sprintf(`INSERT INTO %s (type, occurred_at, detail, slot_id, group_id, preset_name, created_at, last_empty_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, s.table)

	var lastEmpty interface{}
	if e.Record.LastEmptyAt != nil {
		lastEmpty = *e.Record.LastEmptyAt
	}
	err := s.conn.Exec(ctx, query,
		string(e.Type),
		e.OccurredAt,
		e.Detail,
		e.Record.SlotID,
		e.Record.GroupID,
		e.Record.PresetName,
		e.Record.CreatedAt,
		lastEmpty,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event into ClickHouse: %w", err)
	}
	return nil
}
