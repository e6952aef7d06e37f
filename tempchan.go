package tempchan

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/loykin/tempchan/internal/allocator"
	"github.com/loykin/tempchan/internal/catalog"
	cfg "github.com/loykin/tempchan/internal/config"
	"github.com/loykin/tempchan/internal/history"
	chsink "github.com/loykin/tempchan/internal/history/clickhouse"
	"github.com/loykin/tempchan/internal/manager"
	"github.com/loykin/tempchan/internal/metrics"
	"github.com/loykin/tempchan/internal/pending"
	"github.com/loykin/tempchan/internal/platform"
	iapi "github.com/loykin/tempchan/internal/server"
	"github.com/loykin/tempchan/internal/slot"
	"github.com/loykin/tempchan/internal/store"
	"github.com/loykin/tempchan/internal/store/factory"
	"github.com/prometheus/client_golang/prometheus"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Slot = slot.Slot

type Policy = slot.Policy

type Group = catalog.Group

type Platform = platform.Platform

type OccupancyEvent = platform.OccupancyEvent

type Request = allocator.Request

type Store = store.Store

type HistorySink = history.Sink

type PendingRequest = pending.Request

type FileConfig = cfg.FileConfig

const (
	ModeEmptyGrace = slot.ModeEmptyGrace
	ModeTTL        = slot.ModeTTL

	PickAuto   = manager.PickAuto
	PickManual = manager.PickManual
)

// Manager is a thin facade over internal/manager.Manager.
// It provides a stable public API for embedding.
type Manager struct{ inner *manager.Manager }

// Config mirrors the manager's configuration for embedders.
type Config = manager.Config

// Option configures a Manager.
type Option = manager.Option

// WithHistorySinks configures lifecycle event sinks.
func WithHistorySinks(sinks ...HistorySink) Option { return manager.WithHistorySinks(sinks...) }

// New builds a manager from a group list, a platform adapter and a store.
func New(c Config, groups []Group, pf Platform, st Store, opts ...Option) (*Manager, error) {
	cat, err := catalog.New(groups)
	if err != nil {
		return nil, err
	}
	inner, err := manager.New(c, cat, pf, st, opts...)
	if err != nil {
		return nil, err
	}
	return &Manager{inner: inner}, nil
}

func (m *Manager) Start(ctx context.Context) error { return m.inner.Start(ctx) }
func (m *Manager) Shutdown()                       { m.inner.Shutdown() }

func (m *Manager) HandleOccupancy(ctx context.Context, ev OccupancyEvent) {
	m.inner.HandleOccupancy(ctx, ev)
}
func (m *Manager) Allocate(ctx context.Context, req Request) (Slot, error) {
	return m.inner.Allocate(ctx, req)
}
func (m *Manager) CompletePick(ctx context.Context, memberID, name string) (Slot, error) {
	return m.inner.CompletePick(ctx, memberID, name)
}
func (m *Manager) EvictIfEmpty(ctx context.Context, slotID string) error {
	return m.inner.EvictIfEmpty(ctx, slotID)
}
func (m *Manager) Slots(ctx context.Context) []Slot { return m.inner.Slots(ctx) }
func (m *Manager) Pending() []PendingRequest        { return m.inner.Pending() }

// RunPendingSweeper purges expired pick requests until ctx is done.
func (m *Manager) RunPendingSweeper(ctx context.Context, interval time.Duration) {
	m.inner.RunPendingSweeper(ctx, interval)
}

// LoadConfig reads and validates a TOML config file.
func LoadConfig(path string) (*FileConfig, error) { return cfg.Load(path) }

// NewStore builds a store from a DSN (jsonfile://, sqlite://, postgres://).
func NewStore(dsn string) (Store, error) { return factory.NewFromDSN(dsn) }

// NewHistorySink connects a ClickHouse history sink.
func NewHistorySink(dsn, table string) (HistorySink, error) { return chsink.New(dsn, table) }

// NewHTTPServer starts an HTTP server exposing the admin API using the given
// manager.
func NewHTTPServer(addr, basePath string, m *Manager) (*http.Server, error) {
	return iapi.NewServer(addr, basePath, m.inner)
}

// NewHTTPHandler returns the admin API as a mountable http.Handler for
// embedding in an existing server or framework.
func NewHTTPHandler(basePath string, m *Manager) http.Handler {
	return iapi.NewRouter(m.inner, basePath).Handler()
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the
// default registry. It returns any immediate listen error; otherwise it runs
// the server in the caller goroutine.
func ServeMetrics(addr string) error {
	http.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}

// NewFromConfig assembles a manager from a loaded config file: store from
// the DSN, optional ClickHouse sink, metrics registration. The platform
// adapter is the caller's; nil selects the in-memory fake (dry-run mode).
func NewFromConfig(fc *FileConfig, pf Platform) (*Manager, Store, error) {
	if pf == nil {
		pf = platform.NewFake()
	}
	st, err := factory.NewFromDSN(fc.Store.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	var opts []Option
	if fc.History.ClickHouseDSN != "" {
		sink, err := chsink.New(fc.History.ClickHouseDSN, fc.History.Table)
		if err != nil {
			_ = st.Close()
			return nil, nil, fmt.Errorf("connect history sink: %w", err)
		}
		opts = append(opts, WithHistorySinks(sink))
	}
	if fc.Metrics.Enabled {
		if err := RegisterMetricsDefault(); err != nil {
			_ = st.Close()
			return nil, nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	cat, err := fc.Catalog()
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	inner, err := manager.New(fc.ManagerConfig(), cat, pf, st, opts...)
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	return &Manager{inner: inner}, st, nil
}
