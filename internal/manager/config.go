package manager

import (
	"context"
	"errors"
	"time"

	"promptd/internal/catalog"
	"promptd/internal/convert"
	"promptd/internal/fetch"
	"promptd/internal/locator"
	"promptd/internal/runner"
	"promptd/internal/store"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	DefaultIdleTimeout = 90 * time.Second
)

// Fetcher downloads the files of a descriptor into the store.
type Fetcher interface {
	Fetch(ctx context.Context, d catalog.Descriptor, onFileStarted fetch.FileStarted) error
}

// Converter turns a downloaded source checkpoint into a quantized GGUF.
type Converter interface {
	Convert(ctx context.Context, d catalog.Descriptor) error
}

// Runner produces completion streams and owns whatever session stays warm
// between them.
type Runner interface {
	Stream(ctx context.Context, req runner.Request) *runner.Stream
	StopServer() error
	Info() runner.ServerInfo
}

// Binaries resolves llama.cpp tools.
type Binaries interface {
	Resolve(role locator.Role) (string, bool)
}

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Catalog *catalog.Catalog
	Store   *store.Store
	// DefaultModel is selected at startup; empty means the first catalog entry.
	DefaultModel string

	Fetcher   Fetcher
	Converter Converter
	Runner    Runner
	Locator   Binaries

	Strategy runner.Strategy
	Params   runner.Params
	// IdleTimeout releases the session after this much inactivity.
	// Negative disables idle eviction.
	IdleTimeout time.Duration
	Publisher   EventPublisher
}

// NewWithConfig constructs a Manager from ManagerConfig, filling unset
// collaborators with the real implementations.
func NewWithConfig(cfg ManagerConfig) (*Manager, error) {
	if cfg.Catalog == nil || cfg.Catalog.Len() == 0 {
		return nil, errors.New("manager: empty catalog")
	}
	if cfg.Store == nil {
		return nil, errors.New("manager: store is required")
	}
	if cfg.Locator == nil {
		cfg.Locator = locator.New("")
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = fetch.New(cfg.Store)
	}
	if cfg.Converter == nil {
		tools, ok := cfg.Locator.(convert.Tools)
		if !ok {
			tools = locator.New("")
		}
		cfg.Converter = convert.New(cfg.Store, tools)
	}
	if cfg.Strategy == "" {
		if r, ok := cfg.Runner.(*runner.Runner); ok && r.Strategy != "" {
			cfg.Strategy = r.Strategy
		} else {
			cfg.Strategy = runner.StrategyServer
		}
	}
	if cfg.Runner == nil {
		cfg.Runner = runner.New(cfg.Strategy, nil)
	}
	if cfg.Params == (runner.Params{}) {
		cfg.Params = runner.DefaultParams()
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Publisher == nil {
		cfg.Publisher = noopPublisher{}
	}

	selected := cfg.DefaultModel
	if selected == "" {
		d, _ := cfg.Catalog.Default()
		selected = d.ID
	} else if _, ok := cfg.Catalog.Get(selected); !ok {
		return nil, ErrModelNotFound(selected)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		catalog:     cfg.Catalog,
		store:       cfg.Store,
		fetcher:     cfg.Fetcher,
		converter:   cfg.Converter,
		runner:      cfg.Runner,
		locator:     cfg.Locator,
		strategy:    cfg.Strategy,
		params:      cfg.Params,
		idleTimeout: cfg.IdleTimeout,
		publisher:   cfg.Publisher,
		entries:     make(map[string]*entry, cfg.Catalog.Len()),
		tasks:       make(map[string]*task),
		selected:    selected,
		baseCtx:     ctx,
		baseCancel:  cancel,
		startTime:   time.Now(),
	}
	for _, d := range cfg.Catalog.List() {
		e := &entry{desc: d}
		if cfg.Store.IsComplete(d) {
			e.state, e.status = StateReady, statusReady
		} else {
			e.state, e.status = StateNotDownloaded, statusNotDownloaded
		}
		m.entries[d.ID] = e
		observeState(d.ID, e.state)
	}
	if r, ok := cfg.Runner.(*runner.Runner); ok && r.Server != nil && r.Server.OnEvent == nil {
		r.Server.OnEvent = m.serverEvent
	}
	return m, nil
}

// serverEvent forwards llama-server lifecycle changes to the publisher. It
// runs both with and without m.mu held, so it reads the lock-free copy of
// the active id.
func (m *Manager) serverEvent(name string, fields map[string]any) {
	id, _ := m.activeID.Load().(string)
	m.publish(name, id, fields)
}
