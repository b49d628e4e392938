package manager

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"promptd/internal/catalog"
	"promptd/internal/runner"
	"promptd/internal/store"
	"promptd/pkg/types"
)

// Manager tracks every catalog model and at most one active inference
// session. Create it with NewWithConfig.
type Manager struct {
	mu sync.Mutex

	catalog   *catalog.Catalog
	store     *store.Store
	fetcher   Fetcher
	converter Converter
	runner    Runner
	locator   Binaries

	strategy    runner.Strategy
	params      runner.Params
	idleTimeout time.Duration

	pubMu     sync.RWMutex
	publisher EventPublisher

	entries  map[string]*entry
	tasks    map[string]*task
	selected string
	active   string
	activeID atomic.Value
	inflight int

	idle    *time.Timer
	idleGen uint64

	baseCtx    context.Context
	baseCancel context.CancelFunc
	closed     bool
	startTime  time.Time

	downloadsTotal uint64
	evictionsTotal uint64
}

// Entries returns snapshots of every model in catalog order.
func (m *Manager) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, len(m.entries))
	for _, d := range m.catalog.List() {
		out = append(out, m.entries[d.ID].snapshot())
	}
	return out
}

// Entry returns the snapshot for id.
func (m *Manager) Entry(id string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return Entry{}, false
	}
	return e.snapshot(), true
}

// Selected returns the id requests are served with.
func (m *Manager) Selected() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selected
}

// Active returns the id of the model with a live session, or "".
func (m *Manager) Active() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Ready reports whether the selected model can serve completions.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	e := m.entries[m.selected]
	return e != nil && e.state == StateReady
}

// Params returns the default generation settings.
func (m *Manager) Params() runner.Params { return m.params }

// ModelsDir is the store root.
func (m *Manager) ModelsDir() string { return m.store.Root() }

// ListModels projects every entry to its wire form.
func (m *Manager) ListModels() []types.Model {
	entries := m.Entries()
	out := make([]types.Model, 0, len(entries))
	for _, e := range entries {
		out = append(out, m.toModel(e))
	}
	return out
}

// Model returns the wire form of id. When the artifact is ready its GGUF
// header is read as well.
func (m *Manager) Model(id string) (types.Model, error) {
	e, ok := m.Entry(id)
	if !ok {
		return types.Model{}, ErrModelNotFound(id)
	}
	mdl := m.toModel(e)
	if e.State == StateReady {
		info, err := m.store.Inspect(e.Descriptor)
		if err != nil {
			log.Debug().Err(err).Str("model", id).Msg("inspect artifact")
		} else {
			mdl.Artifact = &types.ArtifactInfo{
				Name:         info.Name,
				Architecture: info.Architecture,
				Parameters:   info.Parameters,
				FileType:     info.FileType,
			}
		}
	}
	return mdl, nil
}

func (m *Manager) toModel(e Entry) types.Model {
	d := e.Descriptor
	mdl := types.Model{
		ID:        d.ID,
		Name:      d.Name,
		Repo:      d.Repo,
		Format:    string(d.Format),
		Path:      m.store.Locate(d).Output,
		Quant:     d.Quantization,
		SizeBytes: d.SizeBytes,
		License:   d.License,
		State:     string(e.State),
		Status:    e.Status,
		Error:     e.LastError,
	}
	if d.SizeBytes > 0 {
		mdl.Size = d.SizeLabel()
	}
	return mdl
}

// Wait blocks until no download task is in flight for id.
func (m *Manager) Wait(ctx context.Context, id string) error {
	m.mu.Lock()
	if _, ok := m.entries[id]; !ok {
		m.mu.Unlock()
		return ErrModelNotFound(id)
	}
	t := m.tasks[id]
	m.mu.Unlock()
	if t == nil {
		return nil
	}
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels downloads, stops the idle timer and releases the session.
// It is safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.baseCancel()
	pending := make([]*task, 0, len(m.tasks))
	for _, t := range m.tasks {
		t.cancel()
		pending = append(pending, t)
	}
	m.cancelIdleLocked()
	m.setActiveLocked("")
	m.mu.Unlock()

	for _, t := range pending {
		<-t.done
	}
	return m.runner.StopServer()
}

// setStateLocked moves e to s with the given status line.
func (m *Manager) setStateLocked(e *entry, s State, status, lastErr string) {
	e.state = s
	e.status = status
	e.lastError = lastErr
	observeState(e.desc.ID, s)
}

func (m *Manager) setActiveLocked(id string) {
	m.active = id
	m.activeID.Store(id)
}
