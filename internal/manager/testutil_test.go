package manager

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"promptd/internal/catalog"
	"promptd/internal/fetch"
	"promptd/internal/locator"
	"promptd/internal/runner"
	"promptd/internal/store"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func nativeDesc() catalog.Descriptor {
	return catalog.Descriptor{
		ID: "tiny", Name: "Tiny", Format: catalog.FormatNative, Repo: "org/tiny",
		PrimaryFile: "tiny.Q4.gguf", MinimumBytes: 16, Quantization: "Q4_K_M",
	}
}

func convDesc() catalog.Descriptor {
	return catalog.Descriptor{
		ID: "conv", Name: "Conv", Format: catalog.FormatConvertible, Repo: "org/conv",
		PrimaryFile: "model.safetensors", OutputFile: "conv.Q4.gguf",
		AuxiliaryFiles: []string{"config.json"}, MinimumBytes: 16, SourceMinimumBytes: 16,
		Quantization: "Q4_K_M",
	}
}

func writeArtifact(p string, n int) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, []byte(strings.Repeat("x", n)), 0o644)
}

func writeN(t *testing.T, p string, n int) {
	t.Helper()
	if err := writeArtifact(p, n); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
}

// fakeFetcher writes the output artifact directly unless told otherwise.
type fakeFetcher struct {
	st *store.Store

	mu    sync.Mutex
	calls int
	err   error
	// size of the artifact written; 0 writes nothing.
	size int
	// block, when set, holds Fetch until it is closed or ctx is done.
	block chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, d catalog.Descriptor, onFileStarted fetch.FileStarted) error {
	f.mu.Lock()
	f.calls++
	err, size, block := f.err, f.size, f.block
	f.mu.Unlock()

	files := d.Files()
	for i, name := range files {
		if onFileStarted != nil {
			onFileStarted(name, i+1, len(files))
		}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}
	if size > 0 && !d.RequiresConversion() {
		return writeArtifact(f.st.Locate(d).Output, size)
	}
	return nil
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeConverter struct {
	st *store.Store

	mu    sync.Mutex
	calls int
	err   error
	size  int
}

func (c *fakeConverter) Convert(_ context.Context, d catalog.Descriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return c.err
	}
	if c.size > 0 {
		return writeArtifact(c.st.Locate(d).Output, c.size)
	}
	return nil
}

func (c *fakeConverter) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// fakeRunner replays chunks and counts StopServer calls.
type fakeRunner struct {
	mu       sync.Mutex
	chunks   []runner.Chunk
	requests []runner.Request
	stops    int
	// hold, when set, keeps each stream open until closed.
	hold chan struct{}
}

func (r *fakeRunner) Stream(ctx context.Context, req runner.Request) *runner.Stream {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	chunks := append([]runner.Chunk(nil), r.chunks...)
	hold := r.hold
	r.mu.Unlock()
	return runner.NewStream(ctx, func(ctx context.Context, emit runner.Emit) {
		for _, c := range chunks {
			if !emit(c) {
				return
			}
		}
		if hold != nil {
			select {
			case <-hold:
			case <-ctx.Done():
			}
		}
	})
}

func (r *fakeRunner) StopServer() error {
	r.mu.Lock()
	r.stops++
	r.mu.Unlock()
	return nil
}

func (r *fakeRunner) Info() runner.ServerInfo { return runner.ServerInfo{} }

func (r *fakeRunner) Stops() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}

func (r *fakeRunner) Requests() []runner.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]runner.Request(nil), r.requests...)
}

type fakeBins map[locator.Role]string

func (b fakeBins) Resolve(role locator.Role) (string, bool) {
	p, ok := b[role]
	return p, ok
}

type harness struct {
	m    *Manager
	st   *store.Store
	f    *fakeFetcher
	c    *fakeConverter
	r    *fakeRunner
	pub  *MemoryPublisher
	bins fakeBins
}

func newHarness(t *testing.T, mutate func(*ManagerConfig)) *harness {
	t.Helper()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	cat, err := catalog.New(nativeDesc(), convDesc())
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	h := &harness{
		st:   st,
		f:    &fakeFetcher{st: st, size: 64},
		c:    &fakeConverter{st: st, size: 64},
		r:    &fakeRunner{chunks: []runner.Chunk{{Text: "Hello"}, {Text: " World"}}},
		pub:  NewMemoryPublisher(),
		bins: fakeBins{locator.RoleServer: "/usr/bin/llama-server", locator.RoleCLI: "/usr/bin/llama-cli"},
	}
	cfg := ManagerConfig{
		Catalog:     cat,
		Store:       st,
		Fetcher:     h.f,
		Converter:   h.c,
		Runner:      h.r,
		Locator:     h.bins,
		Strategy:    runner.StrategyServer,
		IdleTimeout: time.Hour,
		Publisher:   h.pub,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	m, err := NewWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	h.m = m
	return h
}

// makeReady drops a complete artifact for d and marks it ready.
func (h *harness) makeReady(t *testing.T, d catalog.Descriptor) {
	t.Helper()
	writeN(t, h.st.Locate(d).Output, 64)
	h.m.mu.Lock()
	e := h.m.entries[d.ID]
	h.m.setStateLocked(e, StateReady, statusReady, "")
	h.m.mu.Unlock()
}

// waitState polls until id reaches want.
func waitState(t *testing.T, m *Manager, id string, want State) Entry {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		e, _ := m.Entry(id)
		if e.State == want {
			return e
		}
		if time.Now().After(deadline) {
			t.Fatalf("%s: state %s (status %q, err %q), want %s", id, e.State, e.Status, e.LastError, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func drain(s *runner.Stream) (texts []string, errChunk *runner.Chunk) {
	for c := range s.C() {
		if c.Err != nil {
			c := c
			errChunk = &c
			continue
		}
		texts = append(texts, c.Text)
	}
	return texts, errChunk
}
