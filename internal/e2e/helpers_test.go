package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"promptd/internal/catalog"
	"promptd/internal/fetch"
	"promptd/internal/httpapi"
	"promptd/internal/locator"
	"promptd/internal/manager"
	"promptd/internal/runner"
	"promptd/internal/store"
	"promptd/pkg/types"
)

// stack is a fully wired promptd behind an httptest server.
type stack struct {
	srv *httptest.Server
	mgr *manager.Manager
	dir string
}

type stackConfig struct {
	descs []catalog.Descriptor
	// ready lists descriptors whose artifacts exist before the manager
	// starts.
	ready    []catalog.Descriptor
	strategy runner.Strategy
	bin      string
	// hubURL defaults to a hub that serves nothing, so no test reaches
	// the real download host.
	hubURL string
}

// tinyDesc is a native model small enough to serve from a fake hub.
func tinyDesc(id string) catalog.Descriptor {
	return catalog.Descriptor{
		ID:           id,
		Name:         id,
		Backend:      catalog.BackendLlamaCpp,
		Format:       catalog.FormatNative,
		Repo:         "org/" + id,
		PrimaryFile:  id + ".Q4_K_M.gguf",
		SizeBytes:    4096,
		MinimumBytes: 1024,
		Quantization: "Q4_K_M",
	}
}

func newStack(t *testing.T, sc stackConfig) *stack {
	t.Helper()
	dir := t.TempDir()
	cat, err := catalog.New(sc.descs...)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	st, err := store.New(dir)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	for _, d := range sc.ready {
		writeArtifact(t, dir, d)
	}
	if sc.hubURL == "" {
		sc.hubURL = fakeHub(t).URL
	}
	f := fetch.New(st)
	f.BaseURL = sc.hubURL
	// Only the configured binary counts; nothing from the host leaks in.
	loc := &locator.Locator{
		Configured:  sc.bin,
		Getenv:      func(string) string { return "" },
		BinDirs:     []string{},
		CellarRoots: []string{},
		SkipPath:    true,
	}
	rs := runner.NewServer("127.0.0.1", 0)
	rs.ReadyInterval = 20 * time.Millisecond
	rs.ReadyAttempts = 250
	mgr, err := manager.NewWithConfig(manager.ManagerConfig{
		Catalog:     cat,
		Store:       st,
		Fetcher:     f,
		Runner:      runner.New(sc.strategy, rs),
		Locator:     loc,
		Strategy:    sc.strategy,
		IdleTimeout: -1,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	srv := httptest.NewServer(httpapi.NewMux(mgr))
	t.Cleanup(func() {
		srv.Close()
		_ = mgr.Close()
	})
	return &stack{srv: srv, mgr: mgr, dir: dir}
}

// writeArtifact places a complete artifact for d in the models dir.
func writeArtifact(t *testing.T, dir string, d catalog.Descriptor) {
	t.Helper()
	p := filepath.Join(dir, d.Output())
	if err := os.WriteFile(p, bytes.Repeat([]byte{'g'}, int(d.SizeBytes)), 0o644); err != nil {
		t.Fatal(err)
	}
}

// fakeHub serves every descriptor's primary file at the resolve URL.
func fakeHub(t *testing.T, descs ...catalog.Descriptor) *httptest.Server {
	t.Helper()
	files := map[string]catalog.Descriptor{}
	for _, d := range descs {
		files["/"+d.Repo+"/resolve/main/"+d.PrimaryFile] = d
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Length", strconv.FormatInt(d.SizeBytes, 10))
		_, _ = w.Write(bytes.Repeat([]byte{'g'}, int(d.SizeBytes)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func shellStub(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return p
}

// buildFakeServer compiles the runner package's fake llama-server.
func buildFakeServer(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not on PATH")
	}
	bin := filepath.Join(t.TempDir(), "llama-server")
	cmd := exec.Command("go", "build", "-o", bin, "../runner/testdata/fake_llama_server.go")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("build fake server: %v: %s", err, string(out))
	}
	return bin
}

func httpDo(t *testing.T, method, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, body)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	return httpDo(t, http.MethodGet, url, nil)
}

func httpPostJSON(t *testing.T, url string, v any) (*http.Response, []byte) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return httpDo(t, http.MethodPost, url, b)
}

// readNDJSON splits an /infer body into chunks.
func readNDJSON(t *testing.T, body []byte) []types.InferChunk {
	t.Helper()
	var out []types.InferChunk
	for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
		if line == "" {
			continue
		}
		var c types.InferChunk
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			t.Fatalf("bad ndjson line %q: %v", line, err)
		}
		out = append(out, c)
	}
	return out
}

// finalContent returns the content of the done line.
func finalContent(t *testing.T, body []byte) string {
	t.Helper()
	chunks := readNDJSON(t, body)
	if len(chunks) == 0 {
		t.Fatal("empty stream")
	}
	last := chunks[len(chunks)-1]
	if !last.Done {
		t.Fatalf("stream did not finish: %s", body)
	}
	return last.Content
}

// waitModelState polls GET /models/{id} until it reports want.
func waitModelState(t *testing.T, base, id, want string) types.Model {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	var m types.Model
	for time.Now().Before(deadline) {
		resp, body := httpGet(t, base+"/models/"+id)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET /models/%s: %d %s", id, resp.StatusCode, body)
		}
		if err := json.Unmarshal(body, &m); err != nil {
			t.Fatal(err)
		}
		if m.State == want {
			return m
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("model %s stuck in %s (%s), want %s", id, m.State, m.Status, want)
	return m
}

func launchCount(t *testing.T, logPath string) int {
	t.Helper()
	b, err := os.ReadFile(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0
		}
		t.Fatal(err)
	}
	return len(strings.Split(strings.TrimSpace(string(b)), "\n"))
}
