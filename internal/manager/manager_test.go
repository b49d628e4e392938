package manager

import (
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"promptd/internal/catalog"
	"promptd/internal/common/fsutil"
	"promptd/internal/fetch"
	"promptd/internal/prompt"
	"promptd/internal/store"
)

func TestNewWithConfigInitialStates(t *testing.T) {
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	writeN(t, st.Locate(nativeDesc()).Output, 64)
	cat, _ := catalog.New(nativeDesc(), convDesc())
	m, err := NewWithConfig(ManagerConfig{Catalog: cat, Store: st, Locator: fakeBins{}})
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	defer m.Close()

	if e, _ := m.Entry("tiny"); e.State != StateReady || e.Status != "Ready" {
		t.Fatalf("tiny = %+v", e)
	}
	if e, _ := m.Entry("conv"); e.State != StateNotDownloaded || e.Status != "Not downloaded" {
		t.Fatalf("conv = %+v", e)
	}
	if m.Selected() != "tiny" {
		t.Fatalf("selected = %q", m.Selected())
	}
	if !m.Ready() {
		t.Fatal("expected ready")
	}
	if got := m.Params(); got.MaxTokens != 256 || got.ContextSize != 2048 {
		t.Fatalf("params = %+v", got)
	}
}

func TestNewWithConfigRejects(t *testing.T) {
	st, _ := store.New(t.TempDir())
	cat, _ := catalog.New(nativeDesc())
	if _, err := NewWithConfig(ManagerConfig{Store: st}); err == nil {
		t.Fatal("expected error for missing catalog")
	}
	if _, err := NewWithConfig(ManagerConfig{Catalog: cat}); err == nil {
		t.Fatal("expected error for missing store")
	}
	_, err := NewWithConfig(ManagerConfig{Catalog: cat, Store: st, DefaultModel: "nope"})
	if !IsModelNotFound(err) {
		t.Fatalf("want model not found, got %v", err)
	}
}

func TestDownloadNative(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.m.DownloadModel("tiny"); err != nil {
		t.Fatalf("DownloadModel: %v", err)
	}
	if err := h.m.Wait(testCtx(t), "tiny"); err != nil {
		t.Fatal(err)
	}
	e := waitState(t, h.m, "tiny", StateReady)
	if e.Status != "Ready" || e.LastError != "" {
		t.Fatalf("entry = %+v", e)
	}
	if h.f.Calls() != 1 || h.c.Calls() != 0 {
		t.Fatalf("fetch=%d convert=%d", h.f.Calls(), h.c.Calls())
	}
	names := h.pub.Names()
	for _, want := range []string{EventDownloadStart, EventDownloadFile, EventModelReady} {
		if !slices.Contains(names, want) {
			t.Fatalf("missing %s in %v", want, names)
		}
	}
	if slices.Contains(names, EventConvertStart) {
		t.Fatalf("native download must not convert: %v", names)
	}
}

func TestDownloadConvertible(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.m.DownloadModel("conv"); err != nil {
		t.Fatal(err)
	}
	waitState(t, h.m, "conv", StateReady)
	if h.f.Calls() != 1 || h.c.Calls() != 1 {
		t.Fatalf("fetch=%d convert=%d", h.f.Calls(), h.c.Calls())
	}
	if !slices.Contains(h.pub.Names(), EventConvertStart) {
		t.Fatalf("events = %v", h.pub.Names())
	}
}

func TestDownloadIsDeduplicated(t *testing.T) {
	h := newHarness(t, nil)
	block := make(chan struct{})
	h.f.block = block
	if err := h.m.DownloadModel("tiny"); err != nil {
		t.Fatal(err)
	}
	waitState(t, h.m, "tiny", StateDownloading)
	if err := h.m.DownloadModel("tiny"); err != nil {
		t.Fatal(err)
	}
	e, _ := h.m.Entry("tiny")
	if e.Status != "fetching tiny.Q4.gguf (1/1)" && e.Status != "Starting download" {
		t.Fatalf("status = %q", e.Status)
	}
	close(block)
	waitState(t, h.m, "tiny", StateReady)
	if h.f.Calls() != 1 {
		t.Fatalf("fetch calls = %d, want 1", h.f.Calls())
	}
}

func TestDownloadErrorKeepsMessage(t *testing.T) {
	h := newHarness(t, nil)
	msg := "Download failed with status 401. If the model is gated, set HF_TOKEN."
	h.f.err = errors.New(msg)
	_ = h.m.DownloadModel("tiny")
	e := waitState(t, h.m, "tiny", StateError)
	if e.LastError != msg || e.Status != "Error" {
		t.Fatalf("entry = %+v", e)
	}
	if !slices.Contains(h.pub.Names(), EventModelError) {
		t.Fatalf("events = %v", h.pub.Names())
	}

	// an errored entry may be retried
	h.f.mu.Lock()
	h.f.err = nil
	h.f.mu.Unlock()
	_ = h.m.DownloadModel("tiny")
	e = waitState(t, h.m, "tiny", StateReady)
	if e.LastError != "" {
		t.Fatalf("error not cleared: %+v", e)
	}
}

func TestConversionErrorKeepsMessage(t *testing.T) {
	h := newHarness(t, nil)
	h.c.err = errors.New("Conversion failed: boom")
	_ = h.m.DownloadModel("conv")
	e := waitState(t, h.m, "conv", StateError)
	if e.LastError != "Conversion failed: boom" {
		t.Fatalf("entry = %+v", e)
	}
}

func TestDownloadIncompleteArtifact(t *testing.T) {
	h := newHarness(t, nil)
	h.f.size = 4
	_ = h.m.DownloadModel("tiny")
	if err := h.m.Wait(testCtx(t), "tiny"); err != nil {
		t.Fatal(err)
	}
	e := waitState(t, h.m, "tiny", StateNotDownloaded)
	if e.LastError != "tiny.Q4.gguf is missing or smaller than expected after download." {
		t.Fatalf("last error = %q", e.LastError)
	}
}

func TestDeleteCancelsDownload(t *testing.T) {
	h := newHarness(t, nil)
	h.f.block = make(chan struct{})
	_ = h.m.DownloadModel("tiny")
	waitState(t, h.m, "tiny", StateDownloading)
	if err := h.m.DeleteModel("tiny"); err != nil {
		t.Fatalf("DeleteModel: %v", err)
	}
	e, _ := h.m.Entry("tiny")
	if e.State != StateNotDownloaded || e.LastError != "" {
		t.Fatalf("entry = %+v", e)
	}
	if slices.Contains(h.pub.Names(), EventModelError) {
		t.Fatalf("cancel must be silent: %v", h.pub.Names())
	}
}

func TestDeleteReadyPurgesAndEvicts(t *testing.T) {
	h := newHarness(t, nil)
	d := convDesc()
	h.makeReady(t, d)
	loc := h.st.Locate(d)
	writeN(t, loc.Intermediate, 8)
	writeN(t, filepath.Join(loc.WorkDir, d.PrimaryFile), 8)
	if err := h.m.SelectModel("conv"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.m.RequestCompletion(testCtx(t), "hi", promptCtx()).Collect(); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if h.m.Active() != "conv" {
		t.Fatalf("active = %q", h.m.Active())
	}

	if err := h.m.DeleteModel("conv"); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{loc.Output, loc.Intermediate, loc.WorkDir} {
		if fsutil.PathExists(p) {
			t.Fatalf("%s still exists", p)
		}
	}
	if h.m.Active() != "" || h.r.Stops() == 0 {
		t.Fatalf("active=%q stops=%d", h.m.Active(), h.r.Stops())
	}
	if e, _ := h.m.Entry("conv"); e.State != StateNotDownloaded {
		t.Fatalf("entry = %+v", e)
	}
	names := h.pub.Names()
	if !slices.Contains(names, EventModelDeleted) || !slices.Contains(names, EventSessionEvict) {
		t.Fatalf("events = %v", names)
	}
}

func TestUnknownModel(t *testing.T) {
	h := newHarness(t, nil)
	for name, err := range map[string]error{
		"download": h.m.DownloadModel("nope"),
		"delete":   h.m.DeleteModel("nope"),
		"select":   h.m.SelectModel("nope"),
		"wait":     h.m.Wait(testCtx(t), "nope"),
	} {
		if !IsModelNotFound(err) {
			t.Fatalf("%s: want model not found, got %v", name, err)
		}
	}
	if _, err := h.m.Model("nope"); !IsModelNotFound(err) {
		t.Fatalf("Model: %v", err)
	}
}

func TestSelectEvictsOtherModel(t *testing.T) {
	h := newHarness(t, nil)
	h.makeReady(t, nativeDesc())
	h.makeReady(t, convDesc())
	if _, err := h.m.RequestCompletion(testCtx(t), "hi", promptCtx()).Collect(); err != nil {
		t.Fatal(err)
	}
	if err := h.m.SelectModel("tiny"); err != nil {
		t.Fatal(err)
	}
	if h.m.Active() != "tiny" || h.r.Stops() != 0 {
		t.Fatalf("reselecting the active model must keep the session: active=%q stops=%d", h.m.Active(), h.r.Stops())
	}
	if err := h.m.SelectModel("conv"); err != nil {
		t.Fatal(err)
	}
	if h.m.Active() != "" || h.r.Stops() != 1 || h.m.Selected() != "conv" {
		t.Fatalf("active=%q stops=%d selected=%q", h.m.Active(), h.r.Stops(), h.m.Selected())
	}
	if _, err := h.m.RequestCompletion(testCtx(t), "hi", promptCtx()).Collect(); err != nil {
		t.Fatal(err)
	}
	reqs := h.r.Requests()
	if got := reqs[len(reqs)-1].ModelPath; got != h.st.Locate(convDesc()).Output {
		t.Fatalf("model path = %q", got)
	}
}

func TestCloseCancelsAndStops(t *testing.T) {
	h := newHarness(t, nil)
	h.f.block = make(chan struct{})
	_ = h.m.DownloadModel("tiny")
	waitState(t, h.m, "tiny", StateDownloading)
	if err := h.m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if e, _ := h.m.Entry("tiny"); e.State != StateNotDownloaded {
		t.Fatalf("entry = %+v", e)
	}
	if h.r.Stops() == 0 {
		t.Fatal("expected StopServer on close")
	}
	if err := h.m.DownloadModel("tiny"); !errors.Is(err, ErrClosed) {
		t.Fatalf("download after close: %v", err)
	}
	if _, err := h.m.RequestCompletion(testCtx(t), "hi", promptCtx()).Collect(); !errors.Is(err, ErrClosed) {
		t.Fatalf("completion after close: %v", err)
	}
	if err := h.m.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if h.m.Ready() {
		t.Fatal("closed manager reported ready")
	}
}

func TestListModels(t *testing.T) {
	h := newHarness(t, nil)
	h.makeReady(t, nativeDesc())
	models := h.m.ListModels()
	if len(models) != 2 || models[0].ID != "tiny" || models[1].ID != "conv" {
		t.Fatalf("models = %+v", models)
	}
	if models[0].State != "ready" || models[1].State != "not_downloaded" {
		t.Fatalf("states = %s, %s", models[0].State, models[1].State)
	}
	if models[1].Path != h.st.Locate(convDesc()).Output || models[1].Format != "convertible" {
		t.Fatalf("conv = %+v", models[1])
	}
	// the fake artifact is not GGUF, so no header info is attached
	mdl, err := h.m.Model("tiny")
	if err != nil || mdl.Artifact != nil {
		t.Fatalf("Model = %+v, %v", mdl, err)
	}
}

func TestDownloadLocalOnlyModelStaysReady(t *testing.T) {
	local := catalog.Descriptor{
		ID: "local-mine", Name: "mine.gguf", Format: catalog.FormatNative,
		PrimaryFile: "mine.gguf", MinimumBytes: 1,
	}
	h := newHarness(t, func(cfg *ManagerConfig) {
		cat, err := catalog.New(local)
		if err != nil {
			t.Fatal(err)
		}
		cfg.Catalog = cat
		cfg.Fetcher = fetch.New(cfg.Store)
		writeN(t, cfg.Store.Locate(local).Output, 8)
	})
	if e, _ := h.m.Entry(local.ID); e.State != StateReady {
		t.Fatalf("initial state %s, want ready", e.State)
	}

	if err := h.m.DownloadModel(local.ID); err != nil {
		t.Fatalf("DownloadModel: %v", err)
	}
	if err := h.m.Wait(testCtx(t), local.ID); err != nil {
		t.Fatal(err)
	}
	e := waitState(t, h.m, local.ID, StateReady)
	if e.LastError != "" {
		t.Fatalf("last error = %q", e.LastError)
	}

	texts, errChunk := drain(h.m.RequestCompletion(testCtx(t), "hi", prompt.Context{}))
	if errChunk != nil {
		t.Fatalf("completion failed: %s", errChunk.Text)
	}
	if got := strings.Join(texts, ""); got != "Hello World" {
		t.Fatalf("got %q", got)
	}
}
