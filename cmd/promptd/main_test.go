package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"promptd/internal/catalog"
)

// run executes the command tree with args and returns stdout.
func run(t *testing.T, opts *rootOptions, args ...string) (string, error) {
	t.Helper()
	if opts == nil {
		opts = &rootOptions{}
	}
	root := newRootCmd(opts)
	root.AddCommand(&cobra.Command{Use: "noop", RunE: func(*cobra.Command, []string) error { return nil }})
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestConfigLayering(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "promptd.yaml")
	body := "models_dir: " + filepath.Join(dir, "from-file") + "\nstrategy: cli\nmax_tokens: 64\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PROMPTD_MODELS_DIR", filepath.Join(dir, "from-env"))
	t.Setenv("PROMPTD_MAX_TOKENS", "32")

	opts := &rootOptions{}
	flagDir := filepath.Join(dir, "from-flag")
	if _, err := run(t, opts, "--config", cfgPath, "--models-dir", flagDir, "noop"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if opts.cfg.ModelsDir != flagDir {
		t.Fatalf("models dir = %q, want flag value", opts.cfg.ModelsDir)
	}
	if opts.cfg.Strategy != "cli" {
		t.Fatalf("strategy = %q, want cli from file", opts.cfg.Strategy)
	}
	if opts.cfg.MaxTokens != 32 {
		t.Fatalf("max tokens = %d, want env value 32", opts.cfg.MaxTokens)
	}
}

func TestInvalidStrategyRejected(t *testing.T) {
	_, err := run(t, nil, "--models-dir", t.TempDir(), "--strategy", "bogus", "noop")
	if err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func TestMissingConfigFile(t *testing.T) {
	_, err := run(t, nil, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "noop")
	if err == nil || !strings.Contains(err.Error(), "load config") {
		t.Fatalf("err = %v", err)
	}
}

func TestModelsListsCatalog(t *testing.T) {
	out, err := run(t, nil, "--models-dir", t.TempDir(), "models")
	if err != nil {
		t.Fatalf("models: %v", err)
	}
	if !strings.Contains(out, catalog.DefaultModelID) {
		t.Fatalf("output missing default model:\n%s", out)
	}
	if !strings.Contains(out, "not_downloaded") {
		t.Fatalf("output missing state:\n%s", out)
	}
}

func TestModelsScansLocalFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "tiny.Q4_K_M.gguf"), []byte("GGUF"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PROMPTD_SCAN_LOCAL", "true")
	out, err := run(t, nil, "--models-dir", dir, "models")
	if err != nil {
		t.Fatalf("models: %v", err)
	}
	if !strings.Contains(out, "local-tiny.q4_k_m") || !strings.Contains(out, "ready") {
		t.Fatalf("local model not listed as ready:\n%s", out)
	}
}

func TestRmUnknownModel(t *testing.T) {
	if _, err := run(t, nil, "--models-dir", t.TempDir(), "rm", "no-such-model"); err == nil {
		t.Fatal("expected error")
	}
}

func TestRmLocalModel(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "tiny.gguf")
	if err := os.WriteFile(p, []byte("GGUF"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PROMPTD_SCAN_LOCAL", "true")
	out, err := run(t, nil, "--models-dir", dir, "rm", "local-tiny")
	if err != nil {
		t.Fatalf("rm: %v", err)
	}
	if !strings.Contains(out, "deleted local-tiny") {
		t.Fatalf("out = %q", out)
	}
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Fatalf("artifact still present: %v", err)
	}
}

func TestAskWithCLIStrategy(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "tiny.gguf"), []byte("GGUF"), 0o644); err != nil {
		t.Fatal(err)
	}
	bin := writeScript(t, t.TempDir(), "llama-cli", `printf 'Hello'; printf ' World'`)
	t.Setenv("PROMPTD_SCAN_LOCAL", "true")

	out, err := run(t, nil,
		"--models-dir", dir,
		"--strategy", "cli",
		"--llama-bin", bin,
		"--default-model", "local-tiny",
		"ask", "say", "hello")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if strings.TrimSpace(out) != "Hello World" {
		t.Fatalf("out = %q", out)
	}
}

func TestAskNoWaitReportsNotReady(t *testing.T) {
	t.Setenv("PROMPTD_HUB_URL", "http://127.0.0.1:1")
	_, err := run(t, nil, "--models-dir", t.TempDir(), "ask", "--no-wait", "hi")
	if err == nil || !strings.Contains(err.Error(), "is not ready yet") {
		t.Fatalf("err = %v", err)
	}
}

func TestDoctorListsTools(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LLAMA_BIN", "")
	t.Setenv("LLAMA_CPP_BIN", "")
	out, _ := run(t, nil, "--models-dir", t.TempDir(), "--strategy", "cli", "doctor")
	if !strings.Contains(out, "strategy:   cli") || !strings.Contains(out, "llama-cli") {
		t.Fatalf("doctor output missing role:\n%s", out)
	}
}
