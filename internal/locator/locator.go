// Package locator resolves the llama.cpp binaries and scripts promptd shells
// out to. Resolution never fails loudly: a role that cannot be found yields
// ("", false) and callers surface Hint(role).
package locator

import (
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	version "github.com/hashicorp/go-version"

	"promptd/internal/common/fsutil"
)

// Role is one external tool promptd needs.
type Role string

const (
	RoleCLI       Role = "llama-cli"
	RoleServer    Role = "llama-server"
	RoleQuantizer Role = "llama-quantize"
	RoleConverter Role = "convert_hf_to_gguf.py"
)

const (
	serverBinary    = "llama-server"
	quantizeBinary  = "llama-quantize"
	convertScript   = "convert_hf_to_gguf.py"
	pythonOverride  = "PYTHON_BIN"
	defaultPythonV3 = "python3"
)

// envVars lists the override variables per role, highest priority first.
var envVars = map[Role][]string{
	RoleCLI:       {"LLAMA_BIN", "LLAMA_CPP_BIN"},
	RoleServer:    {"LLAMA_SERVER_BIN", "LLAMA_CPP_SERVER_BIN"},
	RoleQuantizer: {"LLAMA_QUANTIZE_BIN", "LLAMA_CPP_QUANTIZE_BIN"},
	RoleConverter: {"LLAMA_CONVERT_PATH", "LLAMA_CPP_CONVERT_PATH"},
}

var binDirs = []string{
	"/opt/homebrew/bin",
	"/usr/local/bin",
	"/usr/bin",
	"~/apps/llama.cpp/build/bin",
}

var cellarRoots = []string{
	"/opt/homebrew/Cellar/llama.cpp",
	"/usr/local/Cellar/llama.cpp",
}

var binaryNames = map[Role][]string{
	RoleCLI:       {"llama-cli", "llama", "main"},
	RoleServer:    {serverBinary},
	RoleQuantizer: {quantizeBinary},
	RoleConverter: {convertScript},
}

// Locator resolves tool paths. The zero value searches the real environment
// with no configured path.
type Locator struct {
	// Configured is an explicit user-selected llama binary (CLI or server).
	Configured string
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
	// BinDirs and CellarRoots replace the built-in search lists when set.
	BinDirs     []string
	CellarRoots []string
	// SkipPath disables the final $PATH lookup.
	SkipPath bool
}

// New returns a locator for an optional configured binary path.
func New(configured string) *Locator {
	return &Locator{Configured: configured}
}

func (l *Locator) getenv(k string) string {
	if l.Getenv != nil {
		return l.Getenv(k)
	}
	return os.Getenv(k)
}

func (l *Locator) binDirs() []string {
	if l.BinDirs != nil {
		return l.BinDirs
	}
	return binDirs
}

func (l *Locator) cellarRoots() []string {
	if l.CellarRoots != nil {
		return l.CellarRoots
	}
	return cellarRoots
}

// Resolve finds the path for role.
func (l *Locator) Resolve(role Role) (string, bool) {
	if p, ok := l.fromConfigured(role); ok {
		return p, true
	}
	for _, k := range envVars[role] {
		if p := l.expand(l.getenv(k)); l.usable(role, p) {
			return p, true
		}
	}
	for _, dir := range l.binDirs() {
		for _, name := range binaryNames[role] {
			if p := filepath.Join(l.expand(dir), name); l.usable(role, p) {
				return p, true
			}
		}
	}
	if role == RoleConverter {
		if p, ok := l.scanCellars(); ok {
			return p, true
		}
	}
	if !l.SkipPath {
		for _, name := range binaryNames[role] {
			if p, err := exec.LookPath(name); err == nil && l.usable(role, p) {
				return p, true
			}
		}
	}
	return "", false
}

// CLI, Server, Quantizer and Converter are shorthands for Resolve.
func (l *Locator) CLI() (string, bool)       { return l.Resolve(RoleCLI) }
func (l *Locator) Server() (string, bool)    { return l.Resolve(RoleServer) }
func (l *Locator) Quantizer() (string, bool) { return l.Resolve(RoleQuantizer) }
func (l *Locator) Converter() (string, bool) { return l.Resolve(RoleConverter) }

// Python returns the interpreter used to run the converter script:
// PYTHON_BIN when executable, else python3 from PATH.
func (l *Locator) Python() (string, bool) {
	if p := l.expand(l.getenv(pythonOverride)); fsutil.IsExecutable(p) {
		return p, true
	}
	if p, err := exec.LookPath(defaultPythonV3); err == nil {
		return p, true
	}
	return "", false
}

func (l *Locator) fromConfigured(role Role) (string, bool) {
	cfg := l.expand(l.Configured)
	if cfg == "" {
		return "", false
	}
	switch role {
	case RoleCLI:
		if filepath.Base(cfg) != serverBinary && fsutil.IsExecutable(cfg) {
			return cfg, true
		}
	case RoleServer:
		if filepath.Base(cfg) == serverBinary {
			if fsutil.IsExecutable(cfg) {
				return cfg, true
			}
			return "", false
		}
		if p := filepath.Join(filepath.Dir(cfg), serverBinary); fsutil.IsExecutable(p) {
			return p, true
		}
	case RoleQuantizer:
		if p := filepath.Join(filepath.Dir(cfg), quantizeBinary); fsutil.IsExecutable(p) {
			return p, true
		}
	case RoleConverter:
		if p := filepath.Join(filepath.Dir(cfg), convertScript); fsutil.PathExists(p) {
			return p, true
		}
	}
	return "", false
}

// scanCellars looks for <root>/<version>/{bin,libexec}/convert_hf_to_gguf.py,
// newest version first.
func (l *Locator) scanCellars() (string, bool) {
	for _, root := range l.cellarRoots() {
		entries, err := os.ReadDir(l.expand(root))
		if err != nil {
			continue
		}
		var versions []string
		for _, e := range entries {
			if e.IsDir() {
				versions = append(versions, e.Name())
			}
		}
		sortVersionsDesc(versions)
		for _, v := range versions {
			for _, sub := range []string{"bin", "libexec"} {
				p := filepath.Join(l.expand(root), v, sub, convertScript)
				if l.usable(RoleConverter, p) {
					return p, true
				}
			}
		}
	}
	return "", false
}

// sortVersionsDesc orders Cellar version directories newest first. Names
// that parse as versions compare numerically (10000 > 9999, 1.10 > 1.9) and
// rank ahead of anything unparseable, which falls back to reverse string
// order.
func sortVersionsDesc(names []string) {
	parsed := make(map[string]*version.Version, len(names))
	for _, n := range names {
		if v, err := version.NewVersion(n); err == nil {
			parsed[n] = v
		}
	}
	sort.SliceStable(names, func(i, j int) bool {
		vi, vj := parsed[names[i]], parsed[names[j]]
		switch {
		case vi != nil && vj != nil:
			if vi.Equal(vj) {
				return names[i] > names[j]
			}
			return vi.GreaterThan(vj)
		case vi != nil:
			return true
		case vj != nil:
			return false
		}
		return names[i] > names[j]
	})
}

// usable: binaries must be executable; the converter is a script run through
// python, so it only has to exist.
func (l *Locator) usable(role Role, p string) bool {
	if p == "" {
		return false
	}
	if role == RoleConverter {
		fi, err := os.Stat(p)
		return err == nil && !fi.IsDir()
	}
	return fsutil.IsExecutable(p)
}

func (l *Locator) expand(p string) string {
	if p == "" {
		return ""
	}
	out, err := fsutil.ExpandHome(p)
	if err != nil {
		return p
	}
	return out
}

// EnvVars returns the override variables consulted for role.
func EnvVars(role Role) []string {
	return append([]string(nil), envVars[role]...)
}

// Hint is the remediation text shown when role cannot be resolved.
func Hint(role Role) string {
	env := "LLAMA_BIN"
	if vs := envVars[role]; len(vs) > 0 {
		env = vs[0]
	}
	return "Install llama.cpp with `brew install llama.cpp`, set " + env + ", or configure llama_bin."
}
