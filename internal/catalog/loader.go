package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"promptd/internal/common/fsutil"
)

// File is the on-disk shape of an extra-descriptor file.
type File struct {
	Models []Descriptor `json:"models" yaml:"models" toml:"models"`
}

// LoadFile reads extra descriptors based on the file extension.
// Supports: .yaml/.yml, .json, .toml
func LoadFile(path string) ([]Descriptor, error) {
	if path == "" {
		return nil, fmt.Errorf("empty catalog path")
	}
	p, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	var f File
	switch ext := strings.ToLower(filepath.Ext(p)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &f)
	case ".json":
		err = json.Unmarshal(b, &f)
	case ".toml":
		err = toml.Unmarshal(b, &f)
	default:
		return nil, fmt.Errorf("unsupported catalog extension: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", p, err)
	}
	for i := range f.Models {
		if f.Models[i].Backend == "" {
			f.Models[i].Backend = BackendLlamaCpp
		}
		if f.Models[i].Format == "" {
			f.Models[i].Format = FormatNative
		}
	}
	return f.Models, nil
}

// ScanDir finds *.gguf files in dir that no catalog entry produces and
// describes them as local-only native models. Their Repo is empty, so they
// can be run and deleted but never fetched.
func ScanDir(dir string, known *Catalog) ([]Descriptor, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir: %w", err)
	}
	produced := map[string]bool{}
	if known != nil {
		for _, d := range known.List() {
			produced[d.Output()] = true
		}
	}
	var out []Descriptor
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") || produced[name] {
			continue
		}
		// intermediate conversion artifacts
		if strings.Contains(strings.ToLower(name), ".f16.") {
			continue
		}
		id := "local-" + strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
		if known != nil {
			if _, taken := known.Get(id); taken {
				continue
			}
		}
		var size int64
		if fi, err := e.Info(); err == nil {
			size = fi.Size()
		}
		out = append(out, Descriptor{
			ID:           id,
			Name:         name,
			Backend:      BackendLlamaCpp,
			Format:       FormatNative,
			PrimaryFile:  name,
			SizeBytes:    size,
			MinimumBytes: 1,
			Quantization: guessQuant(name),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var quantMarkers = []string{"Q2_K", "Q3_K_S", "Q3_K_M", "Q3_K_L", "Q4_0", "Q4_1", "Q4_K_S", "Q4_K_M", "Q5_0", "Q5_1", "Q5_K_S", "Q5_K_M", "Q6_K", "Q8_0", "F16", "F32"}

func guessQuant(name string) string {
	up := strings.ToUpper(name)
	best := ""
	for _, q := range quantMarkers {
		if strings.Contains(up, q) && len(q) > len(best) {
			best = q
		}
	}
	return best
}
