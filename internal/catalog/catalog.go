// Package catalog holds the static table of models promptd knows how to
// fetch, convert and run.
package catalog

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

// Backend names the inference runtime family a model runs on.
type Backend string

const BackendLlamaCpp Backend = "llamacpp"

// Format is the on-remote format of a model's primary file.
type Format string

const (
	// FormatNative models ship as GGUF and run as downloaded.
	FormatNative Format = "native"
	// FormatConvertible models ship as safetensors plus tokenizer/config
	// files and must be converted and quantized before use.
	FormatConvertible Format = "convertible"
)

// Descriptor is immutable metadata for one model.
type Descriptor struct {
	ID                 string   `json:"id" yaml:"id" toml:"id"`
	Name               string   `json:"name" yaml:"name" toml:"name"`
	Backend            Backend  `json:"backend" yaml:"backend" toml:"backend"`
	Format             Format   `json:"format" yaml:"format" toml:"format"`
	Repo               string   `json:"repo" yaml:"repo" toml:"repo"`
	PrimaryFile        string   `json:"primary_file" yaml:"primary_file" toml:"primary_file"`
	OutputFile         string   `json:"output_file,omitempty" yaml:"output_file,omitempty" toml:"output_file,omitempty"`
	AuxiliaryFiles     []string `json:"auxiliary_files,omitempty" yaml:"auxiliary_files,omitempty" toml:"auxiliary_files,omitempty"`
	SizeBytes          int64    `json:"size_bytes" yaml:"size_bytes" toml:"size_bytes"`
	MinimumBytes       int64    `json:"minimum_bytes" yaml:"minimum_bytes" toml:"minimum_bytes"`
	SourceMinimumBytes int64    `json:"source_minimum_bytes,omitempty" yaml:"source_minimum_bytes,omitempty" toml:"source_minimum_bytes,omitempty"`
	Quantization       string   `json:"quantization" yaml:"quantization" toml:"quantization"`
	License            string   `json:"license,omitempty" yaml:"license,omitempty" toml:"license,omitempty"`
}

// RequiresConversion reports whether the descriptor goes through the converter.
func (d Descriptor) RequiresConversion() bool { return d.Format == FormatConvertible }

// Output returns the final artifact file name.
func (d Descriptor) Output() string {
	if d.OutputFile != "" {
		return d.OutputFile
	}
	return d.PrimaryFile
}

// Files lists every remote file in download order: primary first, then the
// auxiliary files for convertible descriptors.
func (d Descriptor) Files() []string {
	out := []string{d.PrimaryFile}
	if d.RequiresConversion() {
		out = append(out, d.AuxiliaryFiles...)
	}
	return out
}

// SizeLabel renders the declared size for display, e.g. "852 MB".
func (d Descriptor) SizeLabel() string {
	if d.SizeBytes <= 0 {
		return "unknown"
	}
	return humanize.Bytes(uint64(d.SizeBytes))
}

// Validate checks the invariants every descriptor must hold.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return errors.New("descriptor id is empty")
	}
	if strings.ContainsAny(d.ID, `/\`) || d.ID == "." || d.ID == ".." {
		return fmt.Errorf("descriptor %q: id must be usable as a file name", d.ID)
	}
	if d.PrimaryFile == "" {
		return fmt.Errorf("descriptor %q: primary file is empty", d.ID)
	}
	names := append([]string{d.PrimaryFile}, d.AuxiliaryFiles...)
	if d.OutputFile != "" {
		names = append(names, d.OutputFile)
	}
	for _, name := range names {
		if !isPlainFileName(name) {
			return fmt.Errorf("descriptor %q: file %q must be a plain name inside the models directory", d.ID, name)
		}
	}
	switch d.Format {
	case FormatNative:
		if len(d.AuxiliaryFiles) > 0 {
			return fmt.Errorf("descriptor %q: auxiliary files are only valid for convertible models", d.ID)
		}
	case FormatConvertible:
		if d.OutputFile == "" || d.OutputFile == d.PrimaryFile {
			return fmt.Errorf("descriptor %q: convertible models need a distinct output file", d.ID)
		}
	default:
		return fmt.Errorf("descriptor %q: unknown format %q", d.ID, d.Format)
	}
	if d.MinimumBytes < 0 || d.SourceMinimumBytes < 0 {
		return fmt.Errorf("descriptor %q: negative size threshold", d.ID)
	}
	return nil
}

// isPlainFileName accepts a single path element: no separators, no dot
// segments and not absolute.
func isPlainFileName(name string) bool {
	if strings.TrimSpace(name) == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	return !filepath.IsAbs(name) && filepath.VolumeName(name) == ""
}

// Catalog is an ordered, id-unique set of descriptors.
type Catalog struct {
	order []string
	byID  map[string]Descriptor
}

// New builds a catalog, rejecting invalid descriptors and duplicate ids.
func New(descs ...Descriptor) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]Descriptor, len(descs))}
	if err := c.add(descs...); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) add(descs ...Descriptor) error {
	for _, d := range descs {
		if d.Backend == "" {
			d.Backend = BackendLlamaCpp
		}
		if err := d.Validate(); err != nil {
			return err
		}
		if _, dup := c.byID[d.ID]; dup {
			return fmt.Errorf("duplicate model id %q", d.ID)
		}
		d.AuxiliaryFiles = append([]string(nil), d.AuxiliaryFiles...)
		c.byID[d.ID] = d
		c.order = append(c.order, d.ID)
	}
	return nil
}

// Merge appends descriptors with the same validation as New.
func (c *Catalog) Merge(descs ...Descriptor) error { return c.add(descs...) }

// Get returns the descriptor for id.
func (c *Catalog) Get(id string) (Descriptor, bool) {
	d, ok := c.byID[id]
	return d, ok
}

// List returns descriptors in declaration order.
func (c *Catalog) List() []Descriptor {
	out := make([]Descriptor, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Default returns the first declared descriptor.
func (c *Catalog) Default() (Descriptor, bool) {
	if len(c.order) == 0 {
		return Descriptor{}, false
	}
	return c.byID[c.order[0]], true
}

// Len returns the number of descriptors.
func (c *Catalog) Len() int { return len(c.order) }
