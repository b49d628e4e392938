// Package convert turns a downloaded safetensors model into a quantized
// GGUF artifact using llama.cpp's converter script and quantizer.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"promptd/internal/catalog"
	"promptd/internal/common/fsutil"
	"promptd/internal/store"
)

// Commander is a wrapper around exec.CommandContext to allow for testing.
type Commander interface {
	CommandContext(ctx context.Context, name string, arg ...string) *exec.Cmd
}

type RealCommander struct{}

func (RealCommander) CommandContext(ctx context.Context, name string, arg ...string) *exec.Cmd {
	return exec.CommandContext(ctx, name, arg...)
}

// Tools resolves the converter pipeline's external programs.
// *locator.Locator satisfies it.
type Tools interface {
	Converter() (string, bool)
	Quantizer() (string, bool)
	Python() (string, bool)
}

var defaultHints = map[string]string{
	"convert_hf_to_gguf.py": "Install llama.cpp or set LLAMA_CONVERT_PATH.",
	"llama-quantize":        "Install llama.cpp or set LLAMA_QUANTIZE_BIN.",
	"python3":               "Install Python 3 or set PYTHON_BIN.",
}

// Converter runs the two-stage convert+quantize pipeline.
type Converter struct {
	Store     *store.Store
	Tools     Tools
	Commander Commander
}

// New returns a Converter using real processes.
func New(st *store.Store, tools Tools) *Converter {
	return &Converter{Store: st, Tools: tools, Commander: RealCommander{}}
}

// Convert produces d's final artifact from its working directory. Native
// descriptors are a no-op.
func (c *Converter) Convert(ctx context.Context, d catalog.Descriptor) error {
	if !d.RequiresConversion() {
		return nil
	}
	loc := c.Store.Locate(d)
	for _, name := range d.Files() {
		if !fsutil.PathExists(filepath.Join(loc.WorkDir, name)) {
			return MissingFileError{Name: name}
		}
	}

	script, ok := c.Tools.Converter()
	if !ok {
		return toolMissing("convert_hf_to_gguf.py")
	}
	quantizer, ok := c.Tools.Quantizer()
	if !ok {
		return toolMissing("llama-quantize")
	}
	python, ok := c.Tools.Python()
	if !ok {
		return toolMissing("python3")
	}

	for _, p := range []string{loc.Output, loc.Intermediate} {
		if err := fsutil.RemoveIfExists(p); err != nil {
			return fmt.Errorf("remove stale %s: %w", filepath.Base(p), err)
		}
	}

	log.Info().Str("model", d.ID).Str("script", script).Msg("convert: converting to f16")
	err := c.run(ctx, "convert", []string{"TRANSFORMERS_OFFLINE=1"}, python,
		script, loc.WorkDir, "--outtype", "f16", "--outfile", loc.Intermediate)
	if err != nil {
		return err
	}

	log.Info().Str("model", d.ID).Str("quant", d.Quantization).Msg("convert: quantizing")
	if err := c.run(ctx, "quantize", nil, quantizer, loc.Intermediate, loc.Output, d.Quantization); err != nil {
		return err
	}

	if err := os.Remove(loc.Intermediate); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("model", d.ID).Msg("convert: could not delete intermediate artifact")
	}
	return nil
}

// run executes one stage capturing stderr only.
func (c *Converter) run(ctx context.Context, stage string, env []string, name string, args ...string) error {
	cmder := c.Commander
	if cmder == nil {
		cmder = RealCommander{}
	}
	cmd := cmder.CommandContext(ctx, name, args...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return ProcessFailedError{Stage: stage, Stderr: msg}
	}
	return nil
}

func toolMissing(tool string) error {
	return ToolMissingError{Tool: tool, Hint: defaultHints[tool]}
}
