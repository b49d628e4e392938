//go:build llama

package runner

import (
	"context"
	"errors"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"
	"github.com/rs/zerolog/log"
)

// InProcessAvailable reports whether this binary was built with go-llama.cpp.
const InProcessAvailable = true

// inProcess keeps one model loaded through go-llama.cpp, the in-process
// counterpart of a persistent server.
type inProcess struct {
	mu    sync.Mutex
	model *llama.LLama
	cfg   ServerConfig
}

func (p *inProcess) load(cfg ServerConfig) error {
	if p.model != nil && p.cfg == cfg {
		return nil
	}
	p.freeLocked()
	opts := []llama.ModelOption{llama.SetContext(cfg.ContextSize)}
	if cfg.GPULayers > 0 {
		opts = append(opts, llama.SetGPULayers(cfg.GPULayers))
	}
	m, err := llama.New(cfg.ModelPath, opts...)
	if err != nil {
		return StartError{Err: err}
	}
	p.model, p.cfg = m, cfg
	log.Info().Str("model", cfg.ModelPath).Msg("runner: model loaded in-process")
	return nil
}

func (p *inProcess) stream(ctx context.Context, req Request) *Stream {
	return NewStream(ctx, func(ctx context.Context, emit Emit) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if err := p.load(req.ServerConfig()); err != nil {
			emit(ErrorChunk(err))
			return
		}
		p.model.SetTokenCallback(func(tok string) bool {
			return emit(Chunk{Text: tok})
		})
		defer p.model.SetTokenCallback(nil)
		_, err := p.model.Predict(req.Prompt,
			llama.SetTokens(max(1, req.Params.MaxTokens)),
			llama.SetTemperature(float32(req.Params.Temperature)),
			llama.SetTopP(float32(req.Params.TopP)),
		)
		if err != nil && ctx.Err() == nil {
			emit(ErrorChunk(errors.Join(errors.New("in-process inference failed"), err)))
		}
	})
}

func (p *inProcess) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.freeLocked()
}

func (p *inProcess) freeLocked() {
	if p.model != nil {
		p.model.Free()
		p.model = nil
		p.cfg = ServerConfig{}
	}
}
