package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"promptd/internal/locator"
	"promptd/internal/prompt"
	"promptd/internal/runner"
	"promptd/pkg/types"
)

// RequestCompletion streams an answer to input from the selected model
// using the default generation settings.
//
// A model that is not ready yields a single diagnostic chunk (IsNotReady)
// and a download is started for it. Otherwise the idle countdown is paused
// for the duration of the stream and re-armed once it ends.
func (m *Manager) RequestCompletion(ctx context.Context, input string, pc prompt.Context) *runner.Stream {
	return m.RequestCompletionWith(ctx, input, pc, m.params)
}

// RequestCompletionWith is RequestCompletion with explicit generation settings.
func (m *Manager) RequestCompletionWith(ctx context.Context, input string, pc prompt.Context, p runner.Params) *runner.Stream {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return runner.Failure(ctx, ErrClosed)
	}
	id := m.selected
	e := m.entries[id]
	if e.state == StateReady && !m.store.IsComplete(e.desc) {
		log.Warn().Str("model", id).Msg("artifact disappeared from disk")
		m.setStateLocked(e, StateNotDownloaded, statusNotDownloaded, "")
	}
	if e.state != StateReady {
		notReady := notReadyError{name: e.desc.Name, status: e.status}
		m.mu.Unlock()
		completionsCounter.WithLabelValues("not_ready").Inc()
		if err := m.DownloadModel(id); err != nil {
			log.Warn().Err(err).Str("model", id).Msg("start download")
		}
		return runner.Failure(ctx, notReady)
	}
	bin, err := m.binaryLocked()
	if err != nil {
		m.mu.Unlock()
		completionsCounter.WithLabelValues("dependency").Inc()
		return runner.Failure(ctx, err)
	}
	m.cancelIdleLocked()
	if m.active != id {
		if m.active != "" {
			m.evictLocked("switch")
		}
		m.setActiveLocked(id)
	}
	req := runner.Request{
		Binary:    bin,
		ModelPath: m.store.Locate(e.desc).Output,
		Prompt:    prompt.Build(input, pc),
		Params:    p,
	}
	m.inflight++
	m.mu.Unlock()

	log.Debug().Str("model", id).Str("strategy", string(m.strategy)).Int("max_tokens", p.MaxTokens).Msg("completion started")
	return runner.NewStream(ctx, func(ctx context.Context, emit runner.Emit) {
		failed := false
		defer func() { m.streamDone(id, failed) }()
		src := m.runner.Stream(ctx, req)
		defer src.Close()
		for c := range src.C() {
			if c.Err != nil {
				failed = true
			}
			if !emit(c) {
				return
			}
		}
	})
}

func (m *Manager) streamDone(id string, failed bool) {
	result := "ok"
	if failed {
		result = "error"
	}
	completionsCounter.WithLabelValues(result).Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inflight--
	if m.inflight == 0 && m.active == id {
		m.armIdleLocked()
	}
}

// binaryLocked resolves the executable the strategy spawns.
func (m *Manager) binaryLocked() (string, error) {
	var role locator.Role
	switch m.strategy {
	case runner.StrategyCLI:
		role = locator.RoleCLI
	case runner.StrategyServer:
		role = locator.RoleServer
	default:
		return "", nil
	}
	p, ok := m.locator.Resolve(role)
	if !ok {
		return "", ErrDependencyUnavailable(fmt.Sprintf("%s not found. %s", role, locator.Hint(role)))
	}
	return p, nil
}

// Infer serves one completion as NDJSON: a {"delta"} line per chunk, then
// {"done":true,"content"} or a single {"error"} line. Failures that happen
// before anything was written are returned instead so the caller can pick
// a status code.
func (m *Manager) Infer(ctx context.Context, req types.InferRequest, w io.Writer, flush func()) error {
	if req.Model != "" && req.Model != m.Selected() {
		if err := m.SelectModel(req.Model); err != nil {
			return err
		}
	}
	p := m.params
	if req.MaxTokens > 0 {
		p.MaxTokens = req.MaxTokens
	}
	if req.Temperature != nil {
		p.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		p.TopP = *req.TopP
	}
	s := m.RequestCompletionWith(ctx, req.Prompt, prompt.Context{FrontmostApp: req.FrontmostApp, Clipboard: req.Clipboard}, p)
	defer s.Close()

	enc := json.NewEncoder(w)
	var content strings.Builder
	wrote := false
	for c := range s.C() {
		if c.Err != nil {
			if !wrote {
				return c.Err
			}
			if err := enc.Encode(types.InferChunk{Error: c.Text}); err != nil {
				return err
			}
			safeFlush(flush)
			return nil
		}
		content.WriteString(c.Text)
		if err := enc.Encode(types.InferChunk{Delta: c.Text}); err != nil {
			return err
		}
		wrote = true
		safeFlush(flush)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := enc.Encode(types.InferChunk{Done: true, Content: content.String()}); err != nil {
		return err
	}
	safeFlush(flush)
	return nil
}

func safeFlush(flush func()) {
	if flush == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Msg("flush panicked")
		}
	}()
	flush()
}
