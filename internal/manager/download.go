package manager

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"promptd/internal/catalog"
)

// DownloadModel starts fetching (and, for convertible models, converting)
// id in the background. It returns immediately; a call for a model that is
// already downloading or converting is ignored.
func (m *Manager) DownloadModel(id string) error {
	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return ErrModelNotFound(id)
	}
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if e.state.Busy() || m.tasks[id] != nil {
		m.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(m.baseCtx)
	t := &task{cancel: cancel, done: make(chan struct{})}
	m.tasks[id] = t
	m.setStateLocked(e, StateDownloading, statusStarting, "")
	d := e.desc
	m.mu.Unlock()

	m.publish(EventDownloadStart, id, map[string]any{"repo": d.Repo, "format": string(d.Format)})
	log.Info().Str("model", id).Str("repo", d.Repo).Msg("download started")
	go m.runDownload(ctx, t, d)
	return nil
}

func (m *Manager) runDownload(ctx context.Context, t *task, d catalog.Descriptor) {
	defer close(t.done)
	defer t.cancel()
	err := m.download(ctx, d)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tasks[d.ID] == t {
		delete(m.tasks, d.ID)
	}
	m.finishDownloadLocked(ctx, d, err)
}

func (m *Manager) download(ctx context.Context, d catalog.Descriptor) error {
	lock, err := m.store.Lock(ctx, d)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn().Err(err).Str("model", d.ID).Msg("release store lock")
		}
	}()

	err = m.fetcher.Fetch(ctx, d, func(name string, index, total int) {
		m.setStatus(d.ID, StateDownloading, fmt.Sprintf("fetching %s (%d/%d)", name, index, total))
		m.publish(EventDownloadFile, d.ID, map[string]any{"file": name, "index": index, "total": total})
	})
	if err != nil {
		return err
	}
	if !d.RequiresConversion() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.setStatus(d.ID, StateConverting, fmt.Sprintf("Converting to GGUF (%s)", d.Quantization))
	m.publish(EventConvertStart, d.ID, map[string]any{"quant": d.Quantization})
	return m.converter.Convert(ctx, d)
}

// setStatus updates a busy entry. It leaves entries alone that something
// else already moved on, such as a delete.
func (m *Manager) setStatus(id string, s State, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entries[id]
	if e == nil || !e.state.Busy() {
		return
	}
	m.setStateLocked(e, s, status, "")
}

func (m *Manager) finishDownloadLocked(ctx context.Context, d catalog.Descriptor, err error) {
	e := m.entries[d.ID]
	m.downloadsTotal++
	switch {
	case ctx.Err() != nil:
		m.setStateLocked(e, StateNotDownloaded, statusNotDownloaded, "")
		downloadsCounter.WithLabelValues("canceled").Inc()
		log.Info().Str("model", d.ID).Msg("download canceled")
	case err != nil:
		m.setStateLocked(e, StateError, statusError, err.Error())
		downloadsCounter.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("model", d.ID).Msg("download failed")
		m.publish(EventModelError, d.ID, map[string]any{"error": err.Error()})
	case m.store.IsComplete(d):
		m.setStateLocked(e, StateReady, statusReady, "")
		downloadsCounter.WithLabelValues("ok").Inc()
		log.Info().Str("model", d.ID).Str("path", m.store.Locate(d).Output).Msg("model ready")
		m.publish(EventModelReady, d.ID, nil)
	default:
		msg := fmt.Sprintf("%s is missing or smaller than expected after download.", d.Output())
		m.setStateLocked(e, StateNotDownloaded, statusNotDownloaded, msg)
		downloadsCounter.WithLabelValues("incomplete").Inc()
		log.Warn().Str("model", d.ID).Msg(msg)
		m.publish(EventModelError, d.ID, map[string]any{"error": msg})
	}
}
