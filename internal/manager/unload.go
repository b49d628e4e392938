package manager

import (
	"github.com/rs/zerolog/log"
)

// DeleteModel cancels any download for id, releases its session if it is
// active and removes every artifact. The entry ends up not_downloaded.
func (m *Manager) DeleteModel(id string) error {
	m.mu.Lock()
	if _, ok := m.entries[id]; !ok {
		m.mu.Unlock()
		return ErrModelNotFound(id)
	}
	t := m.tasks[id]
	m.mu.Unlock()

	if t != nil {
		t.cancel()
		<-t.done
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entries[id]
	if m.active == id {
		m.evictLocked("delete")
	}
	err := m.store.Purge(e.desc)
	lastErr := ""
	if err != nil {
		lastErr = err.Error()
		log.Error().Err(err).Str("model", id).Msg("purge artifacts")
	}
	m.setStateLocked(e, StateNotDownloaded, statusNotDownloaded, lastErr)
	log.Info().Str("model", id).Msg("model deleted")
	m.publish(EventModelDeleted, id, nil)
	return err
}
