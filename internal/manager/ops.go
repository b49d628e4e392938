package manager

import (
	"github.com/rs/zerolog/log"
)

// SelectModel makes id the model requests are served with. A live session
// for a different model is released first.
func (m *Manager) SelectModel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return ErrModelNotFound(id)
	}
	if m.active != "" && m.active != id {
		m.evictLocked("switch")
	}
	prev := m.selected
	m.selected = id
	if prev != id {
		log.Info().Str("model", id).Str("previous", prev).Msg("model selected")
	}
	m.publish(EventModelSelected, id, map[string]any{"previous": prev})
	return nil
}
