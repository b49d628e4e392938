package manager

import (
	"time"

	"github.com/rs/zerolog/log"
)

// evictLocked releases the active session: it stops the persistent server,
// clears the active id and cancels the idle timer. Caller holds m.mu.
func (m *Manager) evictLocked(reason string) {
	m.cancelIdleLocked()
	prev := m.active
	m.setActiveLocked("")
	if err := m.runner.StopServer(); err != nil {
		log.Warn().Err(err).Msg("stop inference session")
	}
	if prev == "" {
		return
	}
	m.evictionsTotal++
	evictionsCounter.WithLabelValues(reason).Inc()
	log.Info().Str("model", prev).Str("reason", reason).Msg("session evicted")
	m.publish(EventSessionEvict, prev, map[string]any{"reason": reason})
}

// armIdleLocked (re)starts the idle countdown for the active session.
func (m *Manager) armIdleLocked() {
	m.cancelIdleLocked()
	if m.idleTimeout <= 0 || m.active == "" || m.closed {
		return
	}
	gen := m.idleGen
	m.idle = time.AfterFunc(m.idleTimeout, func() { m.onIdle(gen) })
}

// cancelIdleLocked stops the countdown. Bumping the generation makes a
// callback that already fired but waits on m.mu a no-op.
func (m *Manager) cancelIdleLocked() {
	m.idleGen++
	if m.idle != nil {
		m.idle.Stop()
		m.idle = nil
	}
}

func (m *Manager) onIdle(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.idleGen || m.inflight > 0 {
		return
	}
	m.idle = nil
	m.evictLocked("idle")
}
