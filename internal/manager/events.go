package manager

// Event represents a manager lifecycle event.
// Minimal and stable: name + model ID and optional fields via key/values.
type Event struct {
	Name    string
	ModelID string
	Fields  map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic. Publish may be called
// while the manager holds its lock, so it must not call back into the Manager.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

const (
	EventDownloadStart = "download_start"
	EventDownloadFile  = "download_file"
	EventConvertStart  = "convert_start"
	EventModelReady    = "model_ready"
	EventModelError    = "model_error"
	EventModelDeleted  = "model_deleted"
	EventModelSelected = "model_selected"
	EventSessionEvict  = "session_evict"
)

// SetPublisher replaces the event sink. nil restores the default.
func (m *Manager) SetPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	m.pubMu.Lock()
	m.publisher = p
	m.pubMu.Unlock()
}

func (m *Manager) publish(name, modelID string, fields map[string]any) {
	m.pubMu.RLock()
	p := m.publisher
	m.pubMu.RUnlock()
	p.Publish(Event{Name: name, ModelID: modelID, Fields: fields})
}
