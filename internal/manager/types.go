package manager

import "promptd/internal/catalog"

// State is the lifecycle state of one catalog entry.
type State string

const (
	StateNotDownloaded State = "not_downloaded"
	StateDownloading   State = "downloading"
	StateConverting    State = "converting"
	StateReady         State = "ready"
	StateError         State = "error"
)

var allStates = []State{StateNotDownloaded, StateDownloading, StateConverting, StateReady, StateError}

// Busy reports whether a background task owns the entry.
func (s State) Busy() bool { return s == StateDownloading || s == StateConverting }

// Entry is a read-only snapshot of one catalog model.
type Entry struct {
	Descriptor catalog.Descriptor
	State      State
	// Status is the human readable progress line.
	Status    string
	LastError string
}

// ID is shorthand for Descriptor.ID.
func (e Entry) ID() string { return e.Descriptor.ID }

// entry is the mutable record behind Entry.
type entry struct {
	desc      catalog.Descriptor
	state     State
	status    string
	lastError string
}

func (e *entry) snapshot() Entry {
	return Entry{Descriptor: e.desc, State: e.state, Status: e.status, LastError: e.lastError}
}

// task is one in-flight download for a model id.
type task struct {
	cancel func()
	done   chan struct{}
}

const (
	statusNotDownloaded = "Not downloaded"
	statusStarting      = "Starting download"
	statusReady         = "Ready"
	statusError         = "Error"
)

func statusFor(s State) string {
	switch s {
	case StateReady:
		return statusReady
	case StateError:
		return statusError
	}
	return statusNotDownloaded
}
