package ideapad

import "sync"

// EventKind distinguishes session events.
type EventKind string

const (
	// EventState reports a state transition.
	EventState EventKind = "state"

	// EventTranscript reports one appended transcript entry.
	EventTranscript EventKind = "transcript"
)

// Event is published to listeners on every state change and transcript
// append.
type Event struct {
	Kind    EventKind `json:"kind"`
	Session string    `json:"session"`
	State   State     `json:"state,omitempty"`
	Error   string    `json:"error,omitempty"`
	Entry   *Entry    `json:"entry,omitempty"`
}

// Listener receives session events.
type Listener func(Event)

type bus struct {
	mu        sync.Mutex
	next      int
	listeners map[int]Listener
}

func newBus() *bus { return &bus{listeners: make(map[int]Listener)} }

func (b *bus) subscribe(l Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.listeners[id] = l
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.listeners, id)
		})
	}
}

// publish delivers events in order to a snapshot of the listeners.
func (b *bus) publish(events ...Event) {
	if len(events) == 0 {
		return
	}
	b.mu.Lock()
	ls := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		ls = append(ls, l)
	}
	b.mu.Unlock()
	for _, ev := range events {
		for _, l := range ls {
			l(ev)
		}
	}
}
