package ideapad

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// ErrNoSession is returned by [Manager.Stop] when nothing is running.
var ErrNoSession = errors.New("ideapad: no session")

// Manager owns the single live session of a process. Starting a new session
// supersedes the current one: the old session is closed before the new one
// connects. All exported methods are safe for concurrent use.
type Manager struct {
	bus *bus

	mu      sync.Mutex
	cfg     Config
	current *Session
	unsub   func()
}

// NewManager creates a Manager that builds sessions from cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg, bus: newBus()}
}

// SetConfig replaces the configuration used by subsequently started sessions.
// The running session keeps its own.
func (m *Manager) SetConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
}

// Start closes the current session, if any, and connects a new one. The new
// session is returned even when its connect fails so callers can inspect it.
func (m *Manager) Start(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	old, oldUnsub := m.current, m.unsub
	s := New(uuid.NewString(), m.cfg)
	m.current = s
	m.unsub = s.Subscribe(func(ev Event) { m.bus.publish(ev) })
	m.mu.Unlock()

	if old != nil {
		slog.Info("ideapad: superseding session", "old_session_id", old.ID(), "session_id", s.ID())
		_ = old.Close()
		oldUnsub()
	}
	return s, s.Connect(ctx)
}

// Stop closes the current session.
func (m *Manager) Stop() error {
	m.mu.Lock()
	cur, unsub := m.current, m.unsub
	m.current, m.unsub = nil, nil
	m.mu.Unlock()

	if cur == nil {
		return ErrNoSession
	}
	err := cur.Close()
	unsub()
	slog.Info("ideapad: session stopped", "session_id", cur.ID())
	return err
}

// Current returns the most recently started session that has not been
// stopped, or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Subscribe registers l for the events of every session the manager starts.
func (m *Manager) Subscribe(l Listener) (unsubscribe func()) { return m.bus.subscribe(l) }

// Close stops the current session, if any. It is intended for shutdown.
func (m *Manager) Close() error {
	if err := m.Stop(); err != nil && !errors.Is(err, ErrNoSession) {
		return err
	}
	return nil
}
