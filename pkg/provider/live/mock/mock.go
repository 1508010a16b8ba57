// Package mock provides a test double for the live.Provider interface.
//
// Provider hands out a scripted Session; tests push server messages with
// [Session.Emit], end the session with [Session.Finish], and inspect the audio
// the code under test sent.
//
// Example:
//
//	sess := mock.NewSession()
//	p := &mock.Provider{Session: sess}
//	s, _ := p.Connect(ctx, live.Config{})
//	sess.Emit(live.Message{OutputTranscription: "Hi"})
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/inkwell/pkg/provider/live"
)

// Provider is a mock implementation of live.Provider.
type Provider struct {
	mu sync.Mutex

	// Session is returned by Connect. A fresh one is created when nil.
	Session *Session

	// ConnectErr, if non-nil, is returned by Connect.
	ConnectErr error

	// Block, if non-nil, makes Connect wait until the channel is closed or the
	// context is cancelled. A cancelled context returns ctx.Err().
	Block chan struct{}

	// Entered, if non-nil, receives a value when Connect starts.
	Entered chan struct{}

	// ConnectCalls records the config of every Connect call in order.
	ConnectCalls []live.Config
}

// Connect implements live.Provider.
func (p *Provider) Connect(ctx context.Context, cfg live.Config) (live.Session, error) {
	p.mu.Lock()
	p.ConnectCalls = append(p.ConnectCalls, cfg)
	block, entered := p.Block, p.Entered
	p.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ConnectErr != nil {
		return nil, p.ConnectErr
	}
	if p.Session == nil {
		p.Session = NewSession()
	}
	p.Session.onDrop = cfg.OnDrop
	return p.Session, nil
}

// Calls returns a copy of the recorded Connect configs.
func (p *Provider) Calls() []live.Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.ConnectCalls)
}

// Session is a mock implementation of live.Session.
type Session struct {
	mu       sync.Mutex
	messages chan live.Message
	sent     []live.Chunk
	err      error
	finished bool
	onDrop   func()

	// SendErr, if non-nil, is returned by SendAudio.
	SendErr error

	// DroppedCount is returned by Dropped.
	DroppedCount uint64

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// NewSession returns a session with a buffered message channel.
func NewSession() *Session {
	return &Session{messages: make(chan live.Message, 64)}
}

// SendAudio implements live.Session and records c.
func (s *Session) SendAudio(c live.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SendErr != nil {
		return s.SendErr
	}
	if s.finished {
		return live.ErrClosed
	}
	s.sent = append(s.sent, c)
	return nil
}

// Sent returns every chunk passed to SendAudio.
func (s *Session) Sent() []live.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.sent)
}

// Emit delivers m on the Messages channel. It is a no-op once finished.
func (s *Session) Emit(m live.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.messages <- m
}

// Drop simulates the transport discarding a queued chunk.
func (s *Session) Drop() {
	s.mu.Lock()
	s.DroppedCount++
	fn := s.onDrop
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Finish ends the session as the remote side would, with err reported by
// Err. It is a no-op once finished.
func (s *Session) Finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.finished = true
	s.err = err
	close(s.messages)
}

// Messages implements live.Session.
func (s *Session) Messages() <-chan live.Message { return s.messages }

// Err implements live.Session.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Dropped implements live.Session.
func (s *Session) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.DroppedCount
}

// Close implements live.Session. It finishes the session cleanly.
func (s *Session) Close() error {
	s.mu.Lock()
	s.CallCountClose++
	s.mu.Unlock()
	s.Finish(nil)
	return nil
}

// Closes returns how many times Close was called.
func (s *Session) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CallCountClose
}
