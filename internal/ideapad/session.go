// Package ideapad runs the voice brainstorming session: microphone audio
// streams to a live model, the model's speech is scheduled gaplessly on the
// speaker, and both sides are transcribed turn by turn.
//
// A [Session] is single-use. Its state only moves forward:
//
//	idle → connecting → active → idle | failed
//
// Once a session has left the connecting or active state it cannot be
// reconnected; construct a new one. [Manager] owns the at-most-one-session
// rule for a process.
package ideapad

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/inkwell/internal/observe"
	"github.com/MrWong99/inkwell/pkg/audio"
	"github.com/MrWong99/inkwell/pkg/provider/live"
)

// ErrInvalidState is returned for an operation the session's current state
// does not allow, such as sending audio while idle or reconnecting a used
// session.
var ErrInvalidState = errors.New("ideapad: invalid state")

// State is the connection state of a [Session].
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateActive     State = "active"
	StateFailed     State = "failed"
)

// live reports whether the state holds devices or a remote session.
func (s State) live() bool { return s == StateConnecting || s == StateActive }

// Speaker identifies who said a transcript entry.
type Speaker string

const (
	SpeakerLocal  Speaker = "local"
	SpeakerRemote Speaker = "remote"
)

// Entry is one transcript line. Entries are appended in pairs, local first,
// once per completed turn.
type Entry struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// Config holds the dependencies and tunables of a session.
type Config struct {
	// Devices opens the microphone and speaker. Required.
	Devices audio.Devices

	// Live dials the remote model. Required.
	Live live.Provider

	// Instructions is the persona system instruction.
	Instructions string

	// Voice selects the model voice. Empty uses the provider default.
	Voice string

	// FrameSize is the capture frame length in samples. Zero uses
	// [audio.FrameSize].
	FrameSize int

	// SendQueue is the outgoing audio queue depth. Zero uses the provider
	// default.
	SendQueue int

	// Metrics receives live-session instruments. Nil uses
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Session is one live brainstorming session. All methods are safe for
// concurrent use.
type Session struct {
	id      string
	cfg     Config
	metrics *observe.Metrics
	bus     *bus

	mu          sync.Mutex
	state       State
	err         error
	used        bool
	closed      bool
	startedAt   time.Time
	capture     audio.Capture
	playback    audio.Playback
	remote      live.Session
	outputClock float64
	pending     map[uint64]audio.Source
	nextSource  uint64
	inBuf       strings.Builder
	outBuf      strings.Builder
	transcript  []Entry

	cancelConnect context.CancelFunc
	connectDone   chan struct{}
	recvDone      chan struct{}
}

// New creates an idle session identified by id.
func New(id string, cfg Config) *Session {
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = audio.FrameSize
	}
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Session{
		id:      id,
		cfg:     cfg,
		metrics: m,
		bus:     newBus(),
		state:   StateIdle,
		pending: make(map[uint64]audio.Source),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the reason a failed session failed, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Transcript returns a copy of the completed transcript entries.
func (s *Session) Transcript() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.transcript)
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	ID         string    `json:"id"`
	State      State     `json:"state"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt,omitzero"`
	Transcript []Entry   `json:"transcript"`
}

// Snapshot returns the session's state and transcript.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:         s.id,
		State:      s.state,
		StartedAt:  s.startedAt,
		Transcript: slices.Clone(s.transcript),
	}
	if snap.Transcript == nil {
		snap.Transcript = []Entry{}
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}

// Subscribe registers l for the session's events and returns a function that
// removes it. Listeners run synchronously on the session's goroutines and must
// neither block nor call [Session.Close].
func (s *Session) Subscribe(l Listener) (unsubscribe func()) { return s.bus.subscribe(l) }

// Connect opens both audio devices, dials the live model, and starts
// streaming the microphone. It fails with [ErrInvalidState] unless the
// session is fresh. A connect that fails leaves the session failed; one
// cancelled by [Session.Close] leaves it idle.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.used || s.closed {
		s.mu.Unlock()
		return fmt.Errorf("%w: connect from %s", ErrInvalidState, s.state)
	}
	s.used = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancelConnect = cancel
	s.connectDone = make(chan struct{})
	s.startedAt = time.Now().UTC()
	ev := s.transitionLocked(StateConnecting, nil)
	s.mu.Unlock()

	defer close(s.connectDone)
	defer cancel()
	s.bus.publish(ev)
	s.metrics.ActiveSessions.Add(ctx, 1)

	log := observe.Logger(ctx).With("session_id", s.id)
	ctx, span := observe.StartSpan(ctx, "ideapad.connect")
	start := time.Now()
	err := s.connect(ctx)
	observe.EndSpan(span, err)
	s.metrics.LiveConnectDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			log.Info("ideapad: connect cancelled")
			s.teardown(StateIdle, nil)
			return fmt.Errorf("ideapad: connect: %w", ctx.Err())
		}
		log.Error("ideapad: connect failed", "err", err)
		s.teardown(StateFailed, err)
		return fmt.Errorf("ideapad: connect: %w", err)
	}
	log.Info("ideapad: session active")
	return nil
}

// connect acquires every resource. Whatever it stored on s before failing is
// released by teardown.
func (s *Session) connect(ctx context.Context) error {
	capture, err := s.cfg.Devices.OpenCapture(ctx, audio.InputFormat, s.cfg.FrameSize)
	if err != nil {
		return fmt.Errorf("open capture: %w", err)
	}
	s.mu.Lock()
	s.capture = capture
	s.mu.Unlock()

	playback, err := s.cfg.Devices.OpenPlayback(ctx, audio.OutputFormat)
	if err != nil {
		return fmt.Errorf("open playback: %w", err)
	}
	s.mu.Lock()
	s.playback = playback
	s.mu.Unlock()

	remote, err := s.cfg.Live.Connect(ctx, live.Config{
		Instructions:        s.cfg.Instructions,
		Voice:               s.cfg.Voice,
		InputTranscription:  true,
		OutputTranscription: true,
		SendQueue:           s.cfg.SendQueue,
		OnDrop: func() {
			s.metrics.LiveFramesDropped.Add(context.Background(), 1)
		},
	})
	if err != nil {
		return fmt.Errorf("dial live model: %w", err)
	}

	s.mu.Lock()
	s.remote = remote
	if ctx.Err() != nil {
		s.mu.Unlock()
		return ctx.Err()
	}
	s.recvDone = make(chan struct{})
	ev := s.transitionLocked(StateActive, nil)
	s.mu.Unlock()
	s.bus.publish(ev)

	go s.receiveLoop(remote)

	if err := capture.Start(s.onFrame); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	return nil
}

// SendFrame encodes one frame of microphone samples and queues it for the
// live model. It never waits for network I/O.
func (s *Session) SendFrame(frame []float32) error {
	s.mu.Lock()
	remote, state := s.remote, s.state
	s.mu.Unlock()
	if state != StateActive || remote == nil {
		return fmt.Errorf("%w: send frame while %s", ErrInvalidState, state)
	}
	err := remote.SendAudio(live.Chunk{
		MIMEType: audio.InputFormat.MIMEType(),
		Data:     audio.EncodeFrame(frame),
	})
	if err != nil {
		return fmt.Errorf("ideapad: send frame: %w", err)
	}
	s.metrics.LiveFramesSent.Add(context.Background(), 1)
	return nil
}

func (s *Session) onFrame(frame []float32) {
	if err := s.SendFrame(frame); err != nil && !errors.Is(err, ErrInvalidState) {
		slog.Debug("ideapad: frame not sent", "session_id", s.id, "err", err)
	}
}

func (s *Session) receiveLoop(remote live.Session) {
	defer close(s.recvDone)
	for msg := range remote.Messages() {
		s.handle(msg)
	}
	if err := remote.Err(); err != nil {
		slog.Error("ideapad: live session ended", "session_id", s.id, "err", err)
		s.teardown(StateFailed, err)
		return
	}
	slog.Info("ideapad: live session closed by server", "session_id", s.id)
	s.teardown(StateIdle, nil)
}

// handle applies one server message: transcription deltas, then the turn
// boundary, then audio, then an interruption.
func (s *Session) handle(msg live.Message) {
	ctx := context.Background()
	var events []Event

	s.mu.Lock()
	if !s.state.live() {
		s.mu.Unlock()
		return
	}
	s.outBuf.WriteString(msg.OutputTranscription)
	s.inBuf.WriteString(msg.InputTranscription)

	if msg.TurnComplete {
		turn := []Entry{
			{Speaker: SpeakerLocal, Text: s.inBuf.String()},
			{Speaker: SpeakerRemote, Text: s.outBuf.String()},
		}
		s.inBuf.Reset()
		s.outBuf.Reset()
		s.transcript = append(s.transcript, turn...)
		for i := range turn {
			events = append(events, Event{Kind: EventTranscript, Session: s.id, Entry: &turn[i]})
		}
		s.metrics.LiveTurns.Add(ctx, 1)
	}

	for _, c := range msg.Audio {
		s.scheduleLocked(ctx, c)
	}

	if msg.Interrupted {
		s.flushLocked()
		s.metrics.LiveInterruptions.Add(ctx, 1)
	}
	s.mu.Unlock()

	s.bus.publish(events...)
}

// scheduleLocked queues one chunk of model audio right after the previous
// one, or now if the speaker has already caught up.
func (s *Session) scheduleLocked(ctx context.Context, c live.Chunk) {
	if s.playback == nil {
		return
	}
	samples, err := audio.DecodeChunk(c.Data)
	if err != nil {
		slog.Warn("ideapad: bad audio chunk", "session_id", s.id, "mime_type", c.MIMEType, "err", err)
		return
	}
	if len(samples) == 0 {
		return
	}
	start := max(s.outputClock, s.playback.CurrentTime())
	id := s.nextSource
	s.nextSource++
	src, err := s.playback.Schedule(samples, start, func() { s.sourceEnded(id) })
	if err != nil {
		slog.Warn("ideapad: schedule audio", "session_id", s.id, "err", err)
		return
	}
	s.outputClock = start + s.playback.Format().Seconds(len(samples))
	s.pending[id] = src
	s.metrics.LiveAudioScheduled.Add(ctx, 1)
}

func (s *Session) sourceEnded(id uint64) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// flushLocked stops every queued source and rewinds the output clock.
func (s *Session) flushLocked() {
	for id, src := range s.pending {
		src.Stop()
		delete(s.pending, id)
	}
	s.outputClock = 0
}

// PendingAudio returns the number of scheduled sources that have not ended.
func (s *Session) PendingAudio() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close ends the session from any state. It cancels and waits for an
// in-flight [Session.Connect], closes the remote session, and releases both
// devices. Calling Close again is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel, connectDone := s.cancelConnect, s.connectDone
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-connectDone
	}
	s.teardown(StateIdle, nil)

	s.mu.Lock()
	recvDone := s.recvDone
	s.mu.Unlock()
	if recvDone != nil {
		<-recvDone
	}
	return nil
}

// teardown moves a live session to target and releases everything it holds.
// It is a no-op for a session that is not live.
func (s *Session) teardown(target State, cause error) {
	s.mu.Lock()
	if !s.state.live() {
		s.mu.Unlock()
		return
	}
	s.flushLocked()
	capture, playback, remote := s.capture, s.playback, s.remote
	s.capture, s.playback, s.remote = nil, nil, nil
	ev := s.transitionLocked(target, cause)
	s.mu.Unlock()

	if capture != nil {
		_ = capture.Close()
	}
	if remote != nil {
		_ = remote.Close()
	}
	if playback != nil {
		_ = playback.Close()
	}
	s.metrics.ActiveSessions.Add(context.Background(), -1)
	s.bus.publish(ev)
}

func (s *Session) transitionLocked(to State, cause error) Event {
	s.state = to
	s.err = cause
	ev := Event{Kind: EventState, Session: s.id, State: to}
	if cause != nil {
		ev.Error = cause.Error()
	}
	return ev
}
