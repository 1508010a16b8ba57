// Package live defines the Provider interface for realtime duplex audio
// backends such as the Gemini Live API.
//
// A live session carries microphone audio up and a stream of server messages
// down: transcription deltas for both sides of the conversation, synthesised
// audio chunks, turn boundaries, and barge-in notifications. The receiving
// side is a single channel so that messages are handled strictly in arrival
// order.
//
// All implementations must be safe for concurrent use.
package live

import (
	"context"
	"errors"
	"fmt"
)

// ErrClosed is returned by [Session.SendAudio] after the session has ended.
var ErrClosed = errors.New("live: session closed")

// ServerError is a protocol-level error reported by the remote service. A
// session that receives one ends and reports it from [Session.Err].
type ServerError struct {
	Code    int
	Message string
}

func (e *ServerError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("live: server error %d: %s", e.Code, e.Message)
	}
	return "live: server error: " + e.Message
}

// Chunk is one base64-encoded media payload in either direction.
type Chunk struct {
	// MIMEType describes the payload, e.g. "audio/pcm;rate=16000".
	MIMEType string

	// Data is the base64-encoded payload.
	Data string
}

// Message is one decoded server message. Fields that the message did not
// carry are left at their zero values.
type Message struct {
	// InputTranscription is a delta of the recognised user speech.
	InputTranscription string

	// OutputTranscription is a delta of the text of the model's speech.
	OutputTranscription string

	// TurnComplete marks the end of one conversational turn.
	TurnComplete bool

	// Audio holds inline audio parts of the model turn, in order.
	Audio []Chunk

	// Interrupted reports that the user barged in and queued output should
	// be discarded.
	Interrupted bool
}

// Config is the initial configuration of a live session.
type Config struct {
	// Instructions is the system instruction that fixes the persona.
	Instructions string

	// Voice selects a prebuilt voice. Empty uses the provider default.
	Voice string

	// InputTranscription requests transcription of the user's speech.
	InputTranscription bool

	// OutputTranscription requests transcription of the model's speech.
	OutputTranscription bool

	// SendQueue is the capacity of the outgoing audio queue. When the queue is
	// full the oldest chunk is dropped. Zero uses the provider default.
	SendQueue int

	// OnDrop, if set, is called each time a queued chunk is dropped. It must
	// not block.
	OnDrop func()
}

// Session is an open live session.
type Session interface {
	// SendAudio queues a chunk for transmission and returns without waiting
	// for network I/O.
	SendAudio(c Chunk) error

	// Messages returns the channel of server messages. It is closed when the
	// session ends for any reason.
	Messages() <-chan Message

	// Err returns the reason the session ended once Messages is closed. It is
	// nil for a normal close by either side.
	Err() error

	// Dropped returns the number of outgoing chunks discarded so far.
	Dropped() uint64

	// Close ends the session. Safe to call more than once.
	Close() error
}

// Provider opens live sessions.
type Provider interface {
	// Connect dials the service and sends the session setup. The returned
	// session is ready to accept audio.
	Connect(ctx context.Context, cfg Config) (Session, error)
}
