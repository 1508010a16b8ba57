package audio

import "context"

// FrameFunc receives one capture frame. It runs on the device's callback
// goroutine and must return quickly; frame is only valid for the duration of
// the call unless the implementation documents otherwise.
type FrameFunc func(frame []float32)

// Capture is an open input stream.
type Capture interface {
	// Format returns the stream format.
	Format() Format

	// Start begins delivering frames to fn. It may be called once.
	Start(fn FrameFunc) error

	// Close stops the stream and releases the device. Safe to call more than
	// once.
	Close() error
}

// Source is a buffer scheduled on a [Playback] device.
type Source interface {
	// Stop silences the source immediately. Stopping a source that already
	// ended is a no-op. A stopped source never reports ended.
	Stop()
}

// Playback is an open output stream with its own sample clock.
type Playback interface {
	// Format returns the stream format.
	Format() Format

	// CurrentTime returns the device clock in seconds. It starts at zero when
	// the device opens and advances as samples are rendered.
	CurrentTime() float64

	// Schedule queues samples to start at device time at. A time already in
	// the past starts as soon as possible. onEnded, if non-nil, is called once
	// after the last sample has been rendered. It is called from the render
	// goroutine and must not call back into the device.
	Schedule(samples []float32, at float64, onEnded func()) (Source, error)

	// Close stops every source and releases the device. Safe to call more
	// than once.
	Close() error
}

// Devices opens audio hardware. Implementations wrap failures in
// [ErrDevice].
type Devices interface {
	OpenCapture(ctx context.Context, f Format, framesPerBuffer int) (Capture, error)
	OpenPlayback(ctx context.Context, f Format) (Playback, error)
}
