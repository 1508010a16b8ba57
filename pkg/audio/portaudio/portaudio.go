// Package portaudio opens the system default microphone and speaker through
// PortAudio. Playback is driven by a [playout.Scheduler] rendered from the
// output stream callback, so the device clock is the number of frames handed
// to the hardware.
//
// PortAudio reference-counts initialisation, so every opened stream holds
// one Initialize/Terminate pair of its own.
package portaudio

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pa "github.com/gordonklaus/portaudio"

	"github.com/MrWong99/inkwell/pkg/audio"
	"github.com/MrWong99/inkwell/pkg/audio/playout"
)

// OutputFramesPerBuffer is the render quantum of playback streams.
const OutputFramesPerBuffer = 1024

// Compile-time interface assertions.
var (
	_ audio.Devices  = (*Devices)(nil)
	_ audio.Capture  = (*Capture)(nil)
	_ audio.Playback = (*Playback)(nil)
)

// Devices opens default PortAudio streams.
type Devices struct{}

// New returns a [Devices] for the host's default audio hardware.
func New() *Devices { return &Devices{} }

// OpenCapture opens the default input device. Frames are delivered in
// float32 with framesPerBuffer samples per channel.
func (d *Devices) OpenCapture(ctx context.Context, f audio.Format, framesPerBuffer int) (audio.Capture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w: %w", audio.ErrDevice, err)
	}
	c := &Capture{format: f}
	stream, err := pa.OpenDefaultStream(f.Channels, 0, float64(f.SampleRate), framesPerBuffer, c.callback)
	if err != nil {
		_ = pa.Terminate()
		return nil, fmt.Errorf("portaudio: open capture %s: %w: %w", f, audio.ErrDevice, err)
	}
	c.stream = stream
	return c, nil
}

// OpenPlayback opens the default output device and starts rendering silence
// until sources are scheduled.
func (d *Devices) OpenPlayback(ctx context.Context, f audio.Format) (audio.Playback, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w: %w", audio.ErrDevice, err)
	}
	sched := playout.New(f)
	stream, err := pa.OpenDefaultStream(0, f.Channels, float64(f.SampleRate), OutputFramesPerBuffer, sched.Render)
	if err != nil {
		_ = pa.Terminate()
		return nil, fmt.Errorf("portaudio: open playback %s: %w: %w", f, audio.ErrDevice, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = pa.Terminate()
		return nil, fmt.Errorf("portaudio: start playback: %w: %w", audio.ErrDevice, err)
	}
	return &Playback{Scheduler: sched, stream: stream}, nil
}

// ─── Capture ──────────────────────────────────────────────────────────────────

// Capture is an open PortAudio input stream.
type Capture struct {
	format audio.Format
	stream *pa.Stream
	fn     atomic.Pointer[audio.FrameFunc]

	mu      sync.Mutex
	started bool
	closed  bool
}

// callback runs on the PortAudio thread. The buffer is reused by PortAudio,
// so each frame is copied before it leaves the callback.
func (c *Capture) callback(in []float32) {
	fn := c.fn.Load()
	if fn == nil {
		return
	}
	frame := make([]float32, len(in))
	copy(frame, in)
	(*fn)(frame)
}

// Format implements [audio.Capture].
func (c *Capture) Format() audio.Format { return c.format }

// Start implements [audio.Capture]. Delivered frames are owned by fn.
func (c *Capture) Start(fn audio.FrameFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.started {
		return fmt.Errorf("portaudio: capture already started or closed: %w", audio.ErrDevice)
	}
	c.fn.Store(&fn)
	if err := c.stream.Start(); err != nil {
		c.fn.Store(nil)
		return fmt.Errorf("portaudio: start capture: %w: %w", audio.ErrDevice, err)
	}
	c.started = true
	return nil
}

// Close implements [audio.Capture].
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.fn.Store(nil)
	var err error
	if c.started {
		err = c.stream.Stop()
	}
	if cerr := c.stream.Close(); err == nil {
		err = cerr
	}
	_ = pa.Terminate()
	if err != nil {
		return fmt.Errorf("portaudio: close capture: %w", err)
	}
	return nil
}

// ─── Playback ─────────────────────────────────────────────────────────────────

// Playback is an open PortAudio output stream. Scheduling, the clock, and
// stop handles come from the embedded scheduler.
type Playback struct {
	*playout.Scheduler
	stream *pa.Stream

	closeOnce sync.Once
	closeErr  error
}

// Close stops every source, stops the stream, and releases the device.
func (p *Playback) Close() error {
	p.closeOnce.Do(func() {
		_ = p.Scheduler.Close()
		err := p.stream.Stop()
		if cerr := p.stream.Close(); err == nil {
			err = cerr
		}
		_ = pa.Terminate()
		if err != nil {
			p.closeErr = fmt.Errorf("portaudio: close playback: %w", err)
		}
	})
	return p.closeErr
}
