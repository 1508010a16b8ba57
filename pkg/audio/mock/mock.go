// Package mock provides in-memory implementations of the [audio.Devices],
// [audio.Capture], and [audio.Playback] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported fields
// that the test can set to control return values.
//
// Typical usage:
//
//	devices := &mock.Devices{}
//	sess := ideapad.New(cfg, provider, devices)
//	_ = sess.Connect(ctx)
//	devices.Capture.Emit(frame)      // drive the capture callback
//	devices.Playback.SetTime(1.5)    // move the device clock
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/inkwell/pkg/audio"
)

// ─── Devices ──────────────────────────────────────────────────────────────────

// OpenCaptureCall records one call to [Devices.OpenCapture].
type OpenCaptureCall struct {
	Format          audio.Format
	FramesPerBuffer int
}

// Devices is a mock implementation of [audio.Devices].
type Devices struct {
	mu sync.Mutex

	// Capture is returned by OpenCapture. A fresh one is created on first use
	// when left nil.
	Capture *Capture

	// Playback is returned by OpenPlayback. A fresh one is created on first
	// use when left nil.
	Playback *Playback

	// OpenCaptureErr, when non-nil, is returned by OpenCapture.
	OpenCaptureErr error

	// OpenPlaybackErr, when non-nil, is returned by OpenPlayback.
	OpenPlaybackErr error

	// OpenCaptureCalls records every OpenCapture call in order.
	OpenCaptureCalls []OpenCaptureCall

	// OpenPlaybackCalls records the format of every OpenPlayback call.
	OpenPlaybackCalls []audio.Format
}

// OpenCapture implements [audio.Devices].
func (d *Devices) OpenCapture(_ context.Context, f audio.Format, framesPerBuffer int) (audio.Capture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.OpenCaptureCalls = append(d.OpenCaptureCalls, OpenCaptureCall{Format: f, FramesPerBuffer: framesPerBuffer})
	if d.OpenCaptureErr != nil {
		return nil, d.OpenCaptureErr
	}
	if d.Capture == nil {
		d.Capture = &Capture{}
	}
	d.Capture.setFormat(f)
	return d.Capture, nil
}

// OpenPlayback implements [audio.Devices].
func (d *Devices) OpenPlayback(_ context.Context, f audio.Format) (audio.Playback, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.OpenPlaybackCalls = append(d.OpenPlaybackCalls, f)
	if d.OpenPlaybackErr != nil {
		return nil, d.OpenPlaybackErr
	}
	if d.Playback == nil {
		d.Playback = &Playback{}
	}
	d.Playback.setFormat(f)
	return d.Playback, nil
}

// ─── Capture ──────────────────────────────────────────────────────────────────

// Capture is a mock implementation of [audio.Capture]. Frames are injected
// with [Capture.Emit].
type Capture struct {
	mu     sync.Mutex
	format audio.Format
	fn     audio.FrameFunc

	// StartErr, when non-nil, is returned by Start.
	StartErr error

	// CallCountStart records how many times Start was called.
	CallCountStart int

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

func (c *Capture) setFormat(f audio.Format) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.format = f
}

// Format implements [audio.Capture].
func (c *Capture) Format() audio.Format {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.format
}

// Start implements [audio.Capture].
func (c *Capture) Start(fn audio.FrameFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountStart++
	if c.StartErr != nil {
		return c.StartErr
	}
	c.fn = fn
	return nil
}

// Close implements [audio.Capture]. After Close, Emit is a no-op.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountClose++
	c.fn = nil
	return nil
}

// Started reports whether a frame handler is installed.
func (c *Capture) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fn != nil
}

// Emit delivers frame to the handler installed by Start, as the device
// callback would. It reports whether a handler was installed.
func (c *Capture) Emit(frame []float32) bool {
	c.mu.Lock()
	fn := c.fn
	c.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(frame)
	return true
}

// ─── Playback ─────────────────────────────────────────────────────────────────

// Source is a buffer scheduled on a mock [Playback].
type Source struct {
	mu      sync.Mutex
	samples []float32
	at      float64
	onEnded func()
	stopped bool
	ended   bool
}

// Stop implements [audio.Source].
func (s *Source) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		s.stopped = true
	}
}

// At returns the device time the source was scheduled for.
func (s *Source) At() float64 { return s.at }

// Samples returns the scheduled samples.
func (s *Source) Samples() []float32 { return s.samples }

// Stopped reports whether Stop was called before the source ended.
func (s *Source) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// End marks the source as played out and fires its ended callback, unless it
// was stopped or already ended.
func (s *Source) End() {
	s.mu.Lock()
	if s.stopped || s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	fn := s.onEnded
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Playback is a mock implementation of [audio.Playback]. Its clock only
// moves when the test calls [Playback.SetTime].
type Playback struct {
	mu      sync.Mutex
	format  audio.Format
	now     float64
	sources []*Source

	// ScheduleErr, when non-nil, is returned by Schedule.
	ScheduleErr error

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

func (p *Playback) setFormat(f audio.Format) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.format = f
}

// Format implements [audio.Playback].
func (p *Playback) Format() audio.Format {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.format
}

// SetTime moves the device clock to t seconds.
func (p *Playback) SetTime(t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = t
}

// CurrentTime implements [audio.Playback].
func (p *Playback) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.now
}

// Schedule implements [audio.Playback] and records the source.
func (p *Playback) Schedule(samples []float32, at float64, onEnded func()) (audio.Source, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ScheduleErr != nil {
		return nil, p.ScheduleErr
	}
	src := &Source{samples: samples, at: at, onEnded: onEnded}
	p.sources = append(p.sources, src)
	return src, nil
}

// Sources returns every source scheduled so far, in scheduling order.
func (p *Playback) Sources() []*Source {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.sources)
}

// Close implements [audio.Playback].
func (p *Playback) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallCountClose++
	return nil
}
