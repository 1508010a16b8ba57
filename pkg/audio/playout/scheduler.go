// Package playout provides a sample-clock output scheduler. It plays the role
// of an audio device context: buffers are scheduled at absolute device times,
// rendered gaplessly into whatever output callback drives the device, and
// report when they have ended.
//
// The scheduler does no I/O of its own. A driver calls [Scheduler.Render]
// from the device callback (see package portaudio), or from a test.
package playout

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/MrWong99/inkwell/pkg/audio"
)

// Compile-time interface assertion.
var _ audio.Playback = (*Scheduler)(nil)

// ErrClosed is returned by [Scheduler.Schedule] after [Scheduler.Close].
var ErrClosed = errors.New("playout: scheduler closed")

// defaultQueueCap is the initial capacity hint for the pending queue.
const defaultQueueCap = 16

// source is one scheduled buffer. Fields other than the immutable ones are
// guarded by the owning scheduler's mutex.
type source struct {
	sched   *Scheduler
	seq     uint64
	start   int64 // first frame on the device clock
	samples []float32
	onEnded func()

	pos     int // frames already rendered
	index   int // position in the pending heap, -1 once active
	active  bool
	stopped bool
	ended   bool
}

func (src *source) frames() int { return len(src.samples) / src.sched.format.Channels }

// Stop silences the source. It implements [audio.Source].
func (src *source) Stop() {
	s := src.sched
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(src)
}

// Scheduler mixes scheduled buffers onto a frame clock that advances only as
// output is rendered. All exported methods are safe for concurrent use.
type Scheduler struct {
	format audio.Format

	mu      sync.Mutex
	clock   int64 // frames rendered so far
	seq     uint64
	pending sourceHeap
	active  []*source
	closed  bool
}

// New creates a scheduler for the given output format. A format with no
// channels is treated as mono.
func New(f audio.Format) *Scheduler {
	if f.Channels <= 0 {
		f.Channels = 1
	}
	s := &Scheduler{
		format:  f,
		pending: make(sourceHeap, 0, defaultQueueCap),
	}
	heap.Init(&s.pending)
	return s
}

// Format returns the output format.
func (s *Scheduler) Format() audio.Format { return s.format }

// CurrentTime returns the number of seconds rendered so far.
func (s *Scheduler) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.clock) / float64(s.format.SampleRate)
}

// Pending returns the number of sources that have neither ended nor been
// stopped.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Len() + len(s.active)
}

// Schedule queues samples (interleaved in the scheduler's format) to begin at
// device time at, in seconds. Times in the past start at the next rendered
// frame. onEnded is called once from [Scheduler.Render] after the final
// frame.
func (s *Scheduler) Schedule(samples []float32, at float64, onEnded func()) (audio.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("playout: schedule: %w", ErrClosed)
	}
	start := int64(math.Round(at * float64(s.format.SampleRate)))
	if start < s.clock {
		start = s.clock
	}
	s.seq++
	src := &source{
		sched:   s,
		seq:     s.seq,
		start:   start,
		samples: samples,
		onEnded: onEnded,
	}
	heap.Push(&s.pending, src)
	return src, nil
}

// Render fills out with the mix of every source audible during the next
// len(out)/channels frames and advances the clock. Mixed samples are clamped
// to [-1, 1]. Ended callbacks run after the internal lock is released.
func (s *Scheduler) Render(out []float32) {
	clear(out)
	ch := s.format.Channels
	n := int64(len(out) / ch)

	s.mu.Lock()
	base := s.clock
	end := base + n
	for s.pending.Len() > 0 && s.pending[0].start < end {
		src := heap.Pop(&s.pending).(*source)
		src.active = true
		s.active = append(s.active, src)
	}

	var ended []func()
	keep := s.active[:0]
	for _, src := range s.active {
		f := max(src.start-base, 0)
		total := src.frames()
		for ; f < n && src.pos < total; f++ {
			for c := range ch {
				out[int(f)*ch+c] += src.samples[src.pos*ch+c]
			}
			src.pos++
		}
		if src.pos < total {
			keep = append(keep, src)
			continue
		}
		src.ended = true
		src.active = false
		if src.onEnded != nil {
			ended = append(ended, src.onEnded)
		}
	}
	clear(s.active[len(keep):])
	s.active = keep
	s.clock = end
	s.mu.Unlock()

	for i, v := range out {
		out[i] = min(max(v, -1), 1)
	}
	for _, fn := range ended {
		fn()
	}
}

// Close stops every source. Subsequent calls to Schedule fail with
// [ErrClosed]. Render keeps producing silence.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, src := range s.active {
		src.stopped = true
		src.active = false
	}
	for _, src := range s.pending {
		src.stopped = true
		src.index = -1
	}
	s.active = nil
	s.pending = s.pending[:0]
	return nil
}

func (s *Scheduler) stopLocked(src *source) {
	if src.stopped || src.ended {
		return
	}
	src.stopped = true
	switch {
	case src.active:
		src.active = false
		for i, a := range s.active {
			if a == src {
				s.active = append(s.active[:i], s.active[i+1:]...)
				break
			}
		}
	case src.index >= 0:
		heap.Remove(&s.pending, src.index)
	}
}
