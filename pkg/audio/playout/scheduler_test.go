package playout_test

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/MrWong99/inkwell/pkg/audio"
	"github.com/MrWong99/inkwell/pkg/audio/playout"
)

// tenHz is a tiny format that keeps the arithmetic readable: one frame is
// 0.1 seconds.
var tenHz = audio.Format{SampleRate: 10, Channels: 1}

func fill(n int, v float32) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func TestScheduler_GaplessSequence(t *testing.T) {
	t.Parallel()
	s := playout.New(tenHz)

	var firstEnded, secondEnded atomic.Int32
	if _, err := s.Schedule(fill(3, 0.1), 0, func() { firstEnded.Add(1) }); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if _, err := s.Schedule(fill(2, 0.2), 0.3, func() { secondEnded.Add(1) }); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	out := make([]float32, 6)
	s.Render(out)
	want := []float32{0.1, 0.1, 0.1, 0.2, 0.2, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %v; want %v", i, out[i], want[i])
		}
	}
	if firstEnded.Load() != 1 || secondEnded.Load() != 1 {
		t.Errorf("ended callbacks = %d, %d; want 1, 1", firstEnded.Load(), secondEnded.Load())
	}
	if got := s.CurrentTime(); got < 0.59 || got > 0.61 {
		t.Errorf("CurrentTime = %v; want 0.6", got)
	}
	if s.Pending() != 0 {
		t.Errorf("Pending = %d; want 0", s.Pending())
	}
}

func TestScheduler_SpansRenderCalls(t *testing.T) {
	t.Parallel()
	s := playout.New(tenHz)
	var ended atomic.Bool
	if _, err := s.Schedule([]float32{0.1, 0.2, 0.3, 0.4}, 0.1, func() { ended.Store(true) }); err != nil {
		t.Fatal(err)
	}

	out := make([]float32, 3)
	s.Render(out)
	if out[0] != 0 || out[1] != 0.1 || out[2] != 0.2 {
		t.Errorf("first render = %v", out)
	}
	if ended.Load() {
		t.Fatal("source ended early")
	}
	s.Render(out)
	if out[0] != 0.3 || out[1] != 0.4 || out[2] != 0 {
		t.Errorf("second render = %v", out)
	}
	if !ended.Load() {
		t.Error("source should have ended")
	}
}

func TestScheduler_PastTimeStartsNow(t *testing.T) {
	t.Parallel()
	s := playout.New(tenHz)
	s.Render(make([]float32, 5))

	if _, err := s.Schedule([]float32{0.5}, 0, nil); err != nil {
		t.Fatal(err)
	}
	out := make([]float32, 2)
	s.Render(out)
	if out[0] != 0.5 || out[1] != 0 {
		t.Errorf("render = %v; want [0.5 0]", out)
	}
}

func TestScheduler_StopSilencesWithoutEnded(t *testing.T) {
	t.Parallel()
	s := playout.New(tenHz)
	var ended atomic.Int32
	playing, _ := s.Schedule(fill(4, 0.5), 0, func() { ended.Add(1) })
	queued, _ := s.Schedule(fill(4, 0.5), 1, func() { ended.Add(1) })

	out := make([]float32, 2)
	s.Render(out)
	playing.Stop()
	queued.Stop()
	playing.Stop()

	s.Render(out)
	s.Render(make([]float32, 20))
	if out[0] != 0 || out[1] != 0 {
		t.Errorf("render after stop = %v; want silence", out)
	}
	if ended.Load() != 0 {
		t.Errorf("ended called %d times; want 0", ended.Load())
	}
	if s.Pending() != 0 {
		t.Errorf("Pending = %d; want 0", s.Pending())
	}
}

func TestScheduler_MixAndClamp(t *testing.T) {
	t.Parallel()
	s := playout.New(tenHz)
	_, _ = s.Schedule([]float32{0.75, 0.25}, 0, nil)
	_, _ = s.Schedule([]float32{0.75, 0.25}, 0, nil)

	out := make([]float32, 2)
	s.Render(out)
	if out[0] != 1 || out[1] != 0.5 {
		t.Errorf("render = %v; want [1 0.5]", out)
	}
}

func TestScheduler_Stereo(t *testing.T) {
	t.Parallel()
	s := playout.New(audio.Format{SampleRate: 10, Channels: 2})
	_, _ = s.Schedule([]float32{0.1, -0.1, 0.2, -0.2}, 0.1, nil)

	out := make([]float32, 6)
	s.Render(out)
	want := []float32{0, 0, 0.1, -0.1, 0.2, -0.2}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %v; want %v", i, out[i], want[i])
		}
	}
}

func TestScheduler_Close(t *testing.T) {
	t.Parallel()
	s := playout.New(tenHz)
	_, _ = s.Schedule(fill(4, 0.5), 0, nil)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := s.Schedule(fill(1, 0.5), 0, nil); !errors.Is(err, playout.ErrClosed) {
		t.Errorf("Schedule after Close err = %v; want ErrClosed", err)
	}
	out := make([]float32, 4)
	s.Render(out)
	for i, v := range out {
		if v != 0 {
			t.Errorf("out[%d] = %v; want silence", i, v)
		}
	}
}
