// Package wavfile frames recorded PCM16 audio in a WAV container for
// one-shot dictation uploads, and reads WAV files back for the CLI.
package wavfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/youpy/go-wav"

	"github.com/MrWong99/inkwell/pkg/audio"
)

// MIMEType is the content type of encoded output.
const MIMEType = "audio/wav"

const bitsPerSample = 16

// Encode wraps interleaved 16-bit samples in a WAV container.
func Encode(samples []int16, f audio.Format) ([]byte, error) {
	if f.Channels < 1 || f.Channels > 2 {
		return nil, fmt.Errorf("wavfile: encode: unsupported channel count %d", f.Channels)
	}
	frames := len(samples) / f.Channels
	out := make([]wav.Sample, frames)
	for i := range out {
		for c := range f.Channels {
			out[i].Values[c] = int(samples[i*f.Channels+c])
		}
	}

	var buf bytes.Buffer
	w := wav.NewWriter(&buf, uint32(frames), uint16(f.Channels), uint32(f.SampleRate), bitsPerSample)
	if err := w.WriteSamples(out); err != nil {
		return nil, fmt.Errorf("wavfile: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reads a 16-bit PCM WAV file and returns its interleaved samples and
// format.
func Decode(data []byte) ([]int16, audio.Format, error) {
	r := wav.NewReader(bytes.NewReader(data))
	wf, err := r.Format()
	if err != nil {
		return nil, audio.Format{}, fmt.Errorf("wavfile: decode: %w", err)
	}
	if wf.BitsPerSample != bitsPerSample {
		return nil, audio.Format{}, fmt.Errorf("wavfile: decode: unsupported bit depth %d", wf.BitsPerSample)
	}
	f := audio.Format{SampleRate: int(wf.SampleRate), Channels: int(wf.NumChannels)}

	var out []int16
	for {
		samples, err := r.ReadSamples()
		for _, s := range samples {
			for c := range f.Channels {
				out = append(out, int16(s.Values[c]))
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, audio.Format{}, fmt.Errorf("wavfile: decode: %w", err)
		}
	}
	return out, f, nil
}

// Recorder accumulates capture frames up to a fixed length. Its Write method
// is an [audio.FrameFunc] and is safe to call from the capture callback.
type Recorder struct {
	format audio.Format
	limit  int // samples; zero means unbounded

	mu      sync.Mutex
	samples []int16
	full    chan struct{}
}

// NewRecorder returns a recorder that stops accepting samples after max
// samples. A max of zero records until [Recorder.WAV] is called.
func NewRecorder(f audio.Format, max int) *Recorder {
	return &Recorder{format: f, limit: max, full: make(chan struct{})}
}

// Write appends a float32 frame as PCM16.
func (r *Recorder) Write(frame []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.limit > 0 && len(r.samples) >= r.limit {
		return
	}
	pcm := audio.PCM16ToInts(audio.FloatToPCM16(frame))
	if r.limit > 0 && len(r.samples)+len(pcm) >= r.limit {
		pcm = pcm[:r.limit-len(r.samples)]
		r.samples = append(r.samples, pcm...)
		close(r.full)
		return
	}
	r.samples = append(r.samples, pcm...)
}

// Full is closed once the recorder has reached its limit.
func (r *Recorder) Full() <-chan struct{} { return r.full }

// Len returns the number of recorded samples.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

// WAV encodes everything recorded so far.
func (r *Recorder) WAV() ([]byte, error) {
	r.mu.Lock()
	samples := append([]int16(nil), r.samples...)
	r.mu.Unlock()
	return Encode(samples, r.format)
}
