// Package audio defines the PCM formats, sample conversions, and device
// interfaces used by the idea pad live session.
//
// Two formats matter: microphone capture is 16 kHz mono and the remote model
// speaks 24 kHz mono. Both travel on the wire as little-endian signed 16-bit
// PCM, base64 encoded inside JSON messages. Devices work in float32 samples
// in the range [-1, 1].
package audio

import (
	"errors"
	"fmt"
	"time"
)

// ErrDevice is wrapped by every failure to open, start, or drive an audio
// device (including denied microphone access).
var ErrDevice = errors.New("audio: device error")

// FrameSize is the number of samples in one capture frame.
const FrameSize = 4096

// Format describes a mono or multi-channel PCM stream.
type Format struct {
	// SampleRate is the number of samples per second per channel.
	SampleRate int

	// Channels is the number of interleaved channels.
	Channels int
}

var (
	// InputFormat is the capture format sent to the live model.
	InputFormat = Format{SampleRate: 16000, Channels: 1}

	// OutputFormat is the format of audio produced by the live model.
	OutputFormat = Format{SampleRate: 24000, Channels: 1}
)

// MIMEType returns the realtime-input MIME type for PCM in this format,
// e.g. "audio/pcm;rate=16000".
func (f Format) MIMEType() string {
	return fmt.Sprintf("audio/pcm;rate=%d", f.SampleRate)
}

// String returns a human-readable form such as "16000Hz mono".
func (f Format) String() string {
	ch := "mono"
	if f.Channels == 2 {
		ch = "stereo"
	} else if f.Channels > 2 {
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%dHz %s", f.SampleRate, ch)
}

// Seconds returns the playback length of n interleaved samples.
func (f Format) Seconds(n int) float64 {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	return float64(n) / float64(f.SampleRate*f.Channels)
}

// Duration is [Format.Seconds] as a [time.Duration].
func (f Format) Duration(n int) time.Duration {
	return time.Duration(f.Seconds(n) * float64(time.Second))
}
