package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// FloatToPCM16 converts float32 samples to little-endian 16-bit PCM. Each
// sample is scaled by 32768 and clamped to the int16 range before conversion.
// NaN encodes as silence.
func FloatToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := min(max(s*32768, -32768), 32767)
		if v != v {
			v = 0
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

// PCM16ToFloat converts little-endian 16-bit PCM to float32 samples by
// dividing by 32768. A trailing odd byte is ignored.
func PCM16ToFloat(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768
	}
	return out
}

// PCM16ToInts converts little-endian 16-bit PCM to int16 samples.
func PCM16ToInts(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

// EncodeFrame converts a capture frame to base64-encoded PCM16, the payload
// of a realtime-input chunk.
func EncodeFrame(samples []float32) string {
	return base64.StdEncoding.EncodeToString(FloatToPCM16(samples))
}

// DecodeChunk decodes a base64 PCM16 payload into float32 samples ready for
// playback.
func DecodeChunk(data string) ([]float32, error) {
	pcm, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("audio: decode chunk: %w", err)
	}
	return PCM16ToFloat(pcm), nil
}
