package wavfile_test

import (
	"bytes"
	"testing"

	"github.com/MrWong99/inkwell/pkg/audio"
	"github.com/MrWong99/inkwell/pkg/audio/wavfile"
)

func TestEncodeDecode(t *testing.T) {
	samples := []int16{0, 1000, -1000, 32767, -32768}
	data, err := wavfile.Encode(samples, audio.InputFormat)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) || !bytes.Contains(data[:16], []byte("WAVE")) {
		t.Fatalf("missing RIFF/WAVE header: %q", data[:16])
	}

	got, f, err := wavfile.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f != audio.InputFormat {
		t.Errorf("format = %v; want %v", f, audio.InputFormat)
	}
	if len(got) != len(samples) {
		t.Fatalf("len = %d; want %d", len(got), len(samples))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Errorf("sample %d = %d; want %d", i, got[i], samples[i])
		}
	}
}

func TestEncode_RejectsManyChannels(t *testing.T) {
	if _, err := wavfile.Encode([]int16{1, 2, 3}, audio.Format{SampleRate: 8000, Channels: 3}); err == nil {
		t.Error("expected error for 3 channels")
	}
}

func TestRecorder_StopsAtLimit(t *testing.T) {
	r := wavfile.NewRecorder(audio.InputFormat, 6)
	r.Write([]float32{0.5, 0.5, 0.5, 0.5})
	select {
	case <-r.Full():
		t.Fatal("recorder full too early")
	default:
	}
	r.Write([]float32{-0.5, -0.5, -0.5, -0.5})
	r.Write([]float32{0.25})

	select {
	case <-r.Full():
	default:
		t.Fatal("recorder should be full")
	}
	if r.Len() != 6 {
		t.Fatalf("Len = %d; want 6", r.Len())
	}
	data, err := r.WAV()
	if err != nil {
		t.Fatalf("WAV: %v", err)
	}
	got, _, err := wavfile.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []int16{16384, 16384, 16384, 16384, -16384, -16384}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d; want %d", i, got[i], want[i])
		}
	}
}
