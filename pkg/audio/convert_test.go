package audio_test

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/MrWong99/lettersprout/pkg/audio"
)

// samplesToBytes converts a slice of int16 samples to little-endian byte representation.
func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// bytesToSamples converts a little-endian byte slice to int16 samples.
func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

func TestDownmixMono(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		in       []int16
		channels int
		want     []int16
	}{
		{"mono passthrough", []int16{1, 2, 3}, 1, []int16{1, 2, 3}},
		{"stereo", []int16{100, 200, -100, -200}, 2, []int16{150, -150}},
		{"stereo max no overflow", []int16{32767, 32767}, 2, []int16{32767}},
		{"three channels", []int16{3, 6, 9}, 3, []int16{6}},
		{"partial trailing frame dropped", []int16{10, 20, 30}, 2, []int16{15}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := bytesToSamples(audio.DownmixMono(samplesToBytes(tt.in), tt.channels))
			if len(got) != len(tt.want) {
				t.Fatalf("length mismatch: got %d, want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("sample %d: got %d, want %d", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestResampleMono16_SameRate(t *testing.T) {
	t.Parallel()
	pcm := samplesToBytes([]int16{100, 200, 300})
	out := audio.ResampleMono16(pcm, 48000, 48000)
	if len(out) != len(pcm) {
		t.Fatalf("length mismatch: got %d, want %d", len(out), len(pcm))
	}
}

func TestResampleMono16_Downsample(t *testing.T) {
	t.Parallel()
	// 48 kHz → 16 kHz keeps every third sample when the signal is constant.
	in := make([]int16, 48)
	for i := range in {
		in[i] = 1000
	}
	out := bytesToSamples(audio.ResampleMono16(samplesToBytes(in), 48000, 16000))
	if len(out) != 16 {
		t.Fatalf("got %d samples, want 16", len(out))
	}
	for i, s := range out {
		if s != 1000 {
			t.Errorf("sample %d: got %d, want 1000", i, s)
		}
	}
}

func TestResampleMono16_InvalidRate(t *testing.T) {
	t.Parallel()
	pcm := samplesToBytes([]int16{1, 2})
	if out := audio.ResampleMono16(pcm, 0, 16000); len(out) != len(pcm) {
		t.Errorf("invalid rate should return input unchanged")
	}
}

func TestForRecognizer(t *testing.T) {
	t.Parallel()
	stereo := make([]int16, 44100*2/10) // 100 ms of 44.1 kHz stereo
	for i := range stereo {
		stereo[i] = 500
	}
	got := audio.ForRecognizer(audio.Clip{PCM: samplesToBytes(stereo), SampleRate: 44100, Channels: 2})
	if got.SampleRate != audio.RecognizerRate || got.Channels != 1 {
		t.Fatalf("format = %dHz/%dch, want 16000Hz/1ch", got.SampleRate, got.Channels)
	}
	if d := got.Duration(); d < 99*time.Millisecond || d > 101*time.Millisecond {
		t.Errorf("duration = %v, want ~100ms", d)
	}
}

func TestForRecognizer_Passthrough(t *testing.T) {
	t.Parallel()
	in := audio.Clip{PCM: samplesToBytes([]int16{1, 2, 3}), SampleRate: 16000, Channels: 1}
	got := audio.ForRecognizer(in)
	if &got.PCM[0] != &in.PCM[0] {
		t.Error("expected the input buffer to be reused")
	}
}

func TestFloat32(t *testing.T) {
	t.Parallel()
	got := audio.Float32(append(samplesToBytes([]int16{0, 16384, -32768}), 0x01))
	want := []float32{0, 0.5, -1}
	if len(got) != len(want) {
		t.Fatalf("length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %v, want %v", i, got[i], want[i])
		}
	}
}
