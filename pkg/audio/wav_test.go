package audio_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/MrWong99/lettersprout/pkg/audio"
)

func TestEncodeDecodeWAV(t *testing.T) {
	t.Parallel()
	in := audio.Clip{PCM: samplesToBytes([]int16{1, -1, 300, -300}), SampleRate: 22050, Channels: 2}
	wav := audio.EncodeWAV(in)

	if len(wav) != 44+len(in.PCM) {
		t.Fatalf("wav length = %d, want %d", len(wav), 44+len(in.PCM))
	}
	got, err := audio.DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if got.SampleRate != 22050 || got.Channels != 2 {
		t.Errorf("format = %d/%d, want 22050/2", got.SampleRate, got.Channels)
	}
	if !bytes.Equal(got.PCM, in.PCM) {
		t.Errorf("pcm mismatch")
	}
}

func TestDecodeWAV_SkipsUnknownChunks(t *testing.T) {
	t.Parallel()
	base := audio.EncodeWAV(audio.Clip{PCM: samplesToBytes([]int16{7, 8}), SampleRate: 16000, Channels: 1})

	// Insert an odd-sized LIST chunk between fmt and data to exercise padding.
	list := []byte("LIST")
	list = binary.LittleEndian.AppendUint32(list, 3)
	list = append(list, 'a', 'b', 'c', 0)

	var wav []byte
	wav = append(wav, base[:36]...)
	wav = append(wav, list...)
	wav = append(wav, base[36:]...)

	got, err := audio.DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if s := bytesToSamples(got.PCM); len(s) != 2 || s[0] != 7 || s[1] != 8 {
		t.Errorf("samples = %v, want [7 8]", s)
	}
}

func TestDecodeWAV_TruncatedData(t *testing.T) {
	t.Parallel()
	wav := audio.EncodeWAV(audio.Clip{PCM: samplesToBytes([]int16{1, 2, 3}), SampleRate: 16000, Channels: 1})
	// Streaming recorders leave a huge placeholder size.
	binary.LittleEndian.PutUint32(wav[40:44], 0xffffffff)
	got, err := audio.DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if len(got.PCM) != 6 {
		t.Errorf("pcm length = %d, want 6", len(got.PCM))
	}
}

func TestDecodeWAV_Errors(t *testing.T) {
	t.Parallel()
	float := audio.EncodeWAV(audio.Clip{PCM: []byte{0, 0, 0, 0}, SampleRate: 16000, Channels: 1})
	binary.LittleEndian.PutUint16(float[20:22], 3) // IEEE float

	tests := []struct {
		name string
		data []byte
		is   error
	}{
		{"not riff", []byte("hello world!"), nil},
		{"float samples", float, audio.ErrUnsupportedWAV},
		{"header only", audio.EncodeWAV(audio.Clip{SampleRate: 16000, Channels: 1})[:36], nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := audio.DecodeWAV(tt.data)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("err = %v, want %v", err, tt.is)
			}
		})
	}
}

func TestDetectContainer(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
		want audio.Container
		ext  string
	}{
		{"wav", audio.EncodeWAV(audio.Clip{SampleRate: 16000, Channels: 1}), audio.ContainerWAV, ".wav"},
		{"webm", []byte{0x1a, 0x45, 0xdf, 0xa3, 0x01}, audio.ContainerWebM, ".webm"},
		{"ogg", []byte("OggS\x00\x02"), audio.ContainerOgg, ".ogg"},
		{"mp3 id3", []byte("ID3\x04\x00"), audio.ContainerMP3, ".mp3"},
		{"mp3 frame sync", []byte{0xff, 0xfb, 0x90}, audio.ContainerMP3, ".mp3"},
		{"unknown", []byte("garbage"), audio.ContainerUnknown, ".wav"},
		{"empty", nil, audio.ContainerUnknown, ".wav"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := audio.DetectContainer(tt.data)
			if got != tt.want {
				t.Errorf("DetectContainer = %q, want %q", got, tt.want)
			}
			if got.Ext() != tt.ext {
				t.Errorf("Ext = %q, want %q", got.Ext(), tt.ext)
			}
		})
	}
}
