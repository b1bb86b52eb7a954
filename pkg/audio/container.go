// Package audio holds helpers for short recorded clips: container sniffing,
// WAV decoding and encoding, and PCM conversion to the 16 kHz mono layout
// that speech recognizers expect.
package audio

import "bytes"

// Container identifies the file format of an uploaded clip.
type Container string

const (
	ContainerUnknown Container = ""
	ContainerWAV     Container = "wav"
	ContainerWebM    Container = "webm"
	ContainerOgg     Container = "ogg"
	ContainerMP3     Container = "mp3"
)

var (
	magicEBML = []byte{0x1a, 0x45, 0xdf, 0xa3}
	magicID3  = []byte("ID3")
)

// DetectContainer sniffs the leading bytes of data. Browsers record WebM or
// Ogg via MediaRecorder; native clients usually send WAV.
func DetectContainer(data []byte) Container {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return ContainerWAV
	case bytes.HasPrefix(data, magicEBML):
		return ContainerWebM
	case bytes.HasPrefix(data, []byte("OggS")):
		return ContainerOgg
	case bytes.HasPrefix(data, magicID3):
		return ContainerMP3
	case len(data) >= 2 && data[0] == 0xff && data[1]&0xe0 == 0xe0:
		// MPEG frame sync.
		return ContainerMP3
	}
	return ContainerUnknown
}

// Ext returns the file extension for c including the leading dot. Unknown
// containers map to ".wav", which is what most recognizers assume.
func (c Container) Ext() string {
	if c == ContainerUnknown {
		return ".wav"
	}
	return "." + string(c)
}

// MIME returns the media type for c.
func (c Container) MIME() string {
	switch c {
	case ContainerWebM:
		return "audio/webm"
	case ContainerOgg:
		return "audio/ogg"
	case ContainerMP3:
		return "audio/mpeg"
	default:
		return "audio/wav"
	}
}
