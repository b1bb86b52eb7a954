package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const bitsPerSample = 16

// ErrUnsupportedWAV is returned by DecodeWAV for WAV files that are not
// 16-bit integer PCM.
var ErrUnsupportedWAV = errors.New("audio: unsupported wav encoding")

// Clip is decoded 16-bit signed little-endian PCM audio.
type Clip struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// Duration returns the playback length of the clip.
func (c Clip) Duration() time.Duration {
	bytesPerSec := c.SampleRate * c.Channels * bitsPerSample / 8
	if bytesPerSec <= 0 {
		return 0
	}
	return time.Duration(len(c.PCM)) * time.Second / time.Duration(bytesPerSec)
}

// DecodeWAV parses a RIFF/WAVE file and returns its PCM payload. Chunks other
// than "fmt " and "data" are skipped. A data chunk whose declared size runs
// past the end of the file is truncated, since some recorders never patch
// the header after streaming.
func DecodeWAV(data []byte) (Clip, error) {
	if DetectContainer(data) != ContainerWAV {
		return Clip{}, errors.New("audio: not a wav file")
	}

	var (
		clip    Clip
		haveFmt bool
	)
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		end := body + size
		if end > len(data) {
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return Clip{}, errors.New("audio: wav fmt chunk too short")
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			clip.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			clip.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			// 0xFFFE is WAVE_FORMAT_EXTENSIBLE; accept it when the sample width is 16.
			if (format != 1 && format != 0xfffe) || bits != bitsPerSample {
				return Clip{}, fmt.Errorf("%w: format %d, %d bits", ErrUnsupportedWAV, format, bits)
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return Clip{}, errors.New("audio: wav data chunk before fmt chunk")
			}
			pcm := data[body:end]
			clip.PCM = pcm[:len(pcm)&^1]
			return clip, nil
		}

		// Chunks are word aligned.
		off = end + size%2
	}
	return Clip{}, errors.New("audio: wav file has no data chunk")
}

// EncodeWAV wraps the clip's PCM in a canonical 44-byte RIFF/WAVE header.
func EncodeWAV(c Clip) []byte {
	byteRate := c.SampleRate * c.Channels * bitsPerSample / 8
	blockAlign := c.Channels * bitsPerSample / 8
	dataSize := len(c.PCM)

	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(c.Channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(c.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], c.PCM)

	return buf
}
