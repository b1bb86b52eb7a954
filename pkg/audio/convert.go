package audio

import (
	"encoding/binary"
	"log/slog"
)

// RecognizerRate is the sample rate whisper-family models are trained on.
const RecognizerRate = 16000

// ForRecognizer converts a clip to 16 kHz mono. A clip already in that
// layout is returned unchanged.
// Conversion order: downmix first, then resample.
func ForRecognizer(c Clip) Clip {
	if c.SampleRate == RecognizerRate && c.Channels == 1 {
		return c
	}
	slog.Debug("audio: converting clip for recognizer",
		"sampleRate", c.SampleRate,
		"channels", c.Channels,
	)

	pcm := c.PCM
	if c.Channels > 1 {
		pcm = DownmixMono(pcm, c.Channels)
	}
	pcm = ResampleMono16(pcm, c.SampleRate, RecognizerRate)
	return Clip{PCM: pcm, SampleRate: RecognizerRate, Channels: 1}
}

// DownmixMono averages all channels of each interleaved int16 frame. Uses
// int32 arithmetic so the sum cannot overflow.
func DownmixMono(pcm []byte, channels int) []byte {
	if channels <= 1 {
		return pcm
	}
	frameBytes := 2 * channels
	frames := len(pcm) / frameBytes
	out := make([]byte, frames*2)
	for i := range frames {
		var sum int32
		for ch := range channels {
			idx := i*frameBytes + ch*2
			sum += int32(int16(binary.LittleEndian.Uint16(pcm[idx : idx+2])))
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(sum/int32(channels))))
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using linear
// interpolation. If srcRate == dstRate, the input is returned unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 {
		return pcm
	}
	if srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstSamples {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := int16(binary.LittleEndian.Uint16(pcm[srcIdx*2:]))
		s1 := s0
		if srcIdx+1 < srcSamples {
			s1 = int16(binary.LittleEndian.Uint16(pcm[(srcIdx+1)*2:]))
		}

		v := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// Float32 converts 16-bit signed little-endian PCM to float32 samples in
// [-1.0, 1.0). A trailing odd byte is ignored.
func Float32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
	}
	return samples
}
