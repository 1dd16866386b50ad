package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

const wavHeaderSize = 44

// WAV is a decoded PCM16 little-endian WAV payload.
type WAV struct {
	SampleRate int
	Channels   int
	PCM        []byte
}

// Duration returns the playback length of the payload.
func (w WAV) Duration() time.Duration {
	frameBytes := w.Channels * 2
	if w.SampleRate <= 0 || frameBytes <= 0 {
		return 0
	}
	frames := len(w.PCM) / frameBytes
	return time.Duration(frames) * time.Second / time.Duration(w.SampleRate)
}

// EncodeWAV wraps raw little-endian PCM16 bytes with a minimal WAV header.
func EncodeWAV(pcm []byte, sampleRate int, channels int) []byte {
	if channels <= 0 {
		channels = 1
	}
	const bitsPerSample = 16
	byteRate := sampleRate * channels * (bitsPerSample / 8)
	blockAlign := channels * (bitsPerSample / 8)

	out := make([]byte, wavHeaderSize+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], bitsPerSample)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[wavHeaderSize:], pcm)
	return out
}

// WriteWAV writes an encoded WAV to w.
func WriteWAV(w io.Writer, pcm []byte, sampleRate int, channels int) error {
	_, err := w.Write(EncodeWAV(pcm, sampleRate, channels))
	return err
}

// SilentWAV returns d of mono silence.
func SilentWAV(d time.Duration, sampleRate int) []byte {
	samples := int(math.Round(d.Seconds() * float64(sampleRate)))
	if samples < 0 {
		samples = 0
	}
	return EncodeWAV(make([]byte, samples*2), sampleRate, 1)
}

// ErrNotWAV marks payloads that are not RIFF/WAVE PCM16.
var ErrNotWAV = errors.New("not a PCM16 WAV payload")

// DecodeWAV parses a RIFF/WAVE PCM16 payload, skipping unknown chunks.
func DecodeWAV(data []byte) (WAV, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return WAV{}, ErrNotWAV
	}

	var (
		out       WAV
		haveFmt   bool
		bitsPerSm uint16
	)
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		end := body + size
		if end > len(data) {
			// Streamed WAVs often carry a placeholder data size.
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return WAV{}, fmt.Errorf("%w: short fmt chunk", ErrNotWAV)
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			out.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			out.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSm = binary.LittleEndian.Uint16(data[body+14 : body+16])
			if format != 1 || bitsPerSm != 16 {
				return WAV{}, fmt.Errorf("%w: format %d with %d bits", ErrNotWAV, format, bitsPerSm)
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return WAV{}, fmt.Errorf("%w: data before fmt", ErrNotWAV)
			}
			out.PCM = data[body:end]
			return out, nil
		}

		offset = end + size%2
	}
	return WAV{}, fmt.Errorf("%w: missing data chunk", ErrNotWAV)
}

// ApplyGain scales PCM16 samples by gain, clipping at the int16 range.
func ApplyGain(pcm []byte, gain float64) []byte {
	out := make([]byte, len(pcm)-len(pcm)%2)
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := float64(int16(binary.LittleEndian.Uint16(pcm[i:])))
		binary.LittleEndian.PutUint16(out[i:], uint16(clampInt16(sample*gain)))
	}
	return out
}

// Samples converts PCM16 bytes to mono samples, averaging interleaved channels.
func Samples(pcm []byte, channels int, gain float64) []int16 {
	if channels <= 0 {
		channels = 1
	}
	frameBytes := channels * 2
	out := make([]int16, len(pcm)/frameBytes)
	for frame := range out {
		sum := 0.0
		for ch := 0; ch < channels; ch++ {
			at := frame*frameBytes + ch*2
			sum += float64(int16(binary.LittleEndian.Uint16(pcm[at:])))
		}
		out[frame] = clampInt16(sum / float64(channels) * gain)
	}
	return out
}

// MicGain maps the 0-100 microphone setting to a linear gain where the
// default setting of 75 is unity.
func MicGain(volume int) float64 {
	return float64(clampPercent(volume)) / 75
}

// SpeakerGain maps the 0-100 speaker setting to a linear gain.
func SpeakerGain(volume int) float64 {
	return float64(clampPercent(volume)) / 100
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func clampInt16(v float64) int16 {
	v = math.Round(v)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
