package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func pcm16(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func TestEncodeDecodeWAV(t *testing.T) {
	pcm := pcm16(0, 1000, -1000, 32767)
	encoded := EncodeWAV(pcm, 16000, 1)
	require.Len(t, encoded, wavHeaderSize+len(pcm))
	require.Equal(t, "RIFF", string(encoded[0:4]))
	require.Equal(t, "WAVE", string(encoded[8:12]))

	decoded, err := DecodeWAV(encoded)
	require.NoError(t, err)
	require.Equal(t, 16000, decoded.SampleRate)
	require.Equal(t, 1, decoded.Channels)
	require.Equal(t, pcm, decoded.PCM)
}

func TestDecodeWAVSkipsUnknownChunks(t *testing.T) {
	encoded := EncodeWAV(pcm16(5, 6), 8000, 1)

	var withList bytes.Buffer
	withList.Write(encoded[:36])
	withList.WriteString("LIST")
	_ = binary.Write(&withList, binary.LittleEndian, uint32(3))
	withList.Write([]byte{1, 2, 3, 0}) // odd chunk plus pad byte
	withList.Write(encoded[36:])

	decoded, err := DecodeWAV(withList.Bytes())
	require.NoError(t, err)
	require.Equal(t, pcm16(5, 6), decoded.PCM)
}

func TestDecodeWAVRejectsOtherFormats(t *testing.T) {
	_, err := DecodeWAV([]byte("ID3\x03mp3 payload"))
	require.ErrorIs(t, err, ErrNotWAV)

	float := EncodeWAV(pcm16(1), 16000, 1)
	binary.LittleEndian.PutUint16(float[20:22], 3)
	_, err = DecodeWAV(float)
	require.ErrorIs(t, err, ErrNotWAV)
}

func TestSilentWAVDuration(t *testing.T) {
	decoded, err := DecodeWAV(SilentWAV(2*time.Second, 44100))
	require.NoError(t, err)
	require.Equal(t, 2*time.Second, decoded.Duration())
	require.Equal(t, make([]byte, 44100*2*2), decoded.PCM)
}

func TestApplyGainClips(t *testing.T) {
	out := ApplyGain(pcm16(100, -100, 30000, -30000), 2)
	require.Equal(t, pcm16(200, -200, 32767, -32768), out)

	require.Equal(t, pcm16(50), ApplyGain(append(pcm16(100), 0x7f), 0.5), "trailing odd byte is dropped")
}

func TestSamplesDownmixesStereo(t *testing.T) {
	stereo := pcm16(100, 300, -200, -400)
	require.Equal(t, []int16{200, -300}, Samples(stereo, 2, 1))
	require.Equal(t, []int16{50, -50}, Samples(pcm16(100, -100), 1, 0.5))
}

func TestVolumeGains(t *testing.T) {
	require.InDelta(t, 1.0, MicGain(75), 1e-9)
	require.InDelta(t, 0.0, MicGain(-5), 1e-9)
	require.InDelta(t, 100.0/75, MicGain(150), 1e-9)
	require.InDelta(t, 0.5, SpeakerGain(50), 1e-9)
	require.InDelta(t, 1.0, SpeakerGain(101), 1e-9)
}
