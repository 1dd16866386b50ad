package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/jfreymuth/pulse"
	"github.com/rbright/tandem/internal/domain"
)

// Player plays synthesized speech on the default Pulse sink.
type Player struct {
	// Command plays non-WAV payloads from a temp file; defaults to pw-play.
	// The gain flag and the file path are appended.
	Command []string
}

// NewPlayer returns a Player that hands compressed payloads to argv.
func NewPlayer(argv []string) *Player {
	return &Player{Command: append([]string(nil), argv...)}
}

// Play blocks until speech has drained or ctx ends. volume is 0-100.
func (p *Player) Play(ctx context.Context, speech domain.Speech, volume int) error {
	if len(speech.Audio) == 0 {
		return errors.New("speech payload is empty")
	}

	wav, err := DecodeWAV(speech.Audio)
	if errors.Is(err, ErrNotWAV) {
		return p.playExternal(ctx, speech, volume)
	}
	if err != nil {
		return err
	}
	return PlaySamples(ctx, Samples(wav.PCM, wav.Channels, SpeakerGain(volume)), wav.SampleRate, "tandem speech")
}

// PlaySamples streams mono PCM16 samples to Pulse and waits for them to drain.
func PlaySamples(ctx context.Context, samples []int16, sampleRate int, mediaName string) error {
	if len(samples) == 0 {
		return nil
	}
	client, err := newClient("audio-speakers")
	if err != nil {
		return err
	}
	defer client.Close()

	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if ctx.Err() != nil || cursor >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.05),
		pulse.PlaybackMediaName(mediaName),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play %s: %w", mediaName, err)
	}
	return ctx.Err()
}

func (p *Player) playExternal(ctx context.Context, speech domain.Speech, volume int) error {
	argv := p.Command
	if len(argv) == 0 {
		argv = []string{"pw-play"}
	}
	file, err := os.CreateTemp("", "tandem-speech-*")
	if err != nil {
		return fmt.Errorf("create speech temp file: %w", err)
	}
	defer os.Remove(file.Name())
	if _, err := file.Write(speech.Audio); err != nil {
		file.Close()
		return fmt.Errorf("write speech temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close speech temp file: %w", err)
	}

	gain := strconv.FormatFloat(SpeakerGain(volume), 'f', 2, 64)
	args := append(append([]string(nil), argv[1:]...), "--volume", gain, file.Name())
	cmd := exec.CommandContext(ctx, argv[0], args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s %s: %w (%s)", argv[0], speech.MimeType, err, string(out))
	}
	return nil
}
