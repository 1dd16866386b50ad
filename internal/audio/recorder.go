package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
	"github.com/rbright/tandem/internal/domain"
	"github.com/rbright/tandem/internal/fault"
)

const (
	standardSampleRate    = 16000
	highQualitySampleRate = 48000
	fragmentDuration      = 20 * time.Millisecond
)

// RecorderConfig selects the input source and optional debug dump directory.
type RecorderConfig struct {
	Input    string
	Fallback string
	DumpDir  string
	Logger   *slog.Logger
}

// CaptureOptions are read from settings when each utterance starts.
type CaptureOptions struct {
	MicVolume   int
	HighQuality bool
}

// Recorder opens one Pulse record stream per utterance.
type Recorder struct {
	cfg RecorderConfig
}

// NewRecorder returns a Recorder for cfg.
func NewRecorder(cfg RecorderConfig) *Recorder {
	return &Recorder{cfg: cfg}
}

// Start selects a device and begins recording mono PCM16.
func (r *Recorder) Start(ctx context.Context, opts CaptureOptions) (*Capture, error) {
	selection, err := SelectDevice(ctx, r.cfg.Input, r.cfg.Fallback)
	if err != nil {
		return nil, err
	}
	if selection.Warning != "" && r.cfg.Logger != nil {
		r.cfg.Logger.Warn(selection.Warning)
	}

	client, err := newClient("audio-input-microphone")
	if err != nil {
		return nil, err
	}
	source, err := client.SourceByID(selection.Device.ID)
	if err != nil {
		client.Close()
		return nil, fault.Capture(fault.CaptureNoDevice, fmt.Errorf("resolve source %q: %w", selection.Device.ID, err))
	}

	sampleRate := standardSampleRate
	if opts.HighQuality {
		sampleRate = highQualitySampleRate
	}
	capture := &Capture{
		device:     selection.Device,
		client:     client,
		sampleRate: sampleRate,
		gain:       MicGain(opts.MicVolume),
		dumpDir:    r.cfg.DumpDir,
		logger:     r.cfg.Logger,
		startedAt:  time.Now(),
	}

	fragmentBytes := sampleRate * 2 * int(fragmentDuration/time.Millisecond) / 1000
	writer := pulse.NewWriter(writerFunc(capture.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(sampleRate),
		pulse.RecordBufferFragmentSize(uint32(fragmentBytes)),
		pulse.RecordMediaName("tandem utterance"),
	)
	if err != nil {
		client.Close()
		return nil, classifyPulseError(fmt.Errorf("create pulse record stream: %w", err))
	}
	capture.stream = stream
	stream.Start()
	return capture, nil
}

// Capture is one in-progress utterance. Stop or Cancel releases the device;
// both are safe to call more than once.
type Capture struct {
	device     Device
	client     *pulse.Client
	stream     *pulse.RecordStream
	sampleRate int
	gain       float64
	dumpDir    string
	logger     *slog.Logger
	startedAt  time.Time

	mu       sync.Mutex
	pcm      []byte
	released bool
}

// Device returns the source being recorded.
func (c *Capture) Device() Device {
	return c.device
}

// Stop ends the utterance and returns it as a WAV recording. An utterance
// with no frames yields an empty Recording rather than an error.
func (c *Capture) Stop() (domain.Recording, error) {
	pcm, ok := c.release()
	if !ok {
		return domain.Recording{}, fault.Capture(fault.CaptureOther, fmt.Errorf("capture already stopped"))
	}
	if len(pcm) == 0 {
		return domain.Recording{MimeType: "audio/wav"}, nil
	}

	pcm = ApplyGain(pcm, c.gain)
	c.dump(pcm)
	return domain.Recording{
		Audio:    EncodeWAV(pcm, c.sampleRate, 1),
		MimeType: "audio/wav",
		Duration: WAV{SampleRate: c.sampleRate, Channels: 1, PCM: pcm}.Duration(),
	}, nil
}

// Cancel discards the utterance.
func (c *Capture) Cancel() {
	_, _ = c.release()
}

func (c *Capture) release() ([]byte, bool) {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return nil, false
	}
	c.released = true
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	pcm := c.pcm
	c.pcm = nil
	return pcm, true
}

func (c *Capture) onPCM(buffer []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return 0, io.EOF
	}
	c.pcm = append(c.pcm, buffer...)
	return len(buffer), nil
}

func (c *Capture) dump(pcm []byte) {
	if c.dumpDir == "" {
		return
	}
	if err := os.MkdirAll(c.dumpDir, 0o700); err != nil {
		c.logWarn("unable to create debug audio dir", err)
		return
	}
	name := fmt.Sprintf("utterance-%s.wav", c.startedAt.Format("20060102-150405.000"))
	path := filepath.Join(c.dumpDir, name)
	if err := os.WriteFile(path, EncodeWAV(pcm, c.sampleRate, 1), 0o600); err != nil {
		c.logWarn("unable to write debug audio dump", err)
	}
}

func (c *Capture) logWarn(msg string, err error) {
	if c.logger == nil {
		return
	}
	c.logger.Warn(msg, "error", err.Error())
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
