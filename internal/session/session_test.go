package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rbright/tandem/internal/consultation"
	"github.com/rbright/tandem/internal/domain"
	"github.com/rbright/tandem/internal/pipeline"
)

type fakeIndicator struct {
	recordings  atomic.Int32
	processing  atomic.Int32
	completions atomic.Int32
	cancelCues  atomic.Int32

	mu     sync.Mutex
	errors []string
}

func (f *fakeIndicator) ShowRecording(context.Context, domain.Speaker) { f.recordings.Add(1) }
func (f *fakeIndicator) ShowProcessing(context.Context, domain.Stage)  { f.processing.Add(1) }
func (f *fakeIndicator) CueComplete(context.Context)                   { f.completions.Add(1) }
func (f *fakeIndicator) CueCancel(context.Context)                     { f.cancelCues.Add(1) }
func (*fakeIndicator) Hide(context.Context)                            {}

func (f *fakeIndicator) ShowError(_ context.Context, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, reason)
}

func (f *fakeIndicator) lastError() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errors) == 0 {
		return ""
	}
	return f.errors[len(f.errors)-1]
}

type fakeCapture struct {
	recording domain.Recording
	err       error
	stops     atomic.Int32
	cancels   atomic.Int32
}

func (f *fakeCapture) Stop() (domain.Recording, error) {
	f.stops.Add(1)
	return f.recording, f.err
}

func (f *fakeCapture) Cancel() { f.cancels.Add(1) }

type fakeMicrophone struct {
	capture *fakeCapture
	err     error

	mu       sync.Mutex
	requests []CaptureRequest
}

func (f *fakeMicrophone) Start(_ context.Context, req CaptureRequest) (Capture, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.capture, nil
}

func (f *fakeMicrophone) lastRequest() CaptureRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type runFunc func(context.Context, pipeline.Turn, pipeline.Progress) (domain.Message, error)

type fakeRunner struct {
	run runFunc

	mu    sync.Mutex
	turns []pipeline.Turn
}

func (f *fakeRunner) Run(ctx context.Context, turn pipeline.Turn, progress pipeline.Progress) (domain.Message, error) {
	f.mu.Lock()
	f.turns = append(f.turns, turn)
	f.mu.Unlock()
	return f.run(ctx, turn, progress)
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.turns)
}

func (f *fakeRunner) lastTurn() pipeline.Turn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.turns[len(f.turns)-1]
}

func translated(text string) runFunc {
	return func(_ context.Context, turn pipeline.Turn, progress pipeline.Progress) (domain.Message, error) {
		progress(domain.ProcessingState{Speaker: turn.Speaker, Stage: domain.StageTranscribe})
		progress(domain.ProcessingState{Speaker: turn.Speaker, Stage: domain.StageTranslate})
		src, tgt := turn.Languages.Route(turn.Speaker)
		return domain.Message{
			Speaker:        turn.Speaker,
			OriginalText:   "original",
			TranslatedText: text,
			OriginalLang:   src,
			TranslatedLang: tgt,
			Confidence:     95,
		}, nil
	}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	ctrl      *Controller
	mic       *fakeMicrophone
	capture   *fakeCapture
	runner    *fakeRunner
	indicator *fakeIndicator
	clock     *testClock
}

func newHarness(run runFunc) *harness {
	capture := &fakeCapture{recording: domain.Recording{Audio: []byte{1, 2, 3, 4}, MimeType: "audio/wav"}}
	h := &harness{
		capture:   capture,
		mic:       &fakeMicrophone{capture: capture},
		runner:    &fakeRunner{run: run},
		indicator: &fakeIndicator{},
		clock:     newTestClock(),
	}
	h.ctrl = NewController(Config{
		Store:      consultation.NewStore(consultation.WithClock(h.clock.Now)),
		Runner:     h.runner,
		Microphone: h.mic,
		Indicator:  h.indicator,
	})
	return h
}

func waitForOutcome(t *testing.T, ch <-chan Outcome) Outcome {
	t.Helper()
	select {
	case outcome := <-ch:
		return outcome
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for turn outcome")
		return Outcome{}
	}
}
