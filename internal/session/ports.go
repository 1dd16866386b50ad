package session

import (
	"context"
	"errors"

	"github.com/rbright/tandem/internal/domain"
	"github.com/rbright/tandem/internal/fault"
	"github.com/rbright/tandem/internal/pipeline"
)

// ErrPipelineUnavailable indicates the turn runner was not wired.
var ErrPipelineUnavailable = errors.New("turn pipeline not configured")

// CaptureRequest carries the settings read when an utterance starts.
type CaptureRequest struct {
	Speaker     domain.Speaker
	MicVolume   int
	HighQuality bool
}

// Capture is one in-progress utterance. Stop yields the recording and
// releases the device; Cancel releases it without a recording.
type Capture interface {
	Stop() (domain.Recording, error)
	Cancel()
}

// Microphone opens captures.
type Microphone interface {
	Start(context.Context, CaptureRequest) (Capture, error)
}

// MicrophoneFunc adapts a function to the Microphone interface.
type MicrophoneFunc func(context.Context, CaptureRequest) (Capture, error)

func (f MicrophoneFunc) Start(ctx context.Context, req CaptureRequest) (Capture, error) {
	return f(ctx, req)
}

// TurnRunner executes one captured turn.
type TurnRunner interface {
	Run(context.Context, pipeline.Turn, pipeline.Progress) (domain.Message, error)
}

// Indicator is the controller-facing subset of indicator behavior.
type Indicator interface {
	ShowRecording(context.Context, domain.Speaker)
	ShowProcessing(context.Context, domain.Stage)
	ShowError(context.Context, string)
	CueComplete(context.Context)
	CueCancel(context.Context)
	Hide(context.Context)
}

type noopIndicator struct{}

func (noopIndicator) ShowRecording(context.Context, domain.Speaker) {}
func (noopIndicator) ShowProcessing(context.Context, domain.Stage)  {}
func (noopIndicator) ShowError(context.Context, string)             {}
func (noopIndicator) CueComplete(context.Context)                   {}
func (noopIndicator) CueCancel(context.Context)                     {}
func (noopIndicator) Hide(context.Context)                          {}

type unavailableRunner struct{}

func (unavailableRunner) Run(context.Context, pipeline.Turn, pipeline.Progress) (domain.Message, error) {
	return domain.Message{}, ErrPipelineUnavailable
}

type unavailableMicrophone struct{}

func (unavailableMicrophone) Start(context.Context, CaptureRequest) (Capture, error) {
	return nil, fault.Capture(fault.CaptureNoDevice, errors.New("no microphone configured"))
}
