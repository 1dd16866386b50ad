// Package fault defines the typed failure taxonomy shared by the pipeline,
// gateway, store, and controller.
package fault

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rbright/tandem/internal/domain"
)

// Kind classifies a failure for routing and user messaging.
type Kind string

const (
	KindInvalidConfiguration Kind = "invalid_configuration"
	KindCapture              Kind = "capture"
	KindNoAudioCaptured      Kind = "no_audio_captured"
	KindNoSpeechDetected     Kind = "no_speech_detected"
	KindTranslationEmpty     Kind = "translation_empty"
	KindStageTimeout         Kind = "stage_timeout"
	KindNetwork              Kind = "network"
	KindAuth                 Kind = "auth"
	KindRateLimited          Kind = "rate_limited"
	KindGateway              Kind = "gateway"
	KindConcurrentTurn       Kind = "concurrent_turn"
	KindBusy                 Kind = "busy"
	KindNoActiveSession      Kind = "no_active_session"
	KindEmptySession         Kind = "empty_session"
	KindInvalidTransition    Kind = "invalid_transition"
)

// CaptureReason distinguishes device and permission failures.
type CaptureReason string

const (
	CaptureNotAllowed CaptureReason = "not_allowed"
	CaptureNoDevice   CaptureReason = "no_device"
	CaptureOther      CaptureReason = "other"
)

// Error is the concrete failure value. Zero-valued optional fields are omitted
// from the message.
type Error struct {
	Kind    Kind
	Stage   domain.Stage
	Capture CaptureReason
	Status  int
	Body    string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Stage != "" {
		b.WriteString("(" + string(e.Stage) + ")")
	}
	if e.Capture != "" {
		b.WriteString("[" + string(e.Capture) + "]")
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, ": HTTP %d", e.Status)
		if body := strings.TrimSpace(e.Body); body != "" {
			b.WriteString(" - " + body)
		}
	}
	if e.Detail != "" {
		b.WriteString(": " + e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, and by stage when the target names one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Stage == "" || t.Stage == e.Stage
}

var (
	ErrInvalidConfiguration = &Error{Kind: KindInvalidConfiguration}
	ErrCapture              = &Error{Kind: KindCapture}
	ErrNoAudioCaptured      = &Error{Kind: KindNoAudioCaptured}
	ErrNoSpeechDetected     = &Error{Kind: KindNoSpeechDetected}
	ErrTranslationEmpty     = &Error{Kind: KindTranslationEmpty}
	ErrStageTimeout         = &Error{Kind: KindStageTimeout}
	ErrNetwork              = &Error{Kind: KindNetwork}
	ErrAuth                 = &Error{Kind: KindAuth}
	ErrRateLimited          = &Error{Kind: KindRateLimited}
	ErrGateway              = &Error{Kind: KindGateway}
	ErrConcurrentTurn       = &Error{Kind: KindConcurrentTurn}
	ErrBusy                 = &Error{Kind: KindBusy}
	ErrNoActiveSession      = &Error{Kind: KindNoActiveSession}
	ErrEmptySession         = &Error{Kind: KindEmptySession}
	ErrInvalidTransition    = &Error{Kind: KindInvalidTransition}
)

// New builds an Error of kind with a formatted detail.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Timeout reports a deadline exceeded while running stage.
func Timeout(stage domain.Stage, err error) *Error {
	return &Error{Kind: KindStageTimeout, Stage: stage, Err: err}
}

// Capture wraps a device or permission failure.
func Capture(reason CaptureReason, err error) *Error {
	if reason == "" {
		reason = CaptureOther
	}
	return &Error{Kind: KindCapture, Capture: reason, Err: err}
}

// AtStage stamps stage onto err when it is an *Error without one.
func AtStage(stage domain.Stage, err error) error {
	var fe *Error
	if !errors.As(err, &fe) || fe.Stage != "" {
		return err
	}
	out := *fe
	out.Stage = stage
	return &out
}

// KindOf returns the failure kind of err, or "" for untyped errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// StageOf returns the stage recorded on err, if any.
func StageOf(err error) domain.Stage {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Stage
	}
	return ""
}
