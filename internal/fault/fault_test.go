package fault

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rbright/tandem/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("run turn: %w", New(KindNoSpeechDetected, "blank transcript"))
	require.ErrorIs(t, err, ErrNoSpeechDetected)
	require.NotErrorIs(t, err, ErrTranslationEmpty)
	require.Equal(t, KindNoSpeechDetected, KindOf(err))
}

func TestErrorIsMatchesStageWhenTargetNamesOne(t *testing.T) {
	err := Timeout(domain.StageTranscribe, context.DeadlineExceeded)

	require.ErrorIs(t, err, ErrStageTimeout)
	require.ErrorIs(t, err, &Error{Kind: KindStageTimeout, Stage: domain.StageTranscribe})
	require.NotErrorIs(t, err, &Error{Kind: KindStageTimeout, Stage: domain.StageTranslate})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, domain.StageTranscribe, StageOf(err))
}

func TestAtStageKeepsExistingStage(t *testing.T) {
	stamped := AtStage(domain.StageTranslate, ErrNetwork)
	require.Equal(t, domain.StageTranslate, StageOf(stamped))
	require.Empty(t, StageOf(ErrNetwork), "sentinel must not be mutated")

	restamped := AtStage(domain.StageSpeak, stamped)
	require.Equal(t, domain.StageTranslate, StageOf(restamped))

	plain := errors.New("plain")
	require.Same(t, plain, AtStage(domain.StageSpeak, plain))
}

func TestErrorStringIncludesHTTPDetails(t *testing.T) {
	err := &Error{Kind: KindGateway, Stage: domain.StageTranslate, Status: 502, Body: "bad gateway\n"}
	require.Equal(t, "gateway(translate): HTTP 502 - bad gateway", err.Error())

	capture := Capture(CaptureNoDevice, errors.New("no source"))
	require.Equal(t, "capture[no_device]: no source", capture.Error())
}

func TestUserMessageByKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "untyped", err: errors.New("boom"), want: genericMessage},
		{name: "no speech", err: ErrNoSpeechDetected, want: "No speech detected. Please speak clearly and try again."},
		{name: "timeout", err: Timeout(domain.StageTranscribe, nil), want: "Request timed out. Please check your connection and try again."},
		{name: "network", err: ErrNetwork, want: "Network error. Please check your internet connection."},
		{name: "permission", err: Capture(CaptureNotAllowed, nil), want: "Microphone access denied. Please enable microphone access and try again."},
		{name: "no device", err: Capture(CaptureNoDevice, nil), want: "No microphone found. Please connect a microphone and try again."},
		{name: "capture other", err: Capture("", nil), want: "Unable to record audio. Please check your microphone and try again."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, UserMessage(tc.err))
		})
	}
}

func TestUserMessagesDistinguishGatewayKinds(t *testing.T) {
	seen := map[string]Kind{}
	for _, kind := range []Kind{KindNetwork, KindAuth, KindRateLimited, KindStageTimeout} {
		msg := UserMessage(&Error{Kind: kind})
		prev, dup := seen[msg]
		require.False(t, dup, "kinds %s and %s share a message", prev, kind)
		seen[msg] = kind
	}
}
