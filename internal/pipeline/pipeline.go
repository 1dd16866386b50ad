// Package pipeline runs one conversational turn: Listen, Transcribe,
// Translate, Speak.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rbright/tandem/internal/domain"
	"github.com/rbright/tandem/internal/fault"
	"github.com/rbright/tandem/internal/gateway"
	"github.com/rbright/tandem/internal/transcript"
)

const (
	DefaultStageTimeout    = 15 * time.Second
	DefaultOverallTimeout  = 30 * time.Second
	DefaultPlaybackTimeout = 10 * time.Second

	listenConfidence = 98
)

// Confidence bounds are cosmetic and carry no model signal.
var (
	transcribeConfidence = [2]int{90, 99}
	translateConfidence  = [2]int{88, 98}
	messageConfidence    = [2]int{85, 98}
)

// Player plays synthesized speech at a 0-100 volume.
type Player interface {
	Play(ctx context.Context, speech domain.Speech, volume int) error
}

// Turn is the input to one pipeline run. Recording and CaptureErr are the
// terminal outcome of the capture that preceded it.
type Turn struct {
	Speaker    domain.Speaker
	Languages  domain.LanguagePair
	Settings   domain.Settings
	Recording  domain.Recording
	CaptureErr error
}

// Progress observes each ProcessingState update. It must not block.
type Progress func(domain.ProcessingState)

// Runner executes turns against a gateway. It holds no per-turn state, so
// one Runner serves every turn.
type Runner struct {
	gateway         gateway.Gateway
	player          Player
	logger          *slog.Logger
	stageTimeout    time.Duration
	overallTimeout  time.Duration
	playbackTimeout time.Duration
	intn            func(lo, hi int) int
	now             func() time.Time
}

// Option customizes a Runner.
type Option func(*Runner)

// WithTimeouts overrides the per-stage and overall deadlines; zero keeps the default.
func WithTimeouts(stage, overall time.Duration) Option {
	return func(r *Runner) {
		if stage > 0 {
			r.stageTimeout = stage
		}
		if overall > 0 {
			r.overallTimeout = overall
		}
	}
}

// WithPlayer plays synthesized speech after the Speak stage.
func WithPlayer(player Player) Option {
	return func(r *Runner) {
		r.player = player
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithConfidence replaces the random source for cosmetic confidences. intn
// returns a value in [lo, hi].
func WithConfidence(intn func(lo, hi int) int) Option {
	return func(r *Runner) {
		if intn != nil {
			r.intn = intn
		}
	}
}

// WithClock overrides the message timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRunner returns a Runner using gw.
func NewRunner(gw gateway.Gateway, opts ...Option) *Runner {
	r := &Runner{
		gateway:         gw,
		stageTimeout:    DefaultStageTimeout,
		overallTimeout:  DefaultOverallTimeout,
		playbackTimeout: DefaultPlaybackTimeout,
		intn: func(lo, hi int) int {
			return lo + rand.IntN(hi-lo+1)
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the turn. It returns a completed Message, or a typed
// *fault.Error naming the failing stage. A canceled ctx yields ctx.Err().
func (r *Runner) Run(ctx context.Context, turn Turn, progress Progress) (domain.Message, error) {
	if progress == nil {
		progress = func(domain.ProcessingState) {}
	}
	source, target, err := resolveRoute(turn)
	if err != nil {
		return domain.Message{}, err
	}

	state := domain.ProcessingState{Speaker: turn.Speaker, Stage: domain.StageListen}
	progress(state)
	if err := listen(turn); err != nil {
		r.logStageFailure(domain.StageListen, err)
		return domain.Message{}, err
	}
	state.Confidence.Listen = listenConfidence
	progress(state)

	// The overall deadline starts once capture has completed.
	runCtx, cancel := context.WithTimeout(ctx, r.overallTimeout)
	defer cancel()

	state.Stage = domain.StageTranscribe
	progress(state)
	originalText, err := runStage(runCtx, r, domain.StageTranscribe, func(ctx context.Context) (string, error) {
		return r.gateway.Transcribe(ctx, turn.Recording, source)
	})
	if err != nil {
		return domain.Message{}, r.fail(domain.StageTranscribe, err)
	}
	if strings.TrimSpace(originalText) == "" {
		return domain.Message{}, r.fail(domain.StageTranscribe, fault.New(fault.KindNoSpeechDetected, "transcript is blank"))
	}
	originalText = transcript.Normalize(originalText)
	state.OriginalText = originalText
	state.Confidence.Transcribe = r.intn(transcribeConfidence[0], transcribeConfidence[1])
	progress(state)

	state.Stage = domain.StageTranslate
	progress(state)
	translatedText, err := runStage(runCtx, r, domain.StageTranslate, func(ctx context.Context) (string, error) {
		return r.gateway.Translate(ctx, originalText, source, target)
	})
	if err != nil {
		return domain.Message{}, r.fail(domain.StageTranslate, err)
	}
	if strings.TrimSpace(translatedText) == "" {
		return domain.Message{}, r.fail(domain.StageTranslate, fault.New(fault.KindTranslationEmpty, "translation is blank"))
	}
	state.TranslatedText = translatedText
	state.Confidence.Translate = r.intn(translateConfidence[0], translateConfidence[1])
	progress(state)

	id, err := uuid.NewV7()
	if err != nil {
		return domain.Message{}, fmt.Errorf("generate message id: %w", err)
	}
	msg := domain.Message{
		ID:             id.String(),
		Speaker:        turn.Speaker,
		OriginalText:   originalText,
		TranslatedText: translatedText,
		OriginalLang:   source,
		TranslatedLang: target,
		Confidence:     r.intn(messageConfidence[0], messageConfidence[1]),
		CreatedAt:      r.now(),
	}

	state.Stage = domain.StageSpeak
	progress(state)
	voice := ListenerVoice(turn.Settings, turn.Speaker, target)
	speech, err := runStage(runCtx, r, domain.StageSpeak, func(ctx context.Context) (domain.Speech, error) {
		return r.gateway.Synthesize(ctx, translatedText, target, voice)
	})
	switch {
	case ctx.Err() != nil:
		return domain.Message{}, ctx.Err()
	case err != nil:
		r.logWarn("speech synthesis failed; message kept without audio",
			"stage", string(domain.StageSpeak), "voice", voice, "error", err.Error())
		return msg, nil
	case len(speech.Audio) == 0:
		r.logWarn("speech synthesis returned no audio", "stage", string(domain.StageSpeak), "voice", voice)
		return msg, nil
	}

	msg.Speech = &speech
	msg.AudioRef = "speech:" + msg.ID
	r.play(ctx, speech, turn.Settings.SpeakerVolume)
	if ctx.Err() != nil {
		return domain.Message{}, ctx.Err()
	}
	return msg, nil
}

// ListenerVoice picks the listener's configured voice, falling back to the
// target language default when that voice belongs to another language.
func ListenerVoice(settings domain.Settings, speaker domain.Speaker, target domain.Language) string {
	voice := settings.Voice(speaker.Listener())
	if domain.ValidateVoice(target, voice) != nil {
		return domain.DefaultVoice(target)
	}
	return voice
}

func resolveRoute(turn Turn) (domain.Language, domain.Language, error) {
	if !turn.Speaker.Valid() {
		return "", "", fault.New(fault.KindInvalidConfiguration, "unknown speaker %q", turn.Speaker)
	}
	source, target := turn.Languages.Route(turn.Speaker)
	if !source.Valid() || !target.Valid() || source == target {
		return "", "", fault.New(fault.KindInvalidConfiguration, "unusable language pair %s/%s", source, target)
	}
	return source, target, nil
}

func listen(turn Turn) error {
	if turn.CaptureErr != nil {
		var fe *fault.Error
		if errors.As(turn.CaptureErr, &fe) {
			return fault.AtStage(domain.StageListen, turn.CaptureErr)
		}
		captureErr := fault.Capture(fault.CaptureOther, turn.CaptureErr)
		captureErr.Stage = domain.StageListen
		return captureErr
	}
	if turn.Recording.Empty() {
		return &fault.Error{Kind: fault.KindNoAudioCaptured, Stage: domain.StageListen}
	}
	return nil
}

type stageResult[T any] struct {
	value T
	err   error
}

// runStage bounds call by the stage deadline and the parent deadline, even
// when the gateway ignores its context.
func runStage[T any](ctx context.Context, r *Runner, stage domain.Stage, call func(context.Context) (T, error)) (T, error) {
	var zero T
	stageCtx, cancel := context.WithTimeout(ctx, r.stageTimeout)
	defer cancel()

	started := time.Now()
	done := make(chan stageResult[T], 1)
	go func() {
		value, err := call(stageCtx)
		done <- stageResult[T]{value: value, err: err}
	}()

	var result stageResult[T]
	select {
	case result = <-done:
	case <-stageCtx.Done():
		result = stageResult[T]{err: stageCtx.Err()}
	}
	elapsed := time.Since(started)

	if result.err == nil {
		r.logDebug("stage complete", "stage", string(stage), "duration_ms", elapsed.Milliseconds())
		return result.value, nil
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return zero, ctx.Err()
	}
	if errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		return zero, fault.Timeout(stage, result.err)
	}
	var fe *fault.Error
	if !errors.As(result.err, &fe) {
		return zero, &fault.Error{Kind: fault.KindGateway, Stage: stage, Err: result.err}
	}
	return zero, fault.AtStage(stage, result.err)
}

func (r *Runner) play(ctx context.Context, speech domain.Speech, volume int) {
	if r.player == nil {
		return
	}
	playCtx, cancel := context.WithTimeout(ctx, r.playbackTimeout)
	defer cancel()
	if err := r.player.Play(playCtx, speech, volume); err != nil && ctx.Err() == nil {
		r.logWarn("speech playback failed", "error", err.Error())
	}
}

// fail logs a hard stage failure; context cancellation passes through silently.
func (r *Runner) fail(stage domain.Stage, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	err = fault.AtStage(stage, err)
	r.logStageFailure(stage, err)
	return err
}

func (r *Runner) logStageFailure(stage domain.Stage, err error) {
	if r.logger == nil {
		return
	}
	r.logger.Error("turn failed", "stage", string(stage), "error", err.Error())
}

func (r *Runner) logWarn(msg string, args ...any) {
	if r.logger == nil {
		return
	}
	r.logger.Warn(msg, args...)
}

func (r *Runner) logDebug(msg string, args ...any) {
	if r.logger == nil {
		return
	}
	r.logger.Debug(msg, args...)
}
