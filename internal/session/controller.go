// Package session owns the application mode, the session store, and the
// in-flight turn, and serves IPC commands against them.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/tandem/internal/consultation"
	"github.com/rbright/tandem/internal/domain"
	"github.com/rbright/tandem/internal/fault"
	"github.com/rbright/tandem/internal/fsm"
	"github.com/rbright/tandem/internal/pipeline"
)

// ErrAbandoned is returned to a StartTurn whose recording was cancelled
// before the microphone opened.
var ErrAbandoned = errors.New("turn abandoned")

// Outcome is the settlement of one processed turn.
type Outcome struct {
	Message   domain.Message
	Err       error
	Abandoned bool
}

// Status is a point-in-time snapshot for display.
type Status struct {
	Mode       fsm.Mode
	Processing *domain.ProcessingState
	Session    *domain.Session
	Settings   domain.Settings
	Err        error
}

// Config wires a Controller. Nil collaborators fall back to inert defaults.
type Config struct {
	Logger      *slog.Logger
	Store       *consultation.Store
	Runner      TurnRunner
	Microphone  Microphone
	Indicator   Indicator
	Settings    domain.Settings
	FinishDelay time.Duration
}

// Controller is the application state machine. All mode changes go through
// fsm.Transition under mu.
type Controller struct {
	logger      *slog.Logger
	store       *consultation.Store
	runner      TurnRunner
	mic         Microphone
	indicator   Indicator
	finishDelay time.Duration

	mu         sync.Mutex
	mode       fsm.Mode
	settings   domain.Settings
	capture    Capture
	processing *domain.ProcessingState
	cancelTurn context.CancelFunc
	// generation invalidates late settlements from abandoned turns.
	generation uint64
	lastErr    error
}

// NewController constructs a controller in Welcome mode.
func NewController(cfg Config) *Controller {
	c := &Controller{
		logger:      cfg.Logger,
		store:       cfg.Store,
		runner:      cfg.Runner,
		mic:         cfg.Microphone,
		indicator:   cfg.Indicator,
		finishDelay: cfg.FinishDelay,
		mode:        fsm.Welcome{},
		settings:    cfg.Settings,
	}
	if c.store == nil {
		c.store = consultation.NewStore(consultation.WithLogger(cfg.Logger))
	}
	if c.runner == nil {
		c.runner = unavailableRunner{}
	}
	if c.mic == nil {
		c.mic = unavailableMicrophone{}
	}
	if c.indicator == nil {
		c.indicator = noopIndicator{}
	}
	if c.settings == (domain.Settings{}) {
		c.settings = domain.DefaultSettings()
	}
	return c
}

// Mode returns the current mode.
func (c *Controller) Mode() fsm.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Status returns a snapshot of mode, live turn, current session, and settings.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := Status{Mode: c.mode, Settings: c.settings}
	if c.processing != nil {
		processing := *c.processing
		status.Processing = &processing
	}
	if current, ok := c.store.Current(); ok {
		status.Session = &current
	}
	if _, inError := c.mode.(fsm.Error); inError {
		status.Err = c.lastErr
	}
	return status
}

// Settings returns the active settings.
func (c *Controller) Settings() domain.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// History returns finished sessions oldest first.
func (c *Controller) History() []domain.Session {
	return c.store.History()
}

// StartSession opens a session for pair and enters Conversation. An invalid
// pair leaves the mode unchanged. A session left open from an earlier visit
// is ended first.
func (c *Controller) StartSession(_ context.Context, pair domain.LanguagePair) (domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fsm.Transition(c.mode, fsm.StartSession{}, c.guard())
	if err != nil {
		return domain.Session{}, err
	}
	if err := consultation.ValidatePair(pair); err != nil {
		return domain.Session{}, err
	}
	c.store.Discard()
	session, err := c.store.Open(pair)
	if err != nil {
		return domain.Session{}, err
	}

	if updated, err := c.settings.Apply(domain.SettingsPatch{
		ProviderLanguage: &pair.Provider,
		PatientLanguage:  &pair.Patient,
	}); err == nil {
		c.settings = updated
	}
	c.setModeLocked(next)
	return session, nil
}

// StartTurn enters Recording for speaker and opens the microphone. A second
// turn while one is recording or processing is rejected.
func (c *Controller) StartTurn(ctx context.Context, speaker domain.Speaker) error {
	c.mu.Lock()
	next, err := fsm.Transition(c.mode, fsm.Talk{Speaker: speaker}, c.guard())
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.generation++
	gen := c.generation
	c.setModeLocked(next)
	req := CaptureRequest{
		Speaker:     speaker,
		MicVolume:   c.settings.MicVolume,
		HighQuality: c.settings.HighQualityRecording,
	}
	c.mu.Unlock()

	c.indicator.ShowRecording(ctx, speaker)
	capture, err := c.mic.Start(ctx, req)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		if capture != nil {
			capture.Cancel()
		}
		return ErrAbandoned
	}
	if err != nil {
		reason := c.enterErrorLocked(err)
		c.mu.Unlock()
		c.indicator.ShowError(ctx, reason)
		return err
	}
	c.capture = capture
	c.mu.Unlock()
	return nil
}

// StopTurn completes the recording, enters Processing, and runs the turn in
// the background. The returned channel receives exactly one Outcome.
func (c *Controller) StopTurn(ctx context.Context) (<-chan Outcome, error) {
	c.mu.Lock()
	recording, ok := c.mode.(fsm.Recording)
	if !ok {
		_, err := fsm.Transition(c.mode, fsm.CaptureDone{}, c.guard())
		c.mu.Unlock()
		return nil, err
	}
	if c.capture == nil {
		c.mu.Unlock()
		return nil, fault.New(fault.KindBusy, "microphone is still opening")
	}
	next, err := fsm.Transition(c.mode, fsm.CaptureDone{}, c.guard())
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}

	capture := c.capture
	c.capture = nil
	gen := c.generation
	turnCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancelTurn = cancel
	c.processing = &domain.ProcessingState{Speaker: recording.Speaker, Stage: domain.StageListen}
	current, _ := c.store.Current()
	turn := pipeline.Turn{
		Speaker:   recording.Speaker,
		Languages: current.Languages,
		Settings:  c.settings,
	}
	c.setModeLocked(next)
	c.mu.Unlock()

	// Listen ends here and the device is released whatever the outcome.
	turn.Recording, turn.CaptureErr = capture.Stop()
	c.indicator.ShowProcessing(ctx, domain.StageListen)

	out := make(chan Outcome, 1)
	go c.process(turnCtx, cancel, gen, turn, out)
	return out, nil
}

func (c *Controller) process(ctx context.Context, cancel context.CancelFunc, gen uint64, turn pipeline.Turn, out chan<- Outcome) {
	defer cancel()
	started := time.Now()

	msg, err := c.runner.Run(ctx, turn, func(state domain.ProcessingState) {
		c.updateProcessing(ctx, gen, state)
	})
	outcome, reason := c.settle(gen, msg, err)

	ictx, icancel := context.WithTimeout(context.WithoutCancel(ctx), 800*time.Millisecond)
	defer icancel()
	switch {
	case outcome.Abandoned:
		c.logInfo("turn settled after abandon; ignored", "speaker", string(turn.Speaker))
	case outcome.Err != nil:
		c.indicator.ShowError(ictx, reason)
	default:
		c.indicator.CueComplete(ictx)
		c.indicator.Hide(ictx)
		c.logInfo("turn complete",
			"speaker", string(turn.Speaker),
			"message_id", outcome.Message.ID,
			"duration_ms", time.Since(started).Milliseconds(),
			"audio", outcome.Message.AudioRef != "",
		)
	}
	out <- outcome
}

func (c *Controller) updateProcessing(ctx context.Context, gen uint64, state domain.ProcessingState) {
	c.mu.Lock()
	if gen != c.generation || c.processing == nil {
		c.mu.Unlock()
		return
	}
	stageChanged := c.processing.Stage != state.Stage
	c.processing = &state
	c.mu.Unlock()

	if stageChanged {
		c.indicator.ShowProcessing(ctx, state.Stage)
	}
}

// settle applies a finished turn unless it was abandoned. It returns the
// user-facing reason when the turn failed.
func (c *Controller) settle(gen uint64, msg domain.Message, err error) (Outcome, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return Outcome{Err: err, Abandoned: true}, ""
	}
	c.cancelTurn = nil
	c.processing = nil

	if err != nil {
		return Outcome{Err: err}, c.enterErrorLocked(err)
	}
	stored, err := c.store.Append(msg)
	if err != nil {
		return Outcome{Err: err}, c.enterErrorLocked(err)
	}
	next, err := fsm.Transition(c.mode, fsm.TurnSucceeded{}, c.guard())
	if err != nil {
		return Outcome{Err: err}, c.enterErrorLocked(err)
	}
	c.setModeLocked(next)
	return Outcome{Message: stored}, ""
}

// Abandon discards the current recording or in-flight turn and returns to
// Conversation. A late settlement of the abandoned turn is ignored.
func (c *Controller) Abandon(ctx context.Context) error {
	c.mu.Lock()
	next, err := fsm.Transition(c.mode, fsm.Abandon{}, c.guard())
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.generation++
	if c.cancelTurn != nil {
		c.cancelTurn()
		c.cancelTurn = nil
	}
	capture := c.capture
	c.capture = nil
	c.processing = nil
	c.setModeLocked(next)
	c.mu.Unlock()

	if capture != nil {
		capture.Cancel()
	}
	c.indicator.CueCancel(ctx)
	c.indicator.Hide(ctx)
	return nil
}

// EndSession closes the current session, shows the finishing state for the
// configured delay, and lands on History. A session without messages is
// discarded rather than archived.
func (c *Controller) EndSession(ctx context.Context) (domain.Session, error) {
	c.mu.Lock()
	next, err := fsm.Transition(c.mode, fsm.EndSession{}, c.guard())
	if err != nil {
		c.mu.Unlock()
		return domain.Session{}, err
	}
	current, _ := c.store.Current()
	closed, err := c.store.Close()
	switch {
	case errors.Is(err, fault.ErrEmptySession):
		c.store.Discard()
		closed = current
		c.logInfo("empty session discarded", "session_id", current.ID)
	case err != nil:
		c.mu.Unlock()
		return domain.Session{}, err
	}
	c.setModeLocked(next)
	delay := c.finishDelay
	c.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
		timer.Stop()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if landed, err := fsm.Transition(c.mode, fsm.Finished{}, c.guard()); err == nil {
		c.setModeLocked(landed)
	}
	return closed, nil
}

// Navigate moves freely among welcome, conversation, history, and settings.
// It is rejected with a busy error while a turn is in flight.
func (c *Controller) Navigate(_ context.Context, target fsm.Kind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := fsm.Transition(c.mode, fsm.Navigate{Target: target}, c.guard())
	if err != nil {
		return err
	}
	c.setModeLocked(next)
	return nil
}

// Back returns from History or Settings to the open conversation, or to
// Welcome when none is open.
func (c *Controller) Back(ctx context.Context) error {
	target := fsm.KindWelcome
	if c.store.HasCurrent() {
		target = fsm.KindConversation
	}
	return c.Navigate(ctx, target)
}

// Home leaves Error for Welcome, clearing the error; elsewhere it navigates
// to Welcome.
func (c *Controller) Home(ctx context.Context) error {
	c.mu.Lock()
	if _, inError := c.mode.(fsm.Error); inError {
		next, err := fsm.Transition(c.mode, fsm.Reset{}, c.guard())
		if err == nil {
			c.lastErr = nil
			c.setModeLocked(next)
		}
		c.mu.Unlock()
		c.indicator.Hide(ctx)
		return err
	}
	c.mu.Unlock()
	return c.Navigate(ctx, fsm.KindWelcome)
}

// UpdateSettings applies patch; the next turn reads the result.
func (c *Controller) UpdateSettings(patch domain.SettingsPatch) (domain.Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	updated, err := c.settings.Apply(patch)
	if err != nil {
		return c.settings, fault.New(fault.KindInvalidConfiguration, "%v", err)
	}
	c.settings = updated
	return updated, nil
}

// DeleteSession removes a finished session from history.
func (c *Controller) DeleteSession(id string) error {
	return c.store.Delete(id)
}

// enterErrorLocked moves to Error from any mode. The active speaker and any
// live turn are dropped and the current session is ended, so a later start
// begins clean. It returns the user-facing reason.
func (c *Controller) enterErrorLocked(err error) string {
	reason := fault.UserMessage(err)
	c.generation++
	if c.cancelTurn != nil {
		c.cancelTurn()
		c.cancelTurn = nil
	}
	if c.capture != nil {
		c.capture.Cancel()
		c.capture = nil
	}
	c.processing = nil
	c.lastErr = err
	if archived, ok := c.store.Discard(); ok {
		c.logInfo("session archived on error", "session_id", archived.ID, "messages", len(archived.Messages))
	}

	if c.logger != nil {
		c.logger.Error("entering error mode",
			"mode", fsm.Describe(c.mode),
			"kind", string(fault.KindOf(err)),
			"stage", string(fault.StageOf(err)),
			"error", err.Error(),
		)
	}
	next, _ := fsm.Transition(c.mode, fsm.Fail{Reason: reason}, c.guard())
	c.setModeLocked(next)
	return reason
}

func (c *Controller) setModeLocked(next fsm.Mode) {
	if c.logger != nil && next != c.mode {
		c.logger.Debug("mode transition", "from", fsm.Describe(c.mode), "to", fsm.Describe(next))
	}
	c.mode = next
}

func (c *Controller) guard() fsm.Guard {
	return fsm.Guard{HasSession: c.store.HasCurrent()}
}

func (c *Controller) logInfo(msg string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Info(msg, args...)
}
