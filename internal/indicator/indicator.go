// Package indicator shows turn progress as desktop notifications and plays
// short audio cues.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/tandem/internal/config"
	"github.com/rbright/tandem/internal/domain"
)

const (
	defaultAppName        = "tandem"
	defaultErrorTimeoutMS = 4000
	// progress notifications stay up until replaced or dismissed.
	persistentTimeoutMS = 0
)

// Notifier is the runtime indicator. Every notification replaces the
// previous one so a turn occupies a single desktop entry.
type Notifier struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages

	mu             sync.Mutex
	notificationID uint32
	soundMu        sync.Mutex
}

// NewNotifier creates an indicator from config.
func NewNotifier(cfg config.IndicatorConfig, logger *slog.Logger) *Notifier {
	return &Notifier{
		cfg:      cfg,
		logger:   logger,
		messages: indicatorMessagesFromEnv(),
	}
}

// ShowRecording announces which participant is being recorded.
func (n *Notifier) ShowRecording(ctx context.Context, speaker domain.Speaker) {
	n.playCue(cueStart)
	n.show(ctx, n.messages.forRecording(speaker), "", urgencyNormal, persistentTimeoutMS)
}

// ShowProcessing reports the running stage. Entering listen means the
// microphone just closed, so the stop cue plays.
func (n *Notifier) ShowProcessing(ctx context.Context, stage domain.Stage) {
	if stage == domain.StageListen {
		n.playCue(cueStop)
	}
	n.show(ctx, n.messages.forStage(stage), "", urgencyNormal, persistentTimeoutMS)
}

// ShowError displays the user-facing failure reason.
func (n *Notifier) ShowError(ctx context.Context, reason string) {
	n.playCue(cueError)
	if strings.TrimSpace(reason) == "" {
		reason = n.messages.errorText
	}
	timeout := n.cfg.ErrorTimeoutMS
	if timeout <= 0 {
		timeout = defaultErrorTimeoutMS
	}
	n.show(ctx, n.messages.errorText, reason, urgencyCritical, timeout)
}

// CueComplete plays the turn-complete cue.
func (n *Notifier) CueComplete(context.Context) {
	n.playCue(cueComplete)
}

// CueCancel plays the abandon cue.
func (n *Notifier) CueCancel(context.Context) {
	n.playCue(cueCancel)
}

// Hide dismisses the current notification.
func (n *Notifier) Hide(ctx context.Context) {
	if !n.cfg.Enable {
		return
	}
	n.mu.Lock()
	id := n.notificationID
	n.notificationID = 0
	n.mu.Unlock()
	if id == 0 {
		return
	}
	n.run(ctx, func(ctx context.Context) error {
		return desktopDismiss(ctx, id)
	})
}

func (n *Notifier) show(ctx context.Context, summary string, body string, urgency int, timeoutMS int) {
	if !n.cfg.Enable {
		return
	}
	appName := strings.TrimSpace(n.cfg.AppName)
	if appName == "" {
		appName = defaultAppName
	}
	n.run(ctx, func(ctx context.Context) error {
		n.mu.Lock()
		replaceID := n.notificationID
		n.mu.Unlock()

		id, err := desktopNotify(ctx, appName, replaceID, summary, body, urgency, timeoutMS)
		if err != nil {
			return err
		}
		n.mu.Lock()
		n.notificationID = id
		n.mu.Unlock()
		return nil
	})
}

// run bounds one notification call so a stuck bus never stalls a turn.
func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		n.log("indicator dispatch failed", err)
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (n *Notifier) playCue(kind cueKind) {
	if !n.cfg.SoundEnable {
		return
	}
	go func() {
		n.soundMu.Lock()
		defer n.soundMu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := emitCue(ctx, kind); err != nil {
			n.log("indicator audio cue failed", err)
		}
	}()
}

func (n *Notifier) log(message string, err error) {
	if n.logger == nil || err == nil {
		return
	}
	n.logger.Debug(message, "error", err.Error())
}
