package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rbright/tandem/internal/domain"
	"github.com/rbright/tandem/internal/fault"
	"github.com/rbright/tandem/internal/fsm"
	"github.com/rbright/tandem/internal/ipc"
)

// Handle serves IPC commands against the owner controller.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case "status":
		return c.statusResponse()
	case "start":
		return c.handleStart(ctx, req.Args)
	case "talk":
		return c.handleTalk(ctx, req.Args)
	case "stop":
		return c.handleStop(ctx)
	case "cancel":
		return c.result(c.Abandon(ctx), "turn abandoned")
	case "end":
		closed, err := c.EndSession(ctx)
		if err != nil {
			return c.errorResponse(err)
		}
		resp := c.ok(fmt.Sprintf("session ended after %ds", closed.DurationSeconds))
		resp.Session = &closed
		return resp
	case "history":
		if err := c.Navigate(ctx, fsm.KindHistory); err != nil {
			return c.errorResponse(err)
		}
		resp := c.ok("history")
		resp.History = c.History()
		return resp
	case "settings":
		if err := c.Navigate(ctx, fsm.KindSettings); err != nil {
			return c.errorResponse(err)
		}
		settings := c.Settings()
		resp := c.ok("settings")
		resp.Settings = &settings
		return resp
	case "back":
		return c.result(c.Back(ctx), "back")
	case "home":
		return c.result(c.Home(ctx), "home")
	case "voice":
		return c.handleVoice(req.Args)
	case "volume":
		return c.handleVolume(req.Args)
	case "delete":
		if len(req.Args) != 1 {
			return c.usage("delete <session-id>")
		}
		return c.result(c.DeleteSession(req.Args[0]), "session deleted")
	default:
		return c.errorResponse(fmt.Errorf("unknown command: %s", req.Command))
	}
}

func (c *Controller) handleStart(ctx context.Context, args []string) ipc.Response {
	if len(args) != 2 {
		return c.usage("start <provider-language> <patient-language>")
	}
	provider, err := domain.ParseLanguage(args[0])
	if err != nil {
		return c.errorResponse(fault.New(fault.KindInvalidConfiguration, "%v", err))
	}
	patient, err := domain.ParseLanguage(args[1])
	if err != nil {
		return c.errorResponse(fault.New(fault.KindInvalidConfiguration, "%v", err))
	}

	session, err := c.StartSession(ctx, domain.LanguagePair{Provider: provider, Patient: patient})
	if err != nil {
		return c.errorResponse(err)
	}
	resp := c.ok(fmt.Sprintf("%s: %s / %s", session.Title, provider.Name(), patient.Name()))
	resp.Session = &session
	return resp
}

func (c *Controller) handleTalk(ctx context.Context, args []string) ipc.Response {
	if len(args) != 1 {
		return c.usage("talk <provider|patient>")
	}
	speaker, err := domain.ParseSpeaker(args[0])
	if err != nil {
		return c.errorResponse(err)
	}
	return c.result(c.StartTurn(ctx, speaker), "recording "+string(speaker))
}

// handleStop waits for the turn to settle so the caller sees the message or
// the failure; the turn keeps running if the caller goes away.
func (c *Controller) handleStop(ctx context.Context) ipc.Response {
	outcome, err := c.StopTurn(ctx)
	if err != nil {
		return c.errorResponse(err)
	}
	select {
	case <-ctx.Done():
		return c.ok("processing")
	case result := <-outcome:
		switch {
		case result.Abandoned:
			return c.ok("turn abandoned")
		case result.Err != nil:
			return c.errorResponse(result.Err)
		}
		resp := c.ok(result.Message.TranslatedText)
		resp.Turn = &result.Message
		return resp
	}
}

func (c *Controller) handleVoice(args []string) ipc.Response {
	if len(args) != 2 {
		return c.usage("voice <provider|patient> <voice>")
	}
	speaker, err := domain.ParseSpeaker(args[0])
	if err != nil {
		return c.errorResponse(err)
	}
	voice := strings.ToLower(strings.TrimSpace(args[1]))

	patch := domain.SettingsPatch{}
	if speaker == domain.SpeakerProvider {
		patch.ProviderVoice = &voice
	} else {
		patch.PatientVoice = &voice
	}
	return c.settingsResult(c.UpdateSettings(patch))
}

func (c *Controller) handleVolume(args []string) ipc.Response {
	if len(args) != 2 {
		return c.usage("volume <mic|speaker> <0-100>")
	}
	level, err := strconv.Atoi(strings.TrimSpace(args[1]))
	if err != nil {
		return c.errorResponse(fmt.Errorf("invalid volume %q", args[1]))
	}

	patch := domain.SettingsPatch{}
	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "mic", "microphone":
		patch.MicVolume = &level
	case "speaker":
		patch.SpeakerVolume = &level
	default:
		return c.usage("volume <mic|speaker> <0-100>")
	}
	return c.settingsResult(c.UpdateSettings(patch))
}

func (c *Controller) settingsResult(settings domain.Settings, err error) ipc.Response {
	if err != nil {
		return c.errorResponse(err)
	}
	resp := c.ok("settings updated")
	resp.Settings = &settings
	return resp
}

func (c *Controller) statusResponse() ipc.Response {
	status := c.Status()
	resp := ipc.Response{
		OK:         true,
		Mode:       fsm.Describe(status.Mode),
		Message:    "status",
		Processing: status.Processing,
		Session:    status.Session,
		Settings:   &status.Settings,
	}
	if errMode, ok := status.Mode.(fsm.Error); ok {
		resp.Message = errMode.Reason
		resp.Kind = string(fault.KindOf(status.Err))
	}
	return resp
}

func (c *Controller) result(err error, message string) ipc.Response {
	if err != nil {
		return c.errorResponse(err)
	}
	return c.ok(message)
}

func (c *Controller) ok(message string) ipc.Response {
	return ipc.Response{OK: true, Mode: fsm.Describe(c.Mode()), Message: message}
}

func (c *Controller) usage(text string) ipc.Response {
	return c.errorResponse(fmt.Errorf("usage: %s", text))
}

func (c *Controller) errorResponse(err error) ipc.Response {
	resp := ipc.Response{OK: false, Mode: fsm.Describe(c.Mode()), Error: err.Error()}
	if kind := fault.KindOf(err); kind != "" {
		resp.Kind = string(kind)
		resp.Message = fault.UserMessage(err)
	}
	return resp
}
