package app

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rbright/tandem/internal/cli"
	"github.com/rbright/tandem/internal/domain"
	"github.com/rbright/tandem/internal/ipc"
)

func render(w io.Writer, command cli.Command, resp ipc.Response) {
	switch command {
	case cli.CommandStatus:
		renderStatus(w, resp)
	case cli.CommandStop:
		if resp.Turn != nil {
			renderMessage(w, *resp.Turn)
			return
		}
		fmt.Fprintln(w, resp.Message)
	case cli.CommandHistory:
		renderHistory(w, resp.History)
	case cli.CommandSettings, cli.CommandVoice, cli.CommandVolume:
		if resp.Settings != nil {
			renderSettings(w, *resp.Settings)
			return
		}
		fmt.Fprintln(w, resp.Message)
	default:
		if resp.Message != "" {
			fmt.Fprintln(w, resp.Message)
		}
	}
}

func renderStatus(w io.Writer, resp ipc.Response) {
	fmt.Fprintln(w, resp.Mode)
	if strings.HasPrefix(resp.Mode, "error") {
		return
	}
	if resp.Session != nil {
		s := resp.Session
		fmt.Fprintf(w, "session: %s %s (%s / %s, %d messages)\n",
			s.ID, s.Title, s.Languages.Provider.Name(), s.Languages.Patient.Name(), len(s.Messages))
	}
	if p := resp.Processing; p != nil {
		fmt.Fprintf(w, "stage: %s\n", p.Stage)
		if p.OriginalText != "" {
			fmt.Fprintf(w, "heard: %s\n", p.OriginalText)
		}
		if p.TranslatedText != "" {
			fmt.Fprintf(w, "translated: %s\n", p.TranslatedText)
		}
	}
}

func renderMessage(w io.Writer, msg domain.Message) {
	fmt.Fprintf(w, "%s (%s → %s, %d%%)\n", msg.Speaker, msg.OriginalLang, msg.TranslatedLang, msg.Confidence)
	fmt.Fprintf(w, "  %s\n", msg.OriginalText)
	fmt.Fprintf(w, "  %s\n", msg.TranslatedText)
}

func renderHistory(w io.Writer, sessions []domain.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "no finished consultations")
		return
	}
	for _, s := range sessions {
		fmt.Fprintf(w, "%s | %s | %s | %s / %s | %s | %d messages\n",
			s.ID,
			s.CreatedAt.Local().Format(time.DateTime),
			s.Title,
			s.Languages.Provider.Name(),
			s.Languages.Patient.Name(),
			time.Duration(s.DurationSeconds)*time.Second,
			len(s.Messages),
		)
	}
}

func renderSettings(w io.Writer, s domain.Settings) {
	fmt.Fprintf(w, "languages: %s / %s\n", s.ProviderLanguage.Name(), s.PatientLanguage.Name())
	fmt.Fprintf(w, "voices: provider=%s patient=%s\n", s.ProviderVoice, s.PatientVoice)
	fmt.Fprintf(w, "volume: mic=%d speaker=%d\n", s.MicVolume, s.SpeakerVolume)
	fmt.Fprintf(w, "high quality recording: %t\n", s.HighQualityRecording)
}
