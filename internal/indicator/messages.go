package indicator

import (
	"os"
	"strings"

	"github.com/rbright/tandem/internal/domain"
)

type locale string

const (
	localeEnglish locale = "en"
)

type messages struct {
	recording  map[domain.Speaker]string
	stages     map[domain.Stage]string
	errorText  string
}

func indicatorMessagesFromEnv() messages {
	return indicatorMessages(resolveLocale(os.Getenv("LANG")))
}

// resolveLocale only knows English today; other locales fall back to it.
func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "en") {
		return localeEnglish
	}
	return localeEnglish
}

func indicatorMessages(tag locale) messages {
	switch tag {
	case localeEnglish:
		fallthrough
	default:
		return messages{
			recording: map[domain.Speaker]string{
				domain.SpeakerProvider: "Listening to provider…",
				domain.SpeakerPatient:  "Listening to patient…",
			},
			stages: map[domain.Stage]string{
				domain.StageListen:     "Processing audio…",
				domain.StageTranscribe: "Transcribing…",
				domain.StageTranslate:  "Translating…",
				domain.StageSpeak:      "Speaking…",
			},
			errorText: "Processing failed",
		}
	}
}

func (m messages) forRecording(speaker domain.Speaker) string {
	if text, ok := m.recording[speaker]; ok {
		return text
	}
	return "Recording…"
}

func (m messages) forStage(stage domain.Stage) string {
	if text, ok := m.stages[stage]; ok {
		return text
	}
	return m.stages[domain.StageListen]
}
