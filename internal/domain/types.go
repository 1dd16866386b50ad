// Package domain holds the consultation data model shared by the core packages.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Language is a supported consultation language code.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageYoruba  Language = "yo"
	LanguageHausa   Language = "ha"
	LanguageIgbo    Language = "ig"
)

var languageNames = map[Language]string{
	LanguageEnglish: "English",
	LanguageYoruba:  "Yoruba",
	LanguageHausa:   "Hausa",
	LanguageIgbo:    "Igbo",
}

// Languages returns the supported set in display order.
func Languages() []Language {
	return []Language{LanguageEnglish, LanguageYoruba, LanguageHausa, LanguageIgbo}
}

// ParseLanguage normalizes and validates a language code.
func ParseLanguage(raw string) (Language, error) {
	lang := Language(strings.ToLower(strings.TrimSpace(raw)))
	if !lang.Valid() {
		return "", fmt.Errorf("unsupported language %q", raw)
	}
	return lang, nil
}

// Valid reports whether the code belongs to the supported set.
func (l Language) Valid() bool {
	_, ok := languageNames[l]
	return ok
}

// Name returns the display name, or the raw code when unknown.
func (l Language) Name() string {
	if name, ok := languageNames[l]; ok {
		return name
	}
	return string(l)
}

// Speaker identifies which participant produced a turn.
type Speaker string

const (
	SpeakerProvider Speaker = "provider"
	SpeakerPatient  Speaker = "patient"
)

// ParseSpeaker accepts "provider" (or the legacy "doctor") and "patient".
func ParseSpeaker(raw string) (Speaker, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "provider", "doctor":
		return SpeakerProvider, nil
	case "patient":
		return SpeakerPatient, nil
	default:
		return "", fmt.Errorf("unknown speaker %q", raw)
	}
}

// Valid reports whether s is one of the two participants.
func (s Speaker) Valid() bool {
	return s == SpeakerProvider || s == SpeakerPatient
}

// Listener returns the other participant.
func (s Speaker) Listener() Speaker {
	if s == SpeakerProvider {
		return SpeakerPatient
	}
	return SpeakerProvider
}

// LanguagePair is the fixed provider/patient language assignment of a session.
type LanguagePair struct {
	Provider Language `json:"provider"`
	Patient  Language `json:"patient"`
}

// For returns the language spoken by speaker.
func (p LanguagePair) For(speaker Speaker) Language {
	if speaker == SpeakerProvider {
		return p.Provider
	}
	return p.Patient
}

// Route resolves the source and target language for a turn by speaker.
func (p LanguagePair) Route(speaker Speaker) (source Language, target Language) {
	return p.For(speaker), p.For(speaker.Listener())
}

// Stage is one step of a turn.
type Stage string

const (
	StageListen     Stage = "listen"
	StageTranscribe Stage = "transcribe"
	StageTranslate  Stage = "translate"
	StageSpeak      Stage = "speak"
)

// Stages returns the fixed execution order.
func Stages() []Stage {
	return []Stage{StageListen, StageTranscribe, StageTranslate, StageSpeak}
}

// Recording is one finished utterance handed from capture to the pipeline.
type Recording struct {
	Audio    []byte
	MimeType string
	Duration time.Duration
}

// Empty reports whether no audio was captured.
func (r Recording) Empty() bool {
	return len(r.Audio) == 0
}

// Speech is synthesized listener-side audio.
type Speech struct {
	Audio    []byte
	MimeType string
}

// Message is one completed turn. It is never mutated after creation.
type Message struct {
	ID             string    `json:"id"`
	Speaker        Speaker   `json:"speaker"`
	OriginalText   string    `json:"originalText"`
	TranslatedText string    `json:"translatedText"`
	OriginalLang   Language  `json:"originalLang"`
	TranslatedLang Language  `json:"translatedLang"`
	Confidence     int       `json:"confidence"`
	AudioRef       string    `json:"audioRef,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`

	// Speech holds the synthesized audio backing AudioRef; nil when the
	// speak stage soft-failed.
	Speech *Speech `json:"-"`
}

// Session is one consultation transcript.
type Session struct {
	ID              string       `json:"id"`
	Title           string       `json:"title"`
	CreatedAt       time.Time    `json:"createdAt"`
	DurationSeconds int64        `json:"durationSeconds"`
	Languages       LanguagePair `json:"languages"`
	Messages        []Message    `json:"messages"`
}

// Clone returns a copy that shares no message slice with s.
func (s Session) Clone() Session {
	out := s
	out.Messages = append([]Message(nil), s.Messages...)
	return out
}

// StageConfidence is the cosmetic per-stage confidence shown while processing.
type StageConfidence struct {
	Listen     int `json:"listen"`
	Transcribe int `json:"transcribe"`
	Translate  int `json:"translate"`
}

// ProcessingState is the live view of one in-flight turn.
type ProcessingState struct {
	Speaker        Speaker         `json:"speaker"`
	Stage          Stage           `json:"stage"`
	OriginalText   string          `json:"originalText,omitempty"`
	TranslatedText string          `json:"translatedText,omitempty"`
	Confidence     StageConfidence `json:"confidence"`
}
