package gateway

import (
	"context"
	"time"

	"github.com/rbright/tandem/internal/audio"
	"github.com/rbright/tandem/internal/domain"
)

var mockTranscriptions = map[domain.Language]string{
	domain.LanguageEnglish: "I'm experiencing a sharp pain in my lower abdomen.",
	domain.LanguageYoruba:  "Mo ni irora nla ni ikun isale mi.",
	domain.LanguageHausa:   "Ina jin zafi mai tsanani a cikin cikina na kasa.",
	domain.LanguageIgbo:    "Ana m mmetụta nnukwu mgbu na afo m di ala.",
}

var mockTranslations = map[string]string{
	"I'm experiencing a sharp pain in my lower abdomen.": "Mo ni irora nla ni ikun isale mi.",
	"Mo ni irora nla ni ikun isale mi.":                  "I'm experiencing a sharp pain in my lower abdomen.",
	"Hello doctor.":                                      "Pẹlẹ o dokita.",
	"Pẹlẹ o dokita.":                                     "Hello doctor.",
}

const (
	mockFallbackTranscription = "This is a mock transcription."
	mockFallbackTranslation   = "This is a mock translation."
	mockSpeechSampleRate      = 44100
)

// Mock is an offline Gateway with canned phrases and simulated latency.
type Mock struct {
	Latency time.Duration
}

// NewMock returns a Mock that sleeps latency before every call.
func NewMock(latency time.Duration) *Mock {
	return &Mock{Latency: latency}
}

func (m *Mock) Transcribe(ctx context.Context, _ domain.Recording, lang domain.Language) (string, error) {
	if err := m.wait(ctx); err != nil {
		return "", err
	}
	if text, ok := mockTranscriptions[lang]; ok {
		return text, nil
	}
	return mockFallbackTranscription, nil
}

func (m *Mock) Translate(ctx context.Context, text string, _, _ domain.Language) (string, error) {
	if err := m.wait(ctx); err != nil {
		return "", err
	}
	if translated, ok := mockTranslations[text]; ok {
		return translated, nil
	}
	return mockFallbackTranslation, nil
}

// Synthesize returns two seconds of silence.
func (m *Mock) Synthesize(ctx context.Context, _ string, _ domain.Language, _ string) (domain.Speech, error) {
	if err := m.wait(ctx); err != nil {
		return domain.Speech{}, err
	}
	return domain.Speech{
		Audio:    audio.SilentWAV(2*time.Second, mockSpeechSampleRate),
		MimeType: "audio/wav",
	}, nil
}

func (m *Mock) wait(ctx context.Context) error {
	if m.Latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(m.Latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
