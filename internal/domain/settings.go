package domain

import (
	"fmt"
	"slices"
	"strings"
)

var voiceCatalogue = map[Language][]string{
	LanguageEnglish: {"john", "lucy", "lina", "jude", "henry", "kani"},
	LanguageYoruba:  {"sade", "funmi", "segun", "femi"},
	LanguageHausa:   {"hasan", "amina", "zainab", "aliyu"},
	LanguageIgbo:    {"obinna", "ngozi", "amara", "ebuka"},
}

// Voices lists the voices available for lang.
func Voices(lang Language) []string {
	return slices.Clone(voiceCatalogue[lang])
}

// DefaultVoice returns the first catalogue voice for lang.
func DefaultVoice(lang Language) string {
	voices := voiceCatalogue[lang]
	if len(voices) == 0 {
		return ""
	}
	return voices[0]
}

// ValidateVoice checks that voice belongs to lang.
func ValidateVoice(lang Language, voice string) error {
	voice = strings.TrimSpace(voice)
	if slices.Contains(voiceCatalogue[lang], voice) {
		return nil
	}
	return fmt.Errorf("voice %q is not available for %s", voice, lang.Name())
}

// Settings is the user-adjustable configuration read by every turn.
type Settings struct {
	MicVolume            int      `json:"micVolume"`
	SpeakerVolume        int      `json:"speakerVolume"`
	ProviderLanguage     Language `json:"providerLanguage"`
	PatientLanguage      Language `json:"patientLanguage"`
	ProviderVoice        string   `json:"providerVoice"`
	PatientVoice         string   `json:"patientVoice"`
	HighQualityRecording bool     `json:"highQualityRecording"`
	AutoSave             bool     `json:"autoSave"`
}

// DefaultSettings mirrors the product's initial settings.
func DefaultSettings() Settings {
	return Settings{
		MicVolume:            75,
		SpeakerVolume:        50,
		ProviderLanguage:     LanguageEnglish,
		PatientLanguage:      LanguageYoruba,
		ProviderVoice:        "john",
		PatientVoice:         "sade",
		HighQualityRecording: true,
	}
}

// Voice returns the active voice of speaker.
func (s Settings) Voice(speaker Speaker) string {
	if speaker == SpeakerProvider {
		return s.ProviderVoice
	}
	return s.PatientVoice
}

// Language returns the configured default language of speaker.
func (s Settings) Language(speaker Speaker) Language {
	if speaker == SpeakerProvider {
		return s.ProviderLanguage
	}
	return s.PatientLanguage
}

// SettingsPatch is a partial settings update; nil fields are left unchanged.
type SettingsPatch struct {
	MicVolume            *int
	SpeakerVolume        *int
	ProviderLanguage     *Language
	PatientLanguage      *Language
	ProviderVoice        *string
	PatientVoice         *string
	HighQualityRecording *bool
	AutoSave             *bool
}

// Apply returns s updated by patch after validating the result.
//
// A language change without an explicit voice resets that speaker's voice to
// the language default when the current voice does not belong to it.
func (s Settings) Apply(patch SettingsPatch) (Settings, error) {
	out := s
	if patch.MicVolume != nil {
		out.MicVolume = *patch.MicVolume
	}
	if patch.SpeakerVolume != nil {
		out.SpeakerVolume = *patch.SpeakerVolume
	}
	if patch.ProviderLanguage != nil {
		out.ProviderLanguage = *patch.ProviderLanguage
	}
	if patch.PatientLanguage != nil {
		out.PatientLanguage = *patch.PatientLanguage
	}
	if patch.ProviderVoice != nil {
		out.ProviderVoice = strings.TrimSpace(*patch.ProviderVoice)
	} else if ValidateVoice(out.ProviderLanguage, out.ProviderVoice) != nil {
		out.ProviderVoice = DefaultVoice(out.ProviderLanguage)
	}
	if patch.PatientVoice != nil {
		out.PatientVoice = strings.TrimSpace(*patch.PatientVoice)
	} else if ValidateVoice(out.PatientLanguage, out.PatientVoice) != nil {
		out.PatientVoice = DefaultVoice(out.PatientLanguage)
	}
	if patch.HighQualityRecording != nil {
		out.HighQualityRecording = *patch.HighQualityRecording
	}
	if patch.AutoSave != nil {
		out.AutoSave = *patch.AutoSave
	}
	if err := out.Validate(); err != nil {
		return s, err
	}
	return out, nil
}

// Validate enforces volume ranges and language/voice membership.
func (s Settings) Validate() error {
	if s.MicVolume < 0 || s.MicVolume > 100 {
		return fmt.Errorf("mic volume must be within 0-100, got %d", s.MicVolume)
	}
	if s.SpeakerVolume < 0 || s.SpeakerVolume > 100 {
		return fmt.Errorf("speaker volume must be within 0-100, got %d", s.SpeakerVolume)
	}
	if !s.ProviderLanguage.Valid() {
		return fmt.Errorf("unsupported provider language %q", s.ProviderLanguage)
	}
	if !s.PatientLanguage.Valid() {
		return fmt.Errorf("unsupported patient language %q", s.PatientLanguage)
	}
	if err := ValidateVoice(s.ProviderLanguage, s.ProviderVoice); err != nil {
		return fmt.Errorf("provider: %w", err)
	}
	if err := ValidateVoice(s.PatientLanguage, s.PatientVoice); err != nil {
		return fmt.Errorf("patient: %w", err)
	}
	return nil
}
