// Package config resolves, parses, validates, and defaults tandem configuration.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/rbright/tandem/internal/domain"
)

// Config is the fully materialized runtime configuration.
type Config struct {
	Gateway   GatewayConfig
	Languages LanguagesConfig
	Voices    VoicesConfig
	Audio     AudioConfig
	Timeouts  TimeoutsConfig
	Indicator IndicatorConfig
	Debug     DebugConfig
}

// GatewayConfig locates the speech gateway. The API key itself is never
// stored in the file; it is read from the APIKeyEnv variable.
type GatewayConfig struct {
	BaseURL         string
	APIKeyEnv       string
	TranscribeModel string
	SpeechModel     string
	Mock            bool
	MockLatencyMS   int
	HealthGRPC      string
}

// APIKey reads the gateway key from the configured environment variable.
func (g GatewayConfig) APIKey() string {
	return strings.TrimSpace(os.Getenv(g.APIKeyEnv))
}

// LanguagesConfig is the default language pair offered on the welcome screen.
type LanguagesConfig struct {
	Provider domain.Language
	Patient  domain.Language
}

// VoicesConfig selects the synthesis voice per participant.
type VoicesConfig struct {
	Provider string
	Patient  string
}

// AudioConfig controls input selection, initial volumes, and playback.
type AudioConfig struct {
	Input         string
	Fallback      string
	MicVolume     int
	SpeakerVolume int
	HighQuality   bool
	Playback      bool
	PlayerCmd     CommandConfig
}

// TimeoutsConfig bounds turn stages and the end-session finishing screen.
type TimeoutsConfig struct {
	StageMS   int
	OverallMS int
	FinishMS  int
}

func (t TimeoutsConfig) Stage() time.Duration   { return time.Duration(t.StageMS) * time.Millisecond }
func (t TimeoutsConfig) Overall() time.Duration { return time.Duration(t.OverallMS) * time.Millisecond }
func (t TimeoutsConfig) Finish() time.Duration  { return time.Duration(t.FinishMS) * time.Millisecond }

// IndicatorConfig controls desktop notifications and audio cues.
type IndicatorConfig struct {
	Enable         bool
	AppName        string
	SoundEnable    bool
	ErrorTimeoutMS int
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	AudioDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

// Settings derives the initial user settings from the configuration.
func (c Config) Settings() domain.Settings {
	settings := domain.DefaultSettings()
	settings.MicVolume = c.Audio.MicVolume
	settings.SpeakerVolume = c.Audio.SpeakerVolume
	settings.HighQualityRecording = c.Audio.HighQuality
	settings.ProviderLanguage = c.Languages.Provider
	settings.PatientLanguage = c.Languages.Patient
	settings.ProviderVoice = c.Voices.Provider
	settings.PatientVoice = c.Voices.Patient
	return settings
}
