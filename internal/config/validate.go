package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rbright/tandem/internal/domain"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if err := validateGateway(cfg.Gateway); err != nil {
		return nil, err
	}

	pair := cfg.Languages
	if !pair.Provider.Valid() {
		return nil, fmt.Errorf("languages.provider %q is not supported", pair.Provider)
	}
	if !pair.Patient.Valid() {
		return nil, fmt.Errorf("languages.patient %q is not supported", pair.Patient)
	}
	if pair.Provider == pair.Patient {
		return nil, fmt.Errorf("languages.provider and languages.patient must differ")
	}
	if err := domain.ValidateVoice(pair.Provider, cfg.Voices.Provider); err != nil {
		return nil, fmt.Errorf("voices.provider: %w", err)
	}
	if err := domain.ValidateVoice(pair.Patient, cfg.Voices.Patient); err != nil {
		return nil, fmt.Errorf("voices.patient: %w", err)
	}

	if err := validateVolume("audio.mic_volume", cfg.Audio.MicVolume); err != nil {
		return nil, err
	}
	if err := validateVolume("audio.speaker_volume", cfg.Audio.SpeakerVolume); err != nil {
		return nil, err
	}
	if cfg.Audio.PlayerCmd.Raw != "" && len(cfg.Audio.PlayerCmd.Argv) == 0 {
		return nil, fmt.Errorf("audio.player_cmd is configured but empty")
	}
	if cfg.Audio.Playback && len(cfg.Audio.PlayerCmd.Argv) == 0 {
		warnings = append(warnings, Warning{Message: "audio.player_cmd is empty; only WAV speech can be played"})
	}

	if cfg.Timeouts.StageMS <= 0 {
		return nil, fmt.Errorf("timeouts.stage_ms must be > 0")
	}
	if cfg.Timeouts.OverallMS <= 0 {
		return nil, fmt.Errorf("timeouts.overall_ms must be > 0")
	}
	if cfg.Timeouts.FinishMS < 0 {
		return nil, fmt.Errorf("timeouts.finish_ms must be >= 0")
	}
	if cfg.Timeouts.OverallMS < cfg.Timeouts.StageMS {
		warnings = append(warnings, Warning{Message: fmt.Sprintf(
			"timeouts.overall_ms (%d) is shorter than timeouts.stage_ms (%d); the overall budget will fire first",
			cfg.Timeouts.OverallMS, cfg.Timeouts.StageMS,
		)})
	}

	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}
	if cfg.Indicator.Enable && strings.TrimSpace(cfg.Indicator.AppName) == "" {
		return nil, fmt.Errorf("indicator.app_name must not be empty when indicator.enable=true")
	}

	return warnings, nil
}

func validateGateway(g GatewayConfig) error {
	raw := strings.TrimSpace(g.BaseURL)
	if raw == "" {
		return fmt.Errorf("gateway.base_url must not be empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("gateway.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("gateway.base_url must use http or https")
	}
	if parsed.Host == "" {
		return fmt.Errorf("gateway.base_url must include a host")
	}
	if strings.TrimSpace(g.APIKeyEnv) == "" {
		return fmt.Errorf("gateway.api_key_env must not be empty")
	}
	if strings.TrimSpace(g.TranscribeModel) == "" {
		return fmt.Errorf("gateway.transcribe_model must not be empty")
	}
	if strings.TrimSpace(g.SpeechModel) == "" {
		return fmt.Errorf("gateway.speech_model must not be empty")
	}
	if g.MockLatencyMS < 0 {
		return fmt.Errorf("gateway.mock_latency_ms must be >= 0")
	}
	return nil
}

func validateVolume(key string, value int) error {
	if value < 0 || value > 100 {
		return fmt.Errorf("%s must be within 0-100, got %d", key, value)
	}
	return nil
}
