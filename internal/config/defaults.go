package config

import "github.com/rbright/tandem/internal/domain"

// DefaultAPIKeyEnv names the variable holding the gateway key.
const DefaultAPIKeyEnv = "TANDEM_API_KEY"

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	player := "pw-play"

	return Config{
		Gateway: GatewayConfig{
			BaseURL:         "https://api.spi-tch.com/v1",
			APIKeyEnv:       DefaultAPIKeyEnv,
			TranscribeModel: "mansa_v1",
			SpeechModel:     "legacy",
			MockLatencyMS:   400,
		},
		Languages: LanguagesConfig{
			Provider: domain.LanguageEnglish,
			Patient:  domain.LanguageYoruba,
		},
		Voices: VoicesConfig{
			Provider: "john",
			Patient:  "sade",
		},
		Audio: AudioConfig{
			Input:         "default",
			Fallback:      "default",
			MicVolume:     75,
			SpeakerVolume: 50,
			HighQuality:   true,
			Playback:      true,
			PlayerCmd:     CommandConfig{Raw: player, Argv: mustParseArgv(player)},
		},
		Timeouts: TimeoutsConfig{
			StageMS:   15000,
			OverallMS: 30000,
			FinishMS:  3000,
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			AppName:        "tandem",
			SoundEnable:    true,
			ErrorTimeoutMS: 4000,
		},
		Debug: DebugConfig{},
	}
}
