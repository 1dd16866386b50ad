package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rbright/tandem/internal/domain"
)

type jsoncConfig struct {
	Gateway   *jsoncGateway   `json:"gateway"`
	Languages *jsoncPair      `json:"languages"`
	Voices    *jsoncPair      `json:"voices"`
	Audio     *jsoncAudio     `json:"audio"`
	Timeouts  *jsoncTimeouts  `json:"timeouts"`
	Indicator *jsoncIndicator `json:"indicator"`
	Debug     *jsoncDebug     `json:"debug"`
}

type jsoncGateway struct {
	BaseURL         *string `json:"base_url"`
	APIKeyEnv       *string `json:"api_key_env"`
	TranscribeModel *string `json:"transcribe_model"`
	SpeechModel     *string `json:"speech_model"`
	Mock            *bool   `json:"mock"`
	MockLatencyMS   *int    `json:"mock_latency_ms"`
	HealthGRPC      *string `json:"health_grpc"`
}

type jsoncPair struct {
	Provider *string `json:"provider"`
	Patient  *string `json:"patient"`
}

type jsoncAudio struct {
	Input         *string `json:"input"`
	Fallback      *string `json:"fallback"`
	MicVolume     *int    `json:"mic_volume"`
	SpeakerVolume *int    `json:"speaker_volume"`
	HighQuality   *bool   `json:"high_quality"`
	Playback      *bool   `json:"playback"`
	PlayerCmd     *string `json:"player_cmd"`
}

type jsoncTimeouts struct {
	StageMS   *int `json:"stage_ms"`
	OverallMS *int `json:"overall_ms"`
	FinishMS  *int `json:"finish_ms"`
}

type jsoncIndicator struct {
	Enable         *bool   `json:"enable"`
	AppName        *string `json:"app_name"`
	SoundEnable    *bool   `json:"sound_enable"`
	ErrorTimeoutMS *int    `json:"error_timeout_ms"`
}

type jsoncDebug struct {
	AudioDump *bool `json:"audio_dump"`
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	if err := payload.applyTo(&cfg); err != nil {
		return Config{}, nil, err
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) error {
	if g := payload.Gateway; g != nil {
		setTrimmed(&cfg.Gateway.BaseURL, g.BaseURL)
		setTrimmed(&cfg.Gateway.APIKeyEnv, g.APIKeyEnv)
		setTrimmed(&cfg.Gateway.TranscribeModel, g.TranscribeModel)
		setTrimmed(&cfg.Gateway.SpeechModel, g.SpeechModel)
		setTrimmed(&cfg.Gateway.HealthGRPC, g.HealthGRPC)
		set(&cfg.Gateway.Mock, g.Mock)
		set(&cfg.Gateway.MockLatencyMS, g.MockLatencyMS)
	}

	if l := payload.Languages; l != nil {
		if l.Provider != nil {
			cfg.Languages.Provider = normalizeLanguage(*l.Provider)
		}
		if l.Patient != nil {
			cfg.Languages.Patient = normalizeLanguage(*l.Patient)
		}
	}

	if v := payload.Voices; v != nil {
		if v.Provider != nil {
			cfg.Voices.Provider = strings.ToLower(strings.TrimSpace(*v.Provider))
		}
		if v.Patient != nil {
			cfg.Voices.Patient = strings.ToLower(strings.TrimSpace(*v.Patient))
		}
	}

	if a := payload.Audio; a != nil {
		set(&cfg.Audio.Input, a.Input)
		set(&cfg.Audio.Fallback, a.Fallback)
		set(&cfg.Audio.MicVolume, a.MicVolume)
		set(&cfg.Audio.SpeakerVolume, a.SpeakerVolume)
		set(&cfg.Audio.HighQuality, a.HighQuality)
		set(&cfg.Audio.Playback, a.Playback)
		if a.PlayerCmd != nil {
			argv, err := parseArgv(*a.PlayerCmd)
			if err != nil {
				return fmt.Errorf("invalid audio.player_cmd: %w", err)
			}
			cfg.Audio.PlayerCmd = CommandConfig{Raw: *a.PlayerCmd, Argv: argv}
		}
	}

	if t := payload.Timeouts; t != nil {
		set(&cfg.Timeouts.StageMS, t.StageMS)
		set(&cfg.Timeouts.OverallMS, t.OverallMS)
		set(&cfg.Timeouts.FinishMS, t.FinishMS)
	}

	if i := payload.Indicator; i != nil {
		set(&cfg.Indicator.Enable, i.Enable)
		setTrimmed(&cfg.Indicator.AppName, i.AppName)
		set(&cfg.Indicator.SoundEnable, i.SoundEnable)
		set(&cfg.Indicator.ErrorTimeoutMS, i.ErrorTimeoutMS)
	}

	if payload.Debug != nil {
		set(&cfg.Debug.AudioDump, payload.Debug.AudioDump)
	}
	return nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setTrimmed(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func normalizeLanguage(raw string) domain.Language {
	return domain.Language(strings.ToLower(strings.TrimSpace(raw)))
}

// normalizeJSONC blanks comments and drops trailing commas so encoding/json
// can decode the result. Byte offsets are preserved for error locations.
func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

type scanState int

const (
	scanCode scanState = iota
	scanString
	scanEscape
	scanLineComment
	scanBlockComment
)

func stripJSONCComments(content string) (string, error) {
	out := []byte(content)
	state := scanCode

	for i := 0; i < len(out); i++ {
		ch := out[i]
		switch state {
		case scanString:
			switch ch {
			case '\\':
				state = scanEscape
			case '"':
				state = scanCode
			}
		case scanEscape:
			state = scanString
		case scanLineComment:
			if ch == '\n' || ch == '\r' {
				state = scanCode
				continue
			}
			out[i] = ' '
		case scanBlockComment:
			if ch == '*' && i+1 < len(out) && out[i+1] == '/' {
				out[i], out[i+1] = ' ', ' '
				i++
				state = scanCode
				continue
			}
			if !isJSONWhitespace(ch) {
				out[i] = ' '
			}
		default:
			switch {
			case ch == '"':
				state = scanString
			case ch == '/' && i+1 < len(out) && out[i+1] == '/':
				out[i], out[i+1] = ' ', ' '
				i++
				state = scanLineComment
			case ch == '/' && i+1 < len(out) && out[i+1] == '*':
				out[i], out[i+1] = ' ', ' '
				i++
				state = scanBlockComment
			}
		}
	}

	if state == scanBlockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}
	return string(out), nil
}

// stripJSONCTrailingCommas replaces a comma followed only by whitespace and a
// closing bracket with a space.
func stripJSONCTrailingCommas(content string) string {
	out := []byte(content)
	state := scanCode

	for i := 0; i < len(out); i++ {
		ch := out[i]
		switch state {
		case scanString:
			switch ch {
			case '\\':
				state = scanEscape
			case '"':
				state = scanCode
			}
			continue
		case scanEscape:
			state = scanString
			continue
		}

		if ch == '"' {
			state = scanString
			continue
		}
		if ch != ',' {
			continue
		}
		j := i + 1
		for j < len(out) && isJSONWhitespace(out[j]) {
			j++
		}
		if j < len(out) && (out[j] == '}' || out[j] == ']') {
			out[i] = ' '
		}
	}
	return string(out)
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

// ensureSingleJSONValue decodes into RawMessage so DisallowUnknownFields
// cannot mask a trailing value.
func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra json.RawMessage
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := min(int(offset), len(content))
	line, col := 1, 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
