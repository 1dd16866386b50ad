// Package gateway talks to the remote speech/translation service.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rbright/tandem/internal/domain"
	"github.com/rbright/tandem/internal/fault"
)

const (
	DefaultBaseURL         = "https://api.spi-tch.com/v1"
	DefaultTranscribeModel = "mansa_v1"
	DefaultSpeechModel     = "legacy"

	maxErrorBody = 4 << 10
)

// Gateway is the remote collaborator used by each turn.
type Gateway interface {
	Transcribe(ctx context.Context, rec domain.Recording, lang domain.Language) (string, error)
	Translate(ctx context.Context, text string, source, target domain.Language) (string, error)
	Synthesize(ctx context.Context, text string, lang domain.Language, voice string) (domain.Speech, error)
}

// Config configures the HTTP client.
type Config struct {
	BaseURL         string
	APIKey          string
	TranscribeModel string
	SpeechModel     string
	UserAgent       string
	HTTPClient      *http.Client
}

// Client is the HTTP Gateway implementation.
type Client struct {
	baseURL         string
	apiKey          string
	transcribeModel string
	speechModel     string
	userAgent       string
	http            *http.Client
}

// NewClient validates cfg and returns a Client. Per-call deadlines come from
// the caller's context, so the default transport has no overall timeout.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fault.New(fault.KindInvalidConfiguration, "gateway api key is empty")
	}
	client := &Client{
		baseURL:         baseURL,
		apiKey:          strings.TrimSpace(cfg.APIKey),
		transcribeModel: firstNonEmpty(cfg.TranscribeModel, DefaultTranscribeModel),
		speechModel:     firstNonEmpty(cfg.SpeechModel, DefaultSpeechModel),
		userAgent:       strings.TrimSpace(cfg.UserAgent),
		http:            cfg.HTTPClient,
	}
	if client.http == nil {
		client.http = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: 30 * time.Second,
				IdleConnTimeout:       90 * time.Second,
			},
		}
	}
	return client, nil
}

type textResponse struct {
	Text string `json:"text"`
}

type translateRequest struct {
	Source domain.Language `json:"source"`
	Target domain.Language `json:"target"`
	Text   string          `json:"text"`
}

type speechRequest struct {
	Language domain.Language `json:"language"`
	Text     string          `json:"text"`
	Voice    string          `json:"voice"`
	Model    string          `json:"model"`
}

// Transcribe uploads the recording as multipart form data.
func (c *Client) Transcribe(ctx context.Context, rec domain.Recording, lang domain.Language) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fields := [][2]string{
		{"language", string(lang)},
		{"model", c.transcribeModel},
		{"timestamp", "sentence"},
	}
	for _, field := range fields {
		if err := mw.WriteField(field[0], field[1]); err != nil {
			return "", fmt.Errorf("write %s field: %w", field[0], err)
		}
	}
	fw, err := mw.CreateFormFile("content", "recording"+extensionFor(rec.MimeType))
	if err != nil {
		return "", fmt.Errorf("create content part: %w", err)
	}
	if _, err := fw.Write(rec.Audio); err != nil {
		return "", fmt.Errorf("write content part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}

	resp, err := c.do(ctx, "/transcriptions", mw.FormDataContentType(), &body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	return decodeText(resp.Body)
}

// Translate converts text from source to target.
func (c *Client) Translate(ctx context.Context, text string, source, target domain.Language) (string, error) {
	payload, err := json.Marshal(translateRequest{Source: source, Target: target, Text: text})
	if err != nil {
		return "", fmt.Errorf("encode translate request: %w", err)
	}
	resp, err := c.do(ctx, "/translate", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	return decodeText(resp.Body)
}

// Synthesize renders text with voice and returns the raw audio body.
func (c *Client) Synthesize(ctx context.Context, text string, lang domain.Language, voice string) (domain.Speech, error) {
	payload, err := json.Marshal(speechRequest{Language: lang, Text: text, Voice: voice, Model: c.speechModel})
	if err != nil {
		return domain.Speech{}, fmt.Errorf("encode speech request: %w", err)
	}
	resp, err := c.do(ctx, "/speech", "application/json", bytes.NewReader(payload))
	if err != nil {
		return domain.Speech{}, err
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Speech{}, classifyTransport(ctx, fmt.Errorf("read speech body: %w", err))
	}
	mimeType := "audio/wav"
	if mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil && mediaType != "" {
		mimeType = mediaType
	}
	return domain.Speech{Audio: audio, MimeType: mimeType}, nil
}

// do sends one authenticated POST and converts failures into fault errors.
// The caller owns the returned body on success.
func (c *Client) do(ctx context.Context, path string, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, classifyStatus(resp.StatusCode, string(raw))
}

func classifyStatus(status int, body string) error {
	kind := fault.KindGateway
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = fault.KindAuth
	case http.StatusTooManyRequests:
		kind = fault.KindRateLimited
	}
	return &fault.Error{Kind: kind, Status: status, Body: strings.TrimSpace(body)}
}

// classifyTransport leaves context expiry untouched so the pipeline can
// attribute it to a stage; everything else is a network failure.
func classifyTransport(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return &fault.Error{Kind: fault.KindNetwork, Err: err}
}

func decodeText(r io.Reader) (string, error) {
	var out textResponse
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return "", &fault.Error{Kind: fault.KindGateway, Detail: "decode response", Err: err}
	}
	return out.Text, nil
}

func extensionFor(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "webm"):
		return ".webm"
	case strings.Contains(mimeType, "ogg"):
		return ".ogg"
	case strings.Contains(mimeType, "mpeg"):
		return ".mp3"
	default:
		return ".wav"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
