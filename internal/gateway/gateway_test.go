package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rbright/tandem/internal/domain"
	"github.com/rbright/tandem/internal/fault"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{BaseURL: server.URL + "/", APIKey: "secret", HTTPClient: server.Client()})
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "http://localhost"})
	require.ErrorIs(t, err, fault.ErrInvalidConfiguration)

	client, err := NewClient(Config{APIKey: " key "})
	require.NoError(t, err)
	require.Equal(t, DefaultBaseURL, client.baseURL)
	require.Equal(t, DefaultTranscribeModel, client.transcribeModel)
	require.Equal(t, DefaultSpeechModel, client.speechModel)
	require.Equal(t, "key", client.apiKey)
}

func TestTranscribeSendsMultipartForm(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/transcriptions", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "yo", r.FormValue("language"))
		require.Equal(t, DefaultTranscribeModel, r.FormValue("model"))

		file, header, err := r.FormFile("content")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "recording.wav", header.Filename)
		body, err := io.ReadAll(file)
		require.NoError(t, err)
		require.Equal(t, []byte("RIFFdata"), body)

		_ = json.NewEncoder(w).Encode(map[string]string{"text": "Pẹlẹ o dokita."})
	})

	text, err := client.Transcribe(context.Background(), domain.Recording{Audio: []byte("RIFFdata"), MimeType: "audio/wav"}, domain.LanguageYoruba)
	require.NoError(t, err)
	require.Equal(t, "Pẹlẹ o dokita.", text)
}

func TestTranslateSendsJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/translate", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req translateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, translateRequest{Source: "en", Target: "yo", Text: "Hello doctor."}, req)

		_ = json.NewEncoder(w).Encode(map[string]string{"text": "Pẹlẹ o dokita."})
	})

	text, err := client.Translate(context.Background(), "Hello doctor.", domain.LanguageEnglish, domain.LanguageYoruba)
	require.NoError(t, err)
	require.Equal(t, "Pẹlẹ o dokita.", text)
}

func TestSynthesizeReturnsRawAudio(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/speech", r.URL.Path)
		var req speechRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, speechRequest{Language: "yo", Text: "Pẹlẹ o dokita.", Voice: "sade", Model: DefaultSpeechModel}, req)

		w.Header().Set("Content-Type", "audio/mpeg; charset=binary")
		_, _ = w.Write([]byte{0xff, 0xfb, 0x90})
	})

	speech, err := client.Synthesize(context.Background(), "Pẹlẹ o dokita.", domain.LanguageYoruba, "sade")
	require.NoError(t, err)
	require.Equal(t, "audio/mpeg", speech.MimeType)
	require.Equal(t, []byte{0xff, 0xfb, 0x90}, speech.Audio)
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   *fault.Error
	}{
		{status: http.StatusUnauthorized, want: fault.ErrAuth},
		{status: http.StatusForbidden, want: fault.ErrAuth},
		{status: http.StatusTooManyRequests, want: fault.ErrRateLimited},
		{status: http.StatusBadGateway, want: fault.ErrGateway},
		{status: http.StatusBadRequest, want: fault.ErrGateway},
	}

	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "upstream says no", tc.status)
			})

			_, err := client.Translate(context.Background(), "hi", domain.LanguageEnglish, domain.LanguageHausa)
			require.ErrorIs(t, err, tc.want)
			require.NotErrorIs(t, err, fault.ErrStageTimeout)

			var fe *fault.Error
			require.ErrorAs(t, err, &fe)
			require.Equal(t, tc.status, fe.Status)
			require.Equal(t, "upstream says no", fe.Body)
		})
	}
}

func TestTransportFailureIsNetwork(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, err := NewClient(Config{BaseURL: url, APIKey: "secret"})
	require.NoError(t, err)

	_, err = client.Translate(context.Background(), "hi", domain.LanguageEnglish, domain.LanguageIgbo)
	require.ErrorIs(t, err, fault.ErrNetwork)
}

func TestContextDeadlineIsLeftForCaller(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Transcribe(ctx, domain.Recording{Audio: []byte{1}}, domain.LanguageEnglish)
	require.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	require.NotErrorIs(t, err, fault.ErrNetwork)
}

func TestMalformedResponseIsGatewayFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	})

	_, err := client.Translate(context.Background(), "hi", domain.LanguageEnglish, domain.LanguageYoruba)
	require.ErrorIs(t, err, fault.ErrGateway)
}

func TestMockGateway(t *testing.T) {
	mock := NewMock(0)
	ctx := context.Background()

	text, err := mock.Transcribe(ctx, domain.Recording{}, domain.LanguageHausa)
	require.NoError(t, err)
	require.Equal(t, mockTranscriptions[domain.LanguageHausa], text)

	translated, err := mock.Translate(ctx, "Hello doctor.", domain.LanguageEnglish, domain.LanguageYoruba)
	require.NoError(t, err)
	require.Equal(t, "Pẹlẹ o dokita.", translated)

	translated, err = mock.Translate(ctx, "unknown phrase", domain.LanguageEnglish, domain.LanguageYoruba)
	require.NoError(t, err)
	require.Equal(t, mockFallbackTranslation, translated)

	speech, err := mock.Synthesize(ctx, translated, domain.LanguageYoruba, "sade")
	require.NoError(t, err)
	require.Equal(t, "audio/wav", speech.MimeType)
	require.NotEmpty(t, speech.Audio)
}

func TestMockHonorsContext(t *testing.T) {
	mock := NewMock(time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := mock.Transcribe(ctx, domain.Recording{}, domain.LanguageEnglish)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClientSendsUserAgent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "tandem/test", r.Header.Get("User-Agent"))
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "ok"})
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(Config{BaseURL: server.URL, APIKey: "secret", UserAgent: "tandem/test", HTTPClient: server.Client()})
	require.NoError(t, err)

	text, err := client.Translate(context.Background(), "hi", domain.LanguageEnglish, domain.LanguageHausa)
	require.NoError(t, err)
	require.Equal(t, "ok", text)
}
