package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestElevenLabsClientSynthesize(t *testing.T) {
	var (
		path    string
		apiKey  string
		payload synthesisPayload
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		apiKey = r.Header.Get("xi-api-key")
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-audio"))
	}))
	defer server.Close()

	client := NewElevenLabsClient(Config{APIKey: "xi", VoiceID: "voice-1", BaseURL: server.URL})
	require.True(t, client.Enabled())

	speech, err := client.Synthesize(context.Background(), SpeechRequest{
		Text:     "Walk me through your approach.",
		Settings: VoiceSettings{Stability: 0.5, SimilarityBoost: 0.7},
	})
	require.NoError(t, err)
	require.Equal(t, []byte("ID3-audio"), speech.Audio)
	require.Equal(t, "/v1/text-to-speech/voice-1", path)
	require.Equal(t, "xi", apiKey)
	require.Equal(t, "eleven_multilingual_v2", payload.ModelID)
	require.Equal(t, "Walk me through your approach.", payload.Text)
	require.InDelta(t, 0.5, payload.VoiceSettings.Stability, 0.0001)
	require.InDelta(t, 0.7, payload.VoiceSettings.SimilarityBoost, 0.0001)
}

func TestElevenLabsClientProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"invalid api key"}`))
	}))
	defer server.Close()

	client := NewElevenLabsClient(Config{APIKey: "bad", VoiceID: "voice-1", BaseURL: server.URL})
	_, err := client.Synthesize(context.Background(), SpeechRequest{Text: "hi"})

	var providerErr *ProviderError
	require.True(t, errors.As(err, &providerErr))
	require.Equal(t, http.StatusUnauthorized, providerErr.StatusCode)
	require.Contains(t, providerErr.Body, "invalid api key")
}

func TestElevenLabsClientDisabledWithoutKey(t *testing.T) {
	client := NewElevenLabsClient(Config{VoiceID: "voice-1"})
	require.False(t, client.Enabled())

	_, err := client.Synthesize(context.Background(), SpeechRequest{Text: "hi"})
	require.ErrorIs(t, err, ErrNotConfigured)
}
