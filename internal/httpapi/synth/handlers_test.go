package synth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, upstream http.HandlerFunc) chi.Router {
	t.Helper()
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	handler := NewHandler(Options{
		BaseURL: srv.URL,
		APIKey:  "provider-key",
		Logger:  zerolog.Nop(),
	})
	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return router
}

func TestSynthesize(t *testing.T) {
	router := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/voice-1", r.URL.Path)
		assert.Equal(t, "provider-key", r.Header.Get("xi-api-key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello caller", body["text"])
		settings, ok := body["voice_settings"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, 0.5, settings["stability"])
		assert.Equal(t, true, settings["speaker_boost"])

		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("mp3-bytes"))
	})

	payload := `{"text":"hello caller","voiceConfig":{"voiceId":"voice-1","stability":0.5,"similarityBoost":0.75,"speakerBoost":true}}`
	req := httptest.NewRequest(http.MethodPost, "/synthesize", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "mp3-bytes", rec.Body.String())
}

func TestSynthesize_MissingText(t *testing.T) {
	router := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("upstream must not be called")
	})

	req := httptest.NewRequest(http.MethodPost, "/synthesize", strings.NewReader(`{"voiceConfig":{"voiceId":"v"}}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSynthesize_MalformedBody(t *testing.T) {
	router := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("upstream must not be called")
	})

	req := httptest.NewRequest(http.MethodPost, "/synthesize", strings.NewReader("{broken"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSynthesize_UpstreamRejection(t *testing.T) {
	router := newTestRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	req := httptest.NewRequest(http.MethodPost, "/synthesize", strings.NewReader(`{"text":"hi","voiceConfig":{"voiceId":"v"}}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSynthesize_UpstreamUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	handler := NewHandler(Options{BaseURL: srv.URL, APIKey: "k", Logger: zerolog.Nop()})
	srv.Close()

	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	req := httptest.NewRequest(http.MethodPost, "/synthesize", strings.NewReader(`{"text":"hi","voiceConfig":{"voiceId":"v"}}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
