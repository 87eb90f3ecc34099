// Package synth proxies text-to-speech requests to the external speech
// provider. Not part of the identity core; the handler only validates the
// payload, maps the voice settings through, and streams the audio back.
package synth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/YodHeVauHe/CallCenterX/internal/metrics"
)

// Handler serves POST /synthesize.
type Handler struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	logger  zerolog.Logger
}

// Options configure the synth handler.
type Options struct {
	// BaseURL is the provider's text-to-speech endpoint; the voice id is
	// appended as a path segment.
	BaseURL string
	APIKey  string
	// HTTPClient overrides the transport. Defaults to a 30 second timeout;
	// synthesis of long passages is slow.
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// NewHandler builds the synth handler.
func NewHandler(opts Options) *Handler {
	httpc := opts.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Handler{
		baseURL: opts.BaseURL,
		apiKey:  opts.APIKey,
		httpc:   httpc,
		logger:  opts.Logger.With().Str("component", "synth_api").Logger(),
	}
}

// RegisterRoutes mounts the synthesize route.
func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Post("/synthesize", h.Synthesize)
}

type voiceConfig struct {
	VoiceID         string  `json:"voiceId"`
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarityBoost"`
	Style           float64 `json:"style"`
	SpeakerBoost    bool    `json:"speakerBoost"`
}

type synthesizeRequest struct {
	Text        string      `json:"text"`
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

// Synthesize handles POST /synthesize.
func (h *Handler) Synthesize(w http.ResponseWriter, r *http.Request) {
	var payload synthesizeRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if payload.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	upstream := map[string]any{
		"text": payload.Text,
		"voice_settings": map[string]any{
			"stability":        payload.VoiceConfig.Stability,
			"similarity_boost": payload.VoiceConfig.SimilarityBoost,
			"style":            payload.VoiceConfig.Style,
			"speaker_boost":    payload.VoiceConfig.SpeakerBoost,
		},
	}
	body, err := json.Marshal(upstream)
	if err != nil {
		metrics.RecordSynthesize("failure")
		writeError(w, http.StatusInternalServerError, "failed to synthesize speech")
		return
	}

	url := fmt.Sprintf("%s/%s", h.baseURL, payload.VoiceConfig.VoiceID)
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		metrics.RecordSynthesize("failure")
		writeError(w, http.StatusInternalServerError, "failed to synthesize speech")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", h.apiKey)

	resp, err := h.httpc.Do(req)
	if err != nil {
		h.logger.Error().Err(err).Msg("speech provider unreachable")
		metrics.RecordSynthesize("failure")
		writeError(w, http.StatusBadGateway, "failed to synthesize speech")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		h.logger.Error().Int("status", resp.StatusCode).Msg("speech provider rejected request")
		metrics.RecordSynthesize("failure")
		writeError(w, http.StatusBadGateway, "failed to synthesize speech")
		return
	}

	metrics.RecordSynthesize("success")
	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Warn().Err(err).Msg("audio stream interrupted")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
