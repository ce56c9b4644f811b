package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// SessionTokenConfig configures the stateless forwarding call that issues
// ephemeral upstream session tokens for WebRTC clients.
type SessionTokenConfig struct {
	URL          string // upstream REST sessions endpoint
	APIKey       string
	DefaultModel string
	DefaultVoice string
}

type createSessionRequest struct {
	Model        string `json:"model"`
	Voice        string `json:"voice"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

var sessionHTTPClient = &http.Client{Timeout: 15 * time.Second}

// createSessionHandler forwards the session request upstream and relays the
// response body untouched. No session state is kept here.
func createSessionHandler(cfg SessionTokenConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.Model == "" {
			req.Model = cfg.DefaultModel
		}
		if req.Voice == "" {
			req.Voice = cfg.DefaultVoice
		}

		payload := map[string]any{
			"model": req.Model,
			"voice": req.Voice,
		}
		if req.SystemPrompt != "" {
			payload["instructions"] = req.SystemPrompt
		}
		body, err := json.Marshal(payload)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		upstreamReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost, cfg.URL, bytes.NewReader(body))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		upstreamReq.Header.Set("Authorization", "Bearer "+cfg.APIKey)
		upstreamReq.Header.Set("Content-Type", "application/json")

		resp, err := sessionHTTPClient.Do(upstreamReq)
		if err != nil {
			writeError(w, http.StatusBadGateway, "upstream_error", err.Error())
			return
		}
		defer resp.Body.Close()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, resp.Body)
	}
}
