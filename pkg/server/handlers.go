package server

import (
	"encoding/json"
	"net/http"
)

// checkRequest is the body of POST /v1/check. Callers either pass their
// own token estimate or the prompt text for the server to estimate from;
// estimated_tokens wins when both are present.
type checkRequest struct {
	UserID          string `json:"user_id"`
	Provider        string `json:"provider"`
	Endpoint        string `json:"endpoint"`
	EstimatedTokens int64  `json:"estimated_tokens"`
	Prompt          string `json:"prompt,omitempty"`
}

// checkResponse mirrors the limiter verdict for API consumers.
type checkResponse struct {
	Allowed           bool   `json:"allowed"`
	Reason            string `json:"reason,omitempty"`
	RequestsRemaining int64  `json:"requests_remaining"`
	TokensRemaining   *int64 `json:"tokens_remaining,omitempty"`
	ResetTime         int64  `json:"reset_time"`
	RetryAfter        int64  `json:"retry_after,omitempty"`
}

// recordRequest is the body of POST /v1/record.
type recordRequest struct {
	UserID     string `json:"user_id"`
	Provider   string `json:"provider"`
	Endpoint   string `json:"endpoint"`
	TokensUsed int64  `json:"tokens_used"`
}

// statusResponse is the body of GET /v1/status.
type statusResponse struct {
	Provider      string `json:"provider"`
	Key           string `json:"key"`
	RequestsUsed  int64  `json:"requests_used"`
	RequestsLimit int64  `json:"requests_limit"`
	TokensUsed    int64  `json:"tokens_used"`
	TokensLimit   int64  `json:"tokens_limit,omitempty"`
	ResetTime     int64  `json:"reset_time"`
}

// handleCheck runs an admission check. An allowed verdict answers 200, a
// denial 429; both carry the verdict's rate-limit headers and a JSON
// body. Checking consumes no quota; callers commit admitted
// requests through /v1/record once the gated call has run.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Provider == "" {
		writeError(w, http.StatusBadRequest, "user_id and provider are required")
		return
	}

	estimated := req.EstimatedTokens
	if estimated == 0 && req.Prompt != "" {
		estimated = s.estimator.EstimateText(req.Prompt, req.Provider)
	}

	result := s.manager.CheckRateLimit(r.Context(), req.UserID, req.Provider, req.Endpoint, estimated)

	for name, value := range result.Headers {
		w.Header().Set(name, value)
	}

	status := http.StatusOK
	if !result.Allowed {
		status = http.StatusTooManyRequests
	}

	writeJSON(w, status, checkResponse{
		Allowed:           result.Allowed,
		Reason:            result.Reason,
		RequestsRemaining: result.RequestsRemaining,
		TokensRemaining:   result.TokensRemaining,
		ResetTime:         result.ResetTime.Unix(),
		RetryAfter:        result.RetryAfterSeconds(),
	})
}

// handleRecord commits one completed request. Always 204: recording is
// best effort and the limiter swallows store failures.
func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Provider == "" {
		writeError(w, http.StatusBadRequest, "user_id and provider are required")
		return
	}

	s.manager.RecordRequest(r.Context(), req.UserID, req.Provider, req.Endpoint, req.TokensUsed)
	w.WriteHeader(http.StatusNoContent)
}

// handleStatus returns the usage snapshot for one (user, provider) pair.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	provider := r.URL.Query().Get("provider")
	if userID == "" || provider == "" {
		writeError(w, http.StatusBadRequest, "user and provider query parameters are required")
		return
	}

	status, err := s.manager.GetStatus(r.Context(), userID, provider)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Provider:      status.Provider,
		Key:           status.Key,
		RequestsUsed:  status.RequestsUsed,
		RequestsLimit: status.RequestsLimit,
		TokensUsed:    status.TokensUsed,
		TokensLimit:   status.TokensLimit,
		ResetTime:     status.ResetTime.Unix(),
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
