package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/relayforge/codex-relay/internal/credentials"
)

// maxRequestBodyBytes caps inbound bodies; anything larger is rejected
// before touching the upstream.
const maxRequestBodyBytes = 2 << 20

const (
	defaultOriginator = "codex_cli_rs"
	defaultVersion    = "0.19.0"
)

// codexPassthroughHeaders are forwarded verbatim when the client sends them.
var codexPassthroughHeaders = []string{
	"x-codex-turn-state",
	"x-codex-turn-metadata",
	"x-codex-beta-features",
}

// sseFlushWriter wraps a ResponseWriter to flush after each write so relayed
// stream bytes reach the client in arrival order.
type sseFlushWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func (fw sseFlushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if err == nil {
		fw.f.Flush()
	}
	return n, err
}

// responsesHandler is the core proxy operation: authenticate the caller,
// normalize the body, obtain a valid token, call upstream with one forced
// refresh on 401, then relay the stream or synthesize a JSON response.
func (s *Server) responsesHandler(w http.ResponseWriter, r *http.Request) {
	if !secretMatches(r, s.opts.ProxySecret) {
		s.logger.Warn().
			Str("remote_addr", r.RemoteAddr).
			Str("credentials", authDiagnostic(r)).
			Msg("Rejected request with invalid proxy credentials")
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid proxy credentials")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	requestBodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.logger.Warn().Int64("limit", maxErr.Limit).Msg("Request body exceeds size cap")
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request_too_large",
				fmt.Sprintf("Request body exceeds %d bytes", maxErr.Limit))
			return
		}
		s.logger.Error().Err(err).Msg("Error reading request body")
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to read request body")
		return
	}
	defer r.Body.Close()

	var requestData map[string]interface{}
	if err := json.Unmarshal(requestBodyBytes, &requestData); err != nil {
		s.logger.Warn().Err(err).Msg("Error unmarshalling request body")
		writeJSONError(w, http.StatusBadRequest, "bad_request", "Request body is not valid JSON")
		return
	}

	// The client's streaming preference decides response shaping; the wire
	// request upstream always streams.
	wantsStream := clientRequestedStream(requestData)
	normalized := normalizeRequestBody(requestData)

	outboundBytes, err := json.Marshal(normalized)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error marshalling normalized request body")
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to prepare upstream request")
		return
	}

	s.logger.Info().
		Str("model", normalized["model"].(string)).
		Bool("client_stream", wantsStream).
		Int("inbound_bytes", len(requestBodyBytes)).
		Str("user_agent", r.UserAgent()).
		Msg("Processing responses request")

	resp, err := s.callUpstreamWithRetry(r, outboundBytes)
	if err != nil {
		var refreshErr *tokenUnavailableError
		if errors.As(err, &refreshErr) {
			writeJSONError(w, refreshErr.status, refreshErr.errType, refreshErr.cause.Error())
			return
		}
		s.logger.Error().Err(err).Msg("Error calling upstream API")
		writeJSONError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	defer resp.Body.Close()

	if wantsStream {
		s.streamResponse(w, resp)
		return
	}
	s.aggregateResponse(w, resp)
}

// tokenUnavailableError distinguishes the two refresh-failure call sites:
// the precondition refresh surfaces as a 500 token_error, while a refresh
// forced by an upstream 401 surfaces as a 401 authentication_error telling
// the caller to re-authenticate the deployment.
type tokenUnavailableError struct {
	status  int
	errType string
	cause   error
}

func (e *tokenUnavailableError) Error() string { return e.cause.Error() }
func (e *tokenUnavailableError) Unwrap() error { return e.cause }

// callUpstreamWithRetry obtains a valid token, issues the upstream call, and
// on a 401 performs exactly one forced refresh plus retry.
func (s *Server) callUpstreamWithRetry(r *http.Request, body []byte) (*http.Response, error) {
	state, err := s.tokens.Token(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to obtain a valid access token")
		return nil, &tokenUnavailableError{status: http.StatusInternalServerError, errType: "token_error", cause: err}
	}

	resp, err := s.callUpstream(r.Context(), r, body, state)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	s.logger.Warn().Msg("Upstream returned 401, forcing token refresh and retrying once")
	resp.Body.Close()

	state, err = s.tokens.ForceRefresh(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Forced token refresh failed after upstream 401")
		return nil, &tokenUnavailableError{
			status:  http.StatusUnauthorized,
			errType: "authentication_error",
			cause:   fmt.Errorf("upstream rejected credentials and refresh failed, re-authentication required: %w", err),
		}
	}

	resp, err = s.callUpstream(r.Context(), r, body, state)
	if err != nil {
		return nil, fmt.Errorf("retry request failed: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		s.logger.Error().Msg("Still received 401 after token refresh, giving up")
	}
	return resp, nil
}

func (s *Server) callUpstream(ctx context.Context, r *http.Request, body []byte, state credentials.TokenState) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.UpstreamURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream request: %w", err)
	}

	// Normalize the token to avoid a double "Bearer " prefix.
	bareToken := strings.TrimSpace(state.AccessToken)
	if len(bareToken) >= 7 && strings.EqualFold(bareToken[:7], "Bearer ") {
		bareToken = strings.TrimSpace(bareToken[7:])
	}

	req.Header.Set("authorization", "Bearer "+bareToken)
	req.Header.Set("content-type", "application/json")
	req.Header.Set("accept", "text/event-stream")
	if state.AccountID != "" {
		req.Header.Set("chatgpt-account-id", state.AccountID)
	}

	req.Header.Set("originator", headerOrDefault(r, "originator", defaultOriginator))
	req.Header.Set("version", headerOrDefault(r, "version", defaultVersion))
	req.Header.Set("user-agent", headerOrDefault(r, "user-agent", serviceName+"/"+defaultVersion))
	req.Header.Set("session_id", headerOrDefault(r, "session_id", uuid.NewString()))

	for _, header := range codexPassthroughHeaders {
		if v := r.Header.Get(header); v != "" {
			req.Header.Set(header, v)
		}
	}

	s.logger.Debug().
		Str("authorization_preview", previewToken(bareToken)).
		Str("chatgpt-account-id", state.AccountID).
		Str("session_id", req.Header.Get("session_id")).
		Msg("Upstream request headers (sanitized)")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send upstream request: %w", err)
	}
	return resp, nil
}

func headerOrDefault(r *http.Request, name, fallback string) string {
	if v := r.Header.Get(name); v != "" {
		return v
	}
	return fallback
}

func previewToken(token string) string {
	if len(token) > 12 {
		return token[:6] + "…" + token[len(token)-6:]
	}
	return token
}

// streamResponse relays the upstream body byte-transparently, preserving
// status and content type and flushing as bytes arrive.
func (s *Server) streamResponse(w http.ResponseWriter, resp *http.Response) {
	rawContentType := resp.Header.Get("Content-Type")
	mediaType := rawContentType
	if mt, _, err := mime.ParseMediaType(rawContentType); err == nil {
		mediaType = mt
	}

	for key, values := range resp.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	if mediaType == "text/event-stream" {
		w.Header().Del("Content-Length")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
	}
	w.WriteHeader(resp.StatusCode)

	var out io.Writer = w
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
		out = sseFlushWriter{w: w, f: flusher}
	} else {
		s.logger.Warn().Msg("ResponseWriter does not support flushing - streaming may be buffered")
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		s.logger.Error().Err(err).Msg("Error relaying upstream stream")
	}
}

// aggregateResponse buffers the upstream SSE body and folds it into a single
// JSON object for non-streaming callers. Precedence: error, then completed,
// then a diagnostic envelope carrying the raw text.
func (s *Server) aggregateResponse(w http.ResponseWriter, resp *http.Response) {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error reading upstream response body")
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to read upstream response")
		return
	}

	text := string(bodyBytes)
	events := parseSSEStream(text)
	agg := aggregateSSE(events)

	w.Header().Set("Content-Type", "application/json")

	switch {
	case agg.errObj != "":
		s.logger.Warn().Int("event_count", agg.eventCount).Msg("Upstream stream reported an error")
		body, _ := sjson.SetRaw(`{}`, "error", agg.errObj)
		body, _ = sjson.Set(body, "output_text", agg.outputText)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(body))

	case agg.completed != "":
		// Keep the completed object's own output_text when the stream never
		// produced deltas; otherwise the accumulated text wins.
		body := agg.completed
		if agg.outputText != "" || !gjson.Get(body, "output_text").Exists() {
			body, _ = sjson.Set(body, "output_text", agg.outputText)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))

	default:
		s.logger.Warn().
			Int("event_count", agg.eventCount).
			Int("status_code", resp.StatusCode).
			Msg("Upstream stream ended without a terminal event")
		diagnostic := map[string]interface{}{
			"error": map[string]string{
				"type":    "upstream_inconclusive",
				"message": "Upstream stream ended without a completed or failed event",
			},
			"event_count": agg.eventCount,
			"raw_text":    text,
		}
		w.WriteHeader(resp.StatusCode)
		_ = json.NewEncoder(w).Encode(diagnostic)
	}
}
