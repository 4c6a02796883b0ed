package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTokenURL is the issuer endpoint for refreshing OAuth tokens.
	DefaultTokenURL = "https://auth.openai.com/oauth/token"
	// DefaultClientID is the public OAuth client ID for ChatGPT/Codex.
	DefaultClientID = "app_EMoamEEZ73f0CkXaXp7hrann"

	// tokenExpirySkew is how long before the recorded expiry a token is
	// already treated as stale.
	tokenExpirySkew = 60 * time.Second

	// defaultExpiresIn is assumed when the issuer omits expires_in or sends
	// something non-positive.
	defaultExpiresIn = 3600
)

// exchangeRefreshToken trades a refresh token for a new access/refresh pair
// at the issuer's token endpoint. The grant is form-encoded per RFC 6749.
func exchangeRefreshToken(ctx context.Context, client *http.Client, tokenURL, clientID, refreshToken string) (*tokenEndpointResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", clientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &RefreshError{Reason: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &RefreshError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RefreshError{Status: resp.StatusCode, Body: string(body)}
	}

	var tokenResp tokenEndpointResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, &RefreshError{Reason: "failed to decode token response: " + err.Error()}
	}
	if tokenResp.AccessToken == "" {
		return nil, &RefreshError{Reason: "token response missing access_token"}
	}

	return &tokenResp, nil
}

// expiresAtMillis converts an issuer-supplied expires_in to an absolute epoch
// millisecond timestamp, applying the default lifetime for junk values.
func expiresAtMillis(now time.Time, expiresIn float64) int64 {
	seconds := int64(expiresIn)
	if !(expiresIn > 0) {
		seconds = defaultExpiresIn
	}
	return now.UnixMilli() + seconds*1000
}
