package auth

import "fmt"

// tokenEndpointResponse is the issuer's reply to a refresh_token grant.
// refresh_token and id_token are optional; issuers are not required to
// rotate refresh tokens.
type tokenEndpointResponse struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	IDToken      string  `json:"id_token"`
	ExpiresIn    float64 `json:"expires_in"`
}

// RefreshError reports a failed token refresh: the issuer rejected the grant
// or returned an unusable payload.
type RefreshError struct {
	Status int
	Body   string
	Reason string
}

func (e *RefreshError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("token refresh failed with status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("token refresh failed: %s", e.Reason)
}
