package server

import (
	"net/http"
	"time"
)

// HTTPClient is the outbound transport seam; tests swap in stubs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient creates the default upstream client. The timeout bounds the
// whole exchange including the SSE body, so it is generous.
func NewHTTPClient() HTTPClient {
	return &http.Client{
		Timeout: 10 * time.Minute,
	}
}
