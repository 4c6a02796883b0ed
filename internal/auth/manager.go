package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/relayforge/codex-relay/internal/credentials"
)

// ManagerOptions configures a Manager. Zero values fall back to production
// defaults; tests point TokenURL at a stub issuer and inject a fixed Now.
type ManagerOptions struct {
	Store             credentials.Store
	TokenURL          string
	ClientID          string
	FallbackAccountID string
	HTTPClient        *http.Client
	Logger            zerolog.Logger
	Now               func() time.Time
}

// Manager owns the deployment's single rotating token pair. Reads take the
// fast path when the cached access token is still comfortably valid; anything
// else goes through a refresh round-trip against the issuer. Refreshes are
// serialized behind the mutex, so concurrent callers hitting an expiry window
// wait for the in-flight refresh and then observe the fresh state instead of
// issuing their own.
type Manager struct {
	store             credentials.Store
	client            *http.Client
	logger            zerolog.Logger
	tokenURL          string
	clientID          string
	fallbackAccountID string
	now               func() time.Time

	mu     sync.Mutex
	stopCh chan struct{}
}

func NewManager(opts ManagerOptions) *Manager {
	m := &Manager{
		store:             opts.Store,
		client:            opts.HTTPClient,
		logger:            opts.Logger,
		tokenURL:          opts.TokenURL,
		clientID:          opts.ClientID,
		fallbackAccountID: opts.FallbackAccountID,
		now:               opts.Now,
	}
	if m.client == nil {
		m.client = &http.Client{Timeout: 30 * time.Second}
	}
	if m.tokenURL == "" {
		m.tokenURL = DefaultTokenURL
	}
	if m.clientID == "" {
		m.clientID = DefaultClientID
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Token returns a valid token state, refreshing first if the cached access
// token is missing or expires within the skew window.
func (m *Manager) Token(ctx context.Context) (credentials.TokenState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.store.Load()
	if err != nil {
		return credentials.TokenState{}, fmt.Errorf("failed to load credentials: %w", err)
	}

	if state.Valid(m.now().UnixMilli(), tokenExpirySkew.Milliseconds()) {
		return state, nil
	}

	return m.refreshLocked(ctx, state)
}

// ForceRefresh exchanges the refresh token regardless of the cached expiry.
// Used after the upstream rejects a token that still looked valid locally.
func (m *Manager) ForceRefresh(ctx context.Context) (credentials.TokenState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.store.Load()
	if err != nil {
		return credentials.TokenState{}, fmt.Errorf("failed to load credentials: %w", err)
	}
	return m.refreshLocked(ctx, state)
}

// Snapshot returns the current state without triggering any I/O beyond the
// store read. Health reporting uses this.
func (m *Manager) Snapshot() credentials.TokenState {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, err := m.store.Load()
	if err != nil {
		return credentials.TokenState{}
	}
	return state
}

// Status describes the cached token for the health endpoint.
func (m *Manager) Status() string {
	state := m.Snapshot()
	if state.AccessToken == "" {
		return "not_cached (no access token yet)"
	}
	remaining := state.ExpiresAt - m.now().UnixMilli()
	if remaining > 0 {
		return fmt.Sprintf("valid (expires in %d minutes)", remaining/1000/60)
	}
	return "expired (will refresh on next request)"
}

func (m *Manager) refreshLocked(ctx context.Context, current credentials.TokenState) (credentials.TokenState, error) {
	if current.RefreshToken == "" {
		return credentials.TokenState{}, &RefreshError{Reason: "no refresh token available"}
	}

	resp, err := exchangeRefreshToken(ctx, m.client, m.tokenURL, m.clientID, current.RefreshToken)
	if err != nil {
		m.logger.Error().Err(err).Msg("OAuth token refresh failed")
		return credentials.TokenState{}, err
	}

	refreshToken := resp.RefreshToken
	if refreshToken == "" {
		// Issuers are allowed to skip rotation; keep the working token.
		refreshToken = current.RefreshToken
	}

	accountID := ExtractAccountID(resp.IDToken)
	if accountID == "" {
		accountID = ExtractAccountID(resp.AccessToken)
	}
	if accountID == "" {
		accountID = m.fallbackAccountID
	}
	if accountID == "" {
		accountID = current.AccountID
	}

	next := credentials.TokenState{
		AccessToken:  resp.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAtMillis(m.now(), resp.ExpiresIn),
		AccountID:    accountID,
	}

	if err := m.store.Save(next); err != nil {
		// The fresh pair is still usable for this request; losing durability
		// only costs an extra refresh after a restart.
		m.logger.Warn().Err(err).Msg("Failed to persist refreshed tokens")
	}

	m.logger.Info().
		Int64("expires_at", next.ExpiresAt).
		Str("account_id", next.AccountID).
		Msg("OAuth token refreshed")

	return next, nil
}

// StartBackgroundRefresh refreshes the pair ahead of expiry on a ticker so
// interactive requests rarely pay the refresh round-trip.
func (m *Manager) StartBackgroundRefresh(interval time.Duration) {
	m.mu.Lock()
	if m.stopCh != nil {
		m.mu.Unlock()
		return
	}
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := m.Token(context.Background()); err != nil {
					m.logger.Error().Err(err).Msg("Background token refresh failed")
				}
			case <-stopCh:
				m.logger.Debug().Msg("Background token refresh stopped")
				return
			}
		}
	}()
}

// Close stops the background refresh goroutine if one is running.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopCh != nil {
		close(m.stopCh)
		m.stopCh = nil
	}
}
