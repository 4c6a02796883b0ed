package app

import (
	"github.com/rs/zerolog"

	"github.com/relayforge/codex-relay/internal/auth"
	"github.com/relayforge/codex-relay/internal/config"
	"github.com/relayforge/codex-relay/internal/credentials"
	"github.com/relayforge/codex-relay/internal/server"
)

// BuildManager wires a token manager from config plus the chosen store.
func BuildManager(cfg *config.Config, store credentials.Store, log zerolog.Logger) *auth.Manager {
	return auth.NewManager(auth.ManagerOptions{
		Store:             store,
		TokenURL:          cfg.TokenURL,
		ClientID:          cfg.ClientID,
		FallbackAccountID: cfg.AccountID,
		Logger:            log,
	})
}

// NewServer assembles the HTTP handler tree.
func NewServer(cfg *config.Config, tokens *auth.Manager, log zerolog.Logger) *server.Server {
	return server.New(log, tokens, server.Options{
		ProxySecret: cfg.ProxyAPIKey,
		UpstreamURL: cfg.UpstreamURL,
	})
}

// SeedStore builds the credential store for a deployment: an auth.json file
// store when a path is configured, otherwise an in-memory store seeded from
// the environment bootstrap values.
func SeedStore(cfg *config.Config) credentials.Store {
	if cfg.CredentialsPath != "" {
		return credentials.NewFileStore(cfg.CredentialsPath)
	}
	return credentials.NewMemoryStore(credentials.TokenState{
		AccessToken:  cfg.AccessToken,
		RefreshToken: cfg.RefreshToken,
		AccountID:    cfg.AccountID,
	})
}
