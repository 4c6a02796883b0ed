//go:build js && wasm

package main

import (
	"github.com/syumai/workers"

	"github.com/relayforge/codex-relay/internal/app"
	"github.com/relayforge/codex-relay/internal/config"
	"github.com/relayforge/codex-relay/internal/credentials"
	"github.com/relayforge/codex-relay/internal/logger"
)

func main() {
	log := logger.New()

	// The refresh token lives in KV, not the environment, so only the
	// caller-facing secret is checked here.
	cfg := config.FromEnv()
	if cfg.ProxyAPIKey == "" {
		log.Fatal().Msg("PROXY_API_KEY is required")
	}

	store, err := credentials.NewCloudflareKVStore()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Cloudflare KV store")
	}
	log.Info().Msg("Using Cloudflare KV credential store")

	tokens := app.BuildManager(cfg, store, log)
	srv := app.NewServer(cfg, tokens, log)

	// workers handles all the HTTP server setup.
	workers.Serve(srv)
}
