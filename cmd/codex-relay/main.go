package main

import (
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/relayforge/codex-relay/internal/app"
	"github.com/relayforge/codex-relay/internal/auth"
	"github.com/relayforge/codex-relay/internal/config"
	"github.com/relayforge/codex-relay/internal/credentials"
	"github.com/relayforge/codex-relay/internal/logger"
)

var (
	flagConfigPath string
	flagCredsPath  string
	flagPort       string
)

func main() {
	root := &cobra.Command{
		Use:          "codex-relay",
		Short:        "Credential-refreshing reverse proxy for the Codex Responses API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	root.Flags().StringVar(&flagConfigPath, "config", "", "Path to a TOML config file")
	root.Flags().StringVar(&flagCredsPath, "creds-path", "", "Path to an auth.json credentials file")
	root.Flags().StringVar(&flagPort, "port", "", "Port to listen on (overrides PORT)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe() error {
	log := logger.New()

	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return err
	}
	if flagCredsPath != "" {
		cfg.CredentialsPath = flagCredsPath
	}
	if cfg.CredentialsPath == "" && cfg.RefreshToken == "" {
		// Fall back to an existing CLI login when nothing else is configured.
		if path := credentials.DefaultCredsPath(); credentials.FileExists(path) {
			cfg.CredentialsPath = path
		} else if path := credentials.LegacyCredsPath(); credentials.FileExists(path) {
			cfg.CredentialsPath = path
		}
	}
	if flagPort != "" {
		cfg.Port = flagPort
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	store := app.SeedStore(cfg)
	tokens := app.BuildManager(cfg, store, log)
	defer tokens.Close()

	validateCredentialsAtStartup(tokens, log)
	tokens.StartBackgroundRefresh(10 * time.Minute)

	srv := app.NewServer(cfg, tokens, log)

	log.Info().Str("port", cfg.Port).Msg("Starting server")
	return http.ListenAndServe(":"+cfg.Port, srv)
}

func validateCredentialsAtStartup(tokens *auth.Manager, log zerolog.Logger) {
	state := tokens.Snapshot()
	if state.RefreshToken == "" {
		log.Warn().Msg("No refresh token loaded; upstream calls will fail until one is provided")
		return
	}

	log.Info().
		Str("account_id", state.AccountID).
		Int("access_token_length", len(state.AccessToken)).
		Str("token_status", tokens.Status()).
		Msg("Credentials loaded")

	minutesUntilExpiry := (state.ExpiresAt - time.Now().UnixMilli()) / 1000 / 60
	if state.AccessToken == "" || minutesUntilExpiry <= 0 {
		log.Warn().Msg("Access token missing or expired, will refresh on first request")
	} else if minutesUntilExpiry <= 60 {
		log.Warn().
			Int64("minutes_until_expiry", minutesUntilExpiry).
			Msg("Token expires soon, will refresh shortly")
	}
}
