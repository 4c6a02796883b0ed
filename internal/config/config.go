package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/relayforge/codex-relay/internal/auth"
)

// Config holds everything the relay needs at startup. Values are resolved in
// order: TOML config file, then .env, then process environment; environment
// always wins so deployments can override a checked-in file.
type Config struct {
	ClientID        string `toml:"client_id"`
	AccessToken     string `toml:"access_token"`
	RefreshToken    string `toml:"refresh_token"`
	AccountID       string `toml:"account_id"`
	ProxyAPIKey     string `toml:"proxy_api_key"`
	Port            string `toml:"port"`
	CredentialsPath string `toml:"credentials_path"`
	TokenURL        string `toml:"token_url"`
	UpstreamURL     string `toml:"upstream_url"`
	LogFile         string `toml:"log_file"`
}

// DefaultUpstreamURL is the Codex Responses backend.
const DefaultUpstreamURL = "https://chatgpt.com/backend-api/codex/responses"

// Load builds the config from an optional TOML file plus the environment.
func Load(path string) (*Config, error) {
	// Best effort; a missing .env is the normal case.
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := toml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	overlayEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

// FromEnv builds the config from the environment alone. The worker
// entrypoint uses this; there is no filesystem to read a TOML file from.
func FromEnv() *Config {
	cfg := &Config{}
	overlayEnv(cfg)
	applyDefaults(cfg)
	return cfg
}

func overlayEnv(cfg *Config) {
	setIfEnv(&cfg.ClientID, "OPENAI_CLIENT_ID")
	setIfEnv(&cfg.AccessToken, "OPENAI_ACCESS_TOKEN")
	setIfEnv(&cfg.RefreshToken, "OPENAI_REFRESH_TOKEN")
	setIfEnv(&cfg.AccountID, "CHATGPT_ACCOUNT_ID")
	setIfEnv(&cfg.ProxyAPIKey, "PROXY_API_KEY")
	setIfEnv(&cfg.Port, "PORT")
	setIfEnv(&cfg.CredentialsPath, "CREDENTIALS_PATH")
	setIfEnv(&cfg.TokenURL, "OPENAI_TOKEN_URL")
	setIfEnv(&cfg.UpstreamURL, "CODEX_UPSTREAM_URL")
	setIfEnv(&cfg.LogFile, "LOG_FILE")
}

func applyDefaults(cfg *Config) {
	if cfg.ClientID == "" {
		cfg.ClientID = auth.DefaultClientID
	}
	if cfg.Port == "" {
		cfg.Port = "9879"
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = auth.DefaultTokenURL
	}
	if cfg.UpstreamURL == "" {
		cfg.UpstreamURL = DefaultUpstreamURL
	}
}

func setIfEnv(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// Validate checks the deployment-secret surface. A refresh token may come
// from either the environment or a credentials file.
func (c *Config) Validate() error {
	if c.ProxyAPIKey == "" {
		return fmt.Errorf("PROXY_API_KEY is required")
	}
	if c.RefreshToken == "" && c.CredentialsPath == "" {
		return fmt.Errorf("OPENAI_REFRESH_TOKEN or CREDENTIALS_PATH is required")
	}
	return nil
}
