//go:build js && wasm

package credentials

import (
	"encoding/json"
	"fmt"

	"github.com/syumai/workers/cloudflare/kv"
)

const kvCredentialsKey = "codex_relay_tokens"

// kvCredentials is the JSON layout of the token tuple in Cloudflare KV.
type kvCredentials struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    int64  `json:"expiresAt"`
	AccountID    string `json:"accountId"`
}

// CloudflareKVStore persists the token tuple in a Workers KV namespace.
// The binding name is configured in wrangler.toml.
type CloudflareKVStore struct {
	kvStore *kv.Namespace
}

func NewCloudflareKVStore() (*CloudflareKVStore, error) {
	kvStore, err := kv.NewNamespace("codex_relay_kv")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize KV namespace: %w", err)
	}
	return &CloudflareKVStore{kvStore: kvStore}, nil
}

func (c *CloudflareKVStore) Load() (TokenState, error) {
	raw, err := c.kvStore.GetString(kvCredentialsKey, nil)
	if err != nil {
		return TokenState{}, fmt.Errorf("failed to read credentials from KV: %w", err)
	}
	if raw == "" {
		return TokenState{}, fmt.Errorf("no credentials stored in KV")
	}

	var creds kvCredentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return TokenState{}, fmt.Errorf("failed to parse KV credentials: %w", err)
	}

	return TokenState{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		ExpiresAt:    creds.ExpiresAt,
		AccountID:    creds.AccountID,
	}, nil
}

func (c *CloudflareKVStore) Save(state TokenState) error {
	creds := kvCredentials{
		AccessToken:  state.AccessToken,
		RefreshToken: state.RefreshToken,
		ExpiresAt:    state.ExpiresAt,
		AccountID:    state.AccountID,
	}

	b, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to encode KV credentials: %w", err)
	}
	if err := c.kvStore.PutString(kvCredentialsKey, string(b), nil); err != nil {
		return fmt.Errorf("failed to write credentials to KV: %w", err)
	}
	return nil
}
