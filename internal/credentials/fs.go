package credentials

import (
	"encoding/json"
	"fmt"
	"os"
)

// fsAuth mirrors the auth.json layout the codex CLI writes, so a relay can
// share credentials with an existing CLI login.
type fsAuth struct {
	Tokens struct {
		IDToken      string `json:"id_token,omitempty"`
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		AccountID    string `json:"account_id,omitempty"`
		ExpiresAt    int64  `json:"expiresAt,omitempty"`
	} `json:"tokens"`
}

// FileStore reads and writes the token tuple to an auth.json file.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (f *FileStore) Load() (TokenState, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return TokenState{}, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var a fsAuth
	if err := json.Unmarshal(b, &a); err != nil {
		return TokenState{}, fmt.Errorf("failed to parse credentials file: %w", err)
	}

	// Prefer the OAuth access token for upstream calls; fall back to the ID
	// token for files written before access tokens were recorded.
	token := a.Tokens.AccessToken
	if token == "" {
		token = a.Tokens.IDToken
	}

	return TokenState{
		AccessToken:  token,
		RefreshToken: a.Tokens.RefreshToken,
		ExpiresAt:    a.Tokens.ExpiresAt,
		AccountID:    a.Tokens.AccountID,
	}, nil
}

func (f *FileStore) Save(state TokenState) error {
	// Preserve fields we don't own (id_token) when the file already exists.
	var a fsAuth
	if b, err := os.ReadFile(f.Path); err == nil {
		_ = json.Unmarshal(b, &a)
	}

	a.Tokens.AccessToken = state.AccessToken
	a.Tokens.RefreshToken = state.RefreshToken
	a.Tokens.ExpiresAt = state.ExpiresAt
	a.Tokens.AccountID = state.AccountID

	b, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credentials file: %w", err)
	}
	if err := EnsureParentDir(f.Path); err != nil {
		return err
	}
	if err := os.WriteFile(f.Path, b, 0600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	return nil
}
