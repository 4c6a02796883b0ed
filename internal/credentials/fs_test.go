package credentials

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "auth.json")
	store := NewFileStore(path)

	state := TokenState{
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		ExpiresAt:    1234567890,
		AccountID:    "acct-1",
	}
	if err := store.Save(state); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded != state {
		t.Fatalf("round trip mismatch: got %+v, want %+v", loaded, state)
	}
}

func TestFileStoreLoadMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "missing.json"))
	if _, err := store.Load(); err == nil {
		t.Fatal("expected error for missing credentials file")
	}
}

func TestFileStoreFallsBackToIDToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	content := `{"tokens":{"id_token":"only-id-token","refresh_token":"rt"}}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	loaded, err := NewFileStore(path).Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.AccessToken != "only-id-token" {
		t.Fatalf("expected id_token fallback, got %q", loaded.AccessToken)
	}
}

func TestFileStorePreservesIDTokenOnSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	content := `{"tokens":{"id_token":"keep-me","access_token":"old","refresh_token":"rt"}}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	store := NewFileStore(path)
	if err := store.Save(TokenState{AccessToken: "new", RefreshToken: "rt-2"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got := string(b); !strings.Contains(got, `"id_token": "keep-me"`) {
		t.Fatalf("expected id_token preserved, got %s", got)
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore(TokenState{RefreshToken: "seed"})
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.RefreshToken != "seed" {
		t.Fatalf("expected seeded refresh token, got %q", loaded.RefreshToken)
	}

	next := TokenState{AccessToken: "at", RefreshToken: "rt", ExpiresAt: 42}
	if err := store.Save(next); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded, _ = store.Load()
	if loaded != next {
		t.Fatalf("expected saved state, got %+v", loaded)
	}
}
