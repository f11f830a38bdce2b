package zoho

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
)

// cachedToken is the on-disk shape of the token cache.
type cachedToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// TokenCache persists the Zoho credential between restarts. It is a cache,
// not a source of truth.
type TokenCache struct {
	path string
}

// NewTokenCache returns a cache backed by the file at path.
func NewTokenCache(path string) *TokenCache {
	return &TokenCache{path: path}
}

// Path returns the backing file location.
func (c *TokenCache) Path() string {
	return c.path
}

// Load reads the cached credential. ok is false when no cache file exists.
func (c *TokenCache) Load() (tok oauth2.Token, ok bool, err error) {
	f, err := os.Open(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return oauth2.Token{}, false, nil
	}
	if err != nil {
		return oauth2.Token{}, false, fmt.Errorf("open token cache: %w", err)
	}
	defer f.Close()

	var cached cachedToken
	if err := json.NewDecoder(f).Decode(&cached); err != nil {
		return oauth2.Token{}, false, fmt.Errorf("decode token cache %s: %w", c.path, err)
	}

	return oauth2.Token{
		AccessToken:  cached.AccessToken,
		RefreshToken: cached.RefreshToken,
		Expiry:       cached.ExpiresAt,
	}, true, nil
}

// Save replaces the cache file atomically.
func (c *TokenCache) Save(tok oauth2.Token) error {
	dir := filepath.Dir(c.path)
	tmp, err := os.CreateTemp(dir, ".zoho-token-*")
	if err != nil {
		return fmt.Errorf("create token cache: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "    ")
	if err := enc.Encode(cachedToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}); err != nil {
		tmp.Close()
		return fmt.Errorf("encode token cache: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod token cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close token cache: %w", err)
	}

	if err := os.Rename(tmpName, c.path); err != nil {
		return fmt.Errorf("replace token cache: %w", err)
	}
	return nil
}
