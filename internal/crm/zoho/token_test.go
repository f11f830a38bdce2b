package zoho

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/leadbot/crm-assistant/internal/crm"
	"github.com/leadbot/crm-assistant/pkg/logger"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type accountsServer struct {
	*httptest.Server
	calls    atomic.Int32
	lastForm chan map[string]string
}

func newAccountsServer(t *testing.T, status int, body string) *accountsServer {
	t.Helper()
	s := &accountsServer{lastForm: make(chan map[string]string, 8)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		require.NoError(t, r.ParseForm())
		s.lastForm <- map[string]string{
			"grant_type":    r.PostForm.Get("grant_type"),
			"client_id":     r.PostForm.Get("client_id"),
			"client_secret": r.PostForm.Get("client_secret"),
			"refresh_token": r.PostForm.Get("refresh_token"),
			"redirect_uri":  r.PostForm.Get("redirect_uri"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(s.Close)
	return s
}

func testTokenConfig(t *testing.T, accountsURL string) TokenConfig {
	return TokenConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RefreshToken: "config-refresh",
		RedirectURI:  "https://www.zoho.in",
		AccountsURL:  accountsURL,
		Cache:        NewTokenCache(filepath.Join(t.TempDir(), "zoho_tokens.json")),
		Now:          func() time.Time { return fixedNow },
	}
}

func TestEnsureAccessTokenExpiredTriggersOneRefresh(t *testing.T) {
	srv := newAccountsServer(t, http.StatusOK, `{"access_token":"new-access","expires_in":3600}`)
	m := newTokenManager(testTokenConfig(t, srv.URL), logger.NewNop())
	m.token = oauth2.Token{AccessToken: "old", RefreshToken: "config-refresh", Expiry: fixedNow.Add(-time.Second)}

	tok, err := m.EnsureAccessToken(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "new-access", tok)
	assert.Equal(t, int32(1), srv.calls.Load())
	assert.Equal(t, fixedNow.Add(3600*time.Second-300*time.Second), m.Token().Expiry)

	form := <-srv.lastForm
	assert.Equal(t, map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     "client-id",
		"client_secret": "client-secret",
		"refresh_token": "config-refresh",
		"redirect_uri":  "https://www.zoho.in",
	}, form)
}

func TestEnsureAccessTokenAtExactExpiryRefreshes(t *testing.T) {
	srv := newAccountsServer(t, http.StatusOK, `{"access_token":"new-access","expires_in":3600}`)
	m := newTokenManager(testTokenConfig(t, srv.URL), logger.NewNop())
	m.token = oauth2.Token{AccessToken: "old", RefreshToken: "config-refresh", Expiry: fixedNow}

	_, err := m.EnsureAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), srv.calls.Load())
}

func TestEnsureAccessTokenValidIsNoop(t *testing.T) {
	srv := newAccountsServer(t, http.StatusOK, `{"access_token":"never"}`)
	m := newTokenManager(testTokenConfig(t, srv.URL), logger.NewNop())
	m.token = oauth2.Token{AccessToken: "current", RefreshToken: "config-refresh", Expiry: fixedNow.Add(time.Minute)}

	tok, err := m.EnsureAccessToken(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "current", tok)
	assert.Equal(t, int32(0), srv.calls.Load())
}

func TestRefreshDefaultsLifetimeAndPersists(t *testing.T) {
	srv := newAccountsServer(t, http.StatusOK, `{"access_token":"new-access","refresh_token":"rotated"}`)
	cfg := testTokenConfig(t, srv.URL)
	m := newTokenManager(cfg, logger.NewNop())

	require.NoError(t, m.Refresh(context.Background()))

	cached, ok, err := cfg.Cache.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new-access", cached.AccessToken)
	assert.Equal(t, "rotated", cached.RefreshToken)
	assert.True(t, cached.Expiry.Equal(fixedNow.Add(3300*time.Second)))
}

func TestRefreshFailureLeavesStateUntouched(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "error body", status: http.StatusOK, body: `{"error":"invalid_code"}`},
		{name: "http error", status: http.StatusBadRequest, body: `{"error":"invalid_client"}`},
		{name: "not json", status: http.StatusOK, body: `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newAccountsServer(t, tt.status, tt.body)
			cfg := testTokenConfig(t, srv.URL)
			m := newTokenManager(cfg, logger.NewNop())
			before := oauth2.Token{AccessToken: "old", RefreshToken: "config-refresh", Expiry: fixedNow.Add(-time.Hour)}
			m.token = before

			err := m.Refresh(context.Background())
			require.Error(t, err)
			assert.True(t, crm.IsTokenError(err))
			assert.Equal(t, before, m.Token())

			_, ok, _ := cfg.Cache.Load()
			assert.False(t, ok, "cache must not be written on failure")
		})
	}
}

func TestRefreshTransportError(t *testing.T) {
	srv := newAccountsServer(t, http.StatusOK, `{}`)
	url := srv.URL
	srv.Close()

	m := newTokenManager(testTokenConfig(t, url), logger.NewNop())
	err := m.Refresh(context.Background())
	assert.True(t, crm.IsTokenError(err))
}

func TestNewTokenManagerFailsWhenRefreshFails(t *testing.T) {
	srv := newAccountsServer(t, http.StatusOK, `{"error":"invalid_code"}`)
	_, err := NewTokenManager(context.Background(), testTokenConfig(t, srv.URL), logger.NewNop())
	assert.True(t, crm.IsTokenError(err))
}

func TestNewTokenManagerUsesValidCache(t *testing.T) {
	srv := newAccountsServer(t, http.StatusOK, `{"access_token":"never"}`)
	cfg := testTokenConfig(t, srv.URL)
	require.NoError(t, cfg.Cache.Save(oauth2.Token{
		AccessToken:  "cached-access",
		RefreshToken: "cached-refresh",
		Expiry:       fixedNow.Add(time.Hour),
	}))

	m, err := NewTokenManager(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)

	assert.Equal(t, int32(0), srv.calls.Load())
	assert.Equal(t, "cached-access", m.Token().AccessToken)
}

func TestRefreshTokenPrecedence(t *testing.T) {
	tests := []struct {
		name      string
		source    RefreshTokenSource
		configTok string
		want      string
	}{
		{name: "configuration wins by default", source: "", configTok: "config-refresh", want: "config-refresh"},
		{name: "cache wins when asked", source: SourceCache, configTok: "config-refresh", want: "cached-refresh"},
		{name: "cache fills missing configuration", source: SourceConfig, configTok: "", want: "cached-refresh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testTokenConfig(t, "http://unused")
			cfg.RefreshToken = tt.configTok
			cfg.RefreshTokenSource = tt.source
			require.NoError(t, cfg.Cache.Save(oauth2.Token{
				AccessToken:  "cached-access",
				RefreshToken: "cached-refresh",
				Expiry:       fixedNow.Add(time.Hour),
			}))

			m := newTokenManager(cfg, logger.NewNop())
			m.loadCache()

			tok := m.Token()
			assert.Equal(t, tt.want, tok.RefreshToken)
			assert.Equal(t, "cached-access", tok.AccessToken)
		})
	}
}

func TestLoadCacheIgnoresBrokenFile(t *testing.T) {
	cfg := testTokenConfig(t, "http://unused")
	require.NoError(t, writeFile(cfg.Cache.Path(), "{not json"))

	m := newTokenManager(cfg, logger.NewNop())
	m.loadCache()

	assert.Equal(t, oauth2.Token{RefreshToken: "config-refresh"}, m.Token())
}

func TestParseRefreshTokenSource(t *testing.T) {
	src, err := ParseRefreshTokenSource("")
	require.NoError(t, err)
	assert.Equal(t, SourceConfig, src)

	src, err = ParseRefreshTokenSource("Cache")
	require.NoError(t, err)
	assert.Equal(t, SourceCache, src)

	_, err = ParseRefreshTokenSource("newest")
	assert.Error(t, err)
}
