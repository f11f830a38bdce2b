package zoho

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/leadbot/crm-assistant/internal/crm"
	"github.com/leadbot/crm-assistant/pkg/logger"
	"github.com/leadbot/crm-assistant/pkg/metrics"
)

const (
	// DefaultAccountsURL is the Zoho token endpoint for the .in data center.
	DefaultAccountsURL = "https://accounts.zoho.in/oauth/v2/token"

	defaultExpiresIn = 3600 * time.Second
	expirySafety     = 300 * time.Second
)

// RefreshTokenSource decides which refresh token wins when both the
// configuration and the cache file carry one.
type RefreshTokenSource string

const (
	// SourceConfig prefers the configured refresh token.
	SourceConfig RefreshTokenSource = "config"
	// SourceCache prefers the cached refresh token.
	SourceCache RefreshTokenSource = "cache"
)

// ParseRefreshTokenSource validates a configured precedence value. Empty
// means SourceConfig.
func ParseRefreshTokenSource(s string) (RefreshTokenSource, error) {
	switch src := RefreshTokenSource(strings.ToLower(strings.TrimSpace(s))); src {
	case "", SourceConfig:
		return SourceConfig, nil
	case SourceCache:
		return SourceCache, nil
	default:
		return "", fmt.Errorf("unknown refresh token source %q", s)
	}
}

// TokenConfig configures a TokenManager.
type TokenConfig struct {
	ClientID           string
	ClientSecret       string
	RefreshToken       string
	RedirectURI        string
	AccountsURL        string
	RefreshTokenSource RefreshTokenSource
	Cache              *TokenCache
	HTTPClient         *http.Client

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// TokenManager owns the Zoho OAuth credential and refreshes it on demand.
// Concurrent refreshes are not serialized; the last successful one wins.
type TokenManager struct {
	cfg        TokenConfig
	httpClient *http.Client
	now        func() time.Time
	logger     *logger.Logger

	mu    sync.RWMutex
	token oauth2.Token
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Error        string `json:"error"`
}

// NewTokenManager loads the cached credential and makes sure a valid access
// token is held. A returned error means the adapter is unusable.
func NewTokenManager(ctx context.Context, cfg TokenConfig, log *logger.Logger) (*TokenManager, error) {
	m := newTokenManager(cfg, log)
	m.loadCache()

	if _, err := m.EnsureAccessToken(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func newTokenManager(cfg TokenConfig, log *logger.Logger) *TokenManager {
	if cfg.AccountsURL == "" {
		cfg.AccountsURL = DefaultAccountsURL
	}
	if cfg.RefreshTokenSource == "" {
		cfg.RefreshTokenSource = SourceConfig
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &TokenManager{
		cfg:        cfg,
		httpClient: httpClient,
		now:        now,
		logger:     log.Named("zoho.token"),
		token:      oauth2.Token{RefreshToken: cfg.RefreshToken},
	}
}

// loadCache merges the cached credential into memory. A missing or broken
// cache is not an error; the manager starts from configuration.
func (m *TokenManager) loadCache() {
	if m.cfg.Cache == nil {
		return
	}

	cached, ok, err := m.cfg.Cache.Load()
	if err != nil {
		m.logger.Warn("ignoring unreadable token cache", zap.Error(err))
		return
	}
	if !ok {
		m.logger.Info("no token cache found", zap.String("path", m.cfg.Cache.Path()))
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.token.AccessToken = cached.AccessToken
	m.token.Expiry = cached.Expiry

	switch {
	case cached.RefreshToken == "":
	case m.cfg.RefreshTokenSource == SourceCache || m.token.RefreshToken == "":
		m.token.RefreshToken = cached.RefreshToken
	case cached.RefreshToken != m.token.RefreshToken:
		m.logger.Warn("cached refresh token differs from configuration, using configuration",
			zap.String("path", m.cfg.Cache.Path()),
		)
	}

	m.logger.Info("token cache loaded", zap.Time("expires_at", cached.Expiry))
}

// Token returns a copy of the held credential.
func (m *TokenManager) Token() oauth2.Token {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// EnsureAccessToken refreshes when no access token is held or the current
// time has reached its expiry, and returns the token to use.
func (m *TokenManager) EnsureAccessToken(ctx context.Context) (string, error) {
	tok := m.Token()
	if tok.AccessToken != "" && m.now().Before(tok.Expiry) {
		return tok.AccessToken, nil
	}

	if err := m.Refresh(ctx); err != nil {
		return "", err
	}
	return m.Token().AccessToken, nil
}

// Refresh exchanges the refresh token for a new access token. On failure
// the held credential is left untouched.
func (m *TokenManager) Refresh(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "zoho.RefreshToken")
	defer span.End()

	tok, err := m.requestToken(ctx)
	if err != nil {
		metrics.RecordTokenRefresh(false)
		span.SetStatus(codes.Error, err.Error())
		m.logger.Error("access token refresh failed", zap.Error(err))
		return &crm.TokenError{Op: "refresh", Err: err}
	}

	expiresIn := defaultExpiresIn
	if tok.ExpiresIn > 0 {
		expiresIn = time.Duration(tok.ExpiresIn) * time.Second
	}

	m.mu.Lock()
	m.token.AccessToken = tok.AccessToken
	m.token.Expiry = m.now().Add(expiresIn - expirySafety)
	if tok.RefreshToken != "" {
		m.token.RefreshToken = tok.RefreshToken
	}
	snapshot := m.token
	m.mu.Unlock()

	metrics.RecordTokenRefresh(true)
	m.logger.Info("access token refreshed", zap.Time("expires_at", snapshot.Expiry))

	if m.cfg.Cache != nil {
		if err := m.cfg.Cache.Save(snapshot); err != nil {
			m.logger.Warn("failed to persist token cache", zap.Error(err))
		}
	}
	return nil
}

func (m *TokenManager) requestToken(ctx context.Context) (*tokenResponse, error) {
	refreshToken := m.Token().RefreshToken
	if refreshToken == "" {
		return nil, errors.New("no refresh token configured")
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {m.cfg.ClientID},
		"client_secret": {m.cfg.ClientSecret},
		"refresh_token": {refreshToken},
		"redirect_uri":  {m.cfg.RedirectURI},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.AccountsURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	var out tokenResponse
	decodeErr := json.Unmarshal(body, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if out.Error != "" {
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, out.Error)
		}
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode token response: %w", decodeErr)
	}
	if out.AccessToken == "" {
		if out.Error != "" {
			return nil, fmt.Errorf("no access_token in response: %s", out.Error)
		}
		return nil, errors.New("no access_token in response")
	}

	return &out, nil
}
