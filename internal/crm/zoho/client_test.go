package zoho

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/leadbot/crm-assistant/internal/crm"
	"github.com/leadbot/crm-assistant/pkg/logger"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}

func validTokens(t *testing.T) *TokenManager {
	t.Helper()
	m := newTokenManager(testTokenConfig(t, "http://unused"), logger.NewNop())
	m.token = oauth2.Token{AccessToken: "access-123", RefreshToken: "config-refresh", Expiry: fixedNow.Add(time.Hour)}
	return m
}

func TestCreateRecordSuccess(t *testing.T) {
	var gotBody map[string][]map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/crm/v6/Leads", r.URL.Path)
		assert.Equal(t, "Zoho-oauthtoken access-123", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":[{"code":"SUCCESS","status":"success","message":"record added","details":{"id":"5725767000000524157"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIURL: srv.URL + "/crm/v6/"}, validTokens(t), logger.NewNop())
	payload := crm.Payload{"Last_Name": "Doe", "Company": "Acme"}

	res := c.CreateRecord(context.Background(), payload)

	assert.Equal(t, crm.Result{Success: true, ID: "5725767000000524157"}, res)
	assert.Equal(t, map[string][]map[string]string{"data": {{"Last_Name": "Doe", "Company": "Acme"}}}, gotBody)
	assert.Equal(t, crm.Zoho, c.Name())
}

func TestCreateRecordFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{
			name:    "record level error",
			status:  http.StatusBadRequest,
			body:    `{"data":[{"code":"MANDATORY_NOT_FOUND","status":"error","message":"required field not found","details":{"api_name":"Last_Name"}}]}`,
			message: "required field not found",
		},
		{
			name:    "top level error",
			status:  http.StatusUnauthorized,
			body:    `{"code":"INVALID_TOKEN","message":"invalid oauth token","status":"error"}`,
			message: "invalid oauth token",
		},
		{
			name:    "non json error",
			status:  http.StatusBadGateway,
			body:    `upstream down`,
			message: "502 Bad Gateway: upstream down",
		},
		{
			name:    "ok without success code",
			status:  http.StatusOK,
			body:    `{"data":[]}`,
			message: "200 OK: unexpected response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(Config{APIURL: srv.URL}, validTokens(t), logger.NewNop())
			res := c.CreateRecord(context.Background(), crm.Payload{"Last_Name": "Doe"})

			assert.Equal(t, crm.Failed(tt.message), res)
		})
	}
}

func TestCreateRecordTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(Config{APIURL: url}, validTokens(t), logger.NewNop())
	res := c.CreateRecord(context.Background(), crm.Payload{"Last_Name": "Doe"})

	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Message)
}

func TestCreateRecordRefreshesExpiredToken(t *testing.T) {
	accounts := newAccountsServer(t, http.StatusOK, `{"access_token":"fresh","expires_in":3600}`)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Zoho-oauthtoken fresh", r.Header.Get("Authorization"))
		w.Write([]byte(`{"data":[{"code":"SUCCESS","details":{"id":"42"}}]}`))
	}))
	defer api.Close()

	m := newTokenManager(testTokenConfig(t, accounts.URL), logger.NewNop())
	m.token = oauth2.Token{AccessToken: "stale", RefreshToken: "config-refresh", Expiry: fixedNow.Add(-time.Minute)}

	res := NewClient(Config{APIURL: api.URL}, m, logger.NewNop()).CreateRecord(context.Background(), crm.Payload{})

	assert.Equal(t, crm.Succeeded("42"), res)
	assert.Equal(t, int32(1), accounts.calls.Load())
}

func TestCreateRecordTokenFailureIsAResult(t *testing.T) {
	accounts := newAccountsServer(t, http.StatusOK, `{"error":"invalid_code"}`)
	m := newTokenManager(testTokenConfig(t, accounts.URL), logger.NewNop())

	res := NewClient(Config{APIURL: "http://unused"}, m, logger.NewNop()).CreateRecord(context.Background(), crm.Payload{})

	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "invalid_code")
}

func TestTokenCacheRoundTrip(t *testing.T) {
	cache := NewTokenCache(filepath.Join(t.TempDir(), "tokens.json"))

	_, ok, err := cache.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	tok := oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: fixedNow}
	require.NoError(t, cache.Save(tok))

	info, err := os.Stat(cache.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, ok, err := cache.Load()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a", got.AccessToken)
	assert.Equal(t, "r", got.RefreshToken)
	assert.True(t, got.Expiry.Equal(fixedNow))
}
