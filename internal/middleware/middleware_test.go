package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadbot/crm-assistant/pkg/logger"
)

func TestValidateMessageText(t *testing.T) {
	assert.NoError(t, ValidateMessageText("hello"))
	assert.NoError(t, ValidateMessageText(strings.Repeat("x", MaxMessageBytes)))
	assert.Error(t, ValidateMessageText(""))
	assert.Error(t, ValidateMessageText(" \n\t"))
	assert.Error(t, ValidateMessageText(strings.Repeat("x", MaxMessageBytes+1)))
	assert.Error(t, ValidateMessageText("bad \xff byte"))
}

func TestValidateUserID(t *testing.T) {
	assert.NoError(t, ValidateUserID("123456789"))
	assert.Error(t, ValidateUserID(""))
	assert.Error(t, ValidateUserID(strings.Repeat("u", MaxUserIDBytes+1)))
}

func TestValidateCRMFilterAndLimit(t *testing.T) {
	assert.NoError(t, ValidateCRMFilter(""))
	assert.NoError(t, ValidateCRMFilter("HubSpot"))
	assert.Error(t, ValidateCRMFilter("salesforce"))

	assert.NoError(t, ValidateLimit(1))
	assert.NoError(t, ValidateLimit(MaxEventsPage))
	assert.Error(t, ValidateLimit(0))
	assert.Error(t, ValidateLimit(MaxEventsPage+1))
}

func signed(t *testing.T, method jwt.SigningMethod, key interface{}, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestAuth(t *testing.T) {
	secret := "s3cret"
	var gotUser string
	var gotScopes []string
	h := Auth(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = GetUserID(r.Context())
		gotScopes = GetScopes(r.Context())
	}))

	valid := signed(t, jwt.SigningMethodHS256, []byte(secret), Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1"},
		Scopes:           []string{ScopeLeadsRead},
	})
	expired := signed(t, jwt.SigningMethodHS256, []byte(secret), Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	wrongKey := signed(t, jwt.SigningMethodHS256, []byte("other"), Claims{})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "valid", header: "Bearer " + valid, status: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + valid, status: http.StatusOK},
		{name: "missing", header: "", status: http.StatusUnauthorized},
		{name: "basic", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, status: http.StatusUnauthorized},
		{name: "wrong key", header: "Bearer " + wrongKey, status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotUser = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "u-1", gotUser)
				assert.Equal(t, []string{ScopeLeadsRead}, gotScopes)
			} else {
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestUserRateLimit(t *testing.T) {
	secret := "s3cret"
	limited := Auth(secret)(UserRateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	call := func(sub string) int {
		tok := signed(t, jwt.SigningMethodHS256, []byte(secret), Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: sub}})
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("a"))
	assert.Equal(t, http.StatusOK, call("a"))
	assert.Equal(t, http.StatusTooManyRequests, call("a"))
	assert.Equal(t, http.StatusOK, call("b"))
}

func TestLoggingSetsCorrelationID(t *testing.T) {
	var seen string
	h := Logging(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetCorrelationID(r.Context())
		SetLogUser(r.Context(), "u-9")
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Correlation-ID", "corr-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "corr-1", seen)
	assert.Equal(t, "corr-1", rec.Header().Get("X-Correlation-ID"))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
}
