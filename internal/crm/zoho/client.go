// Package zoho implements the Zoho CRM Leads adapter and its OAuth token
// lifecycle.
package zoho

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/leadbot/crm-assistant/internal/crm"
	"github.com/leadbot/crm-assistant/pkg/logger"
)

// DefaultAPIURL is the Zoho CRM v6 base for the .in data center.
const DefaultAPIURL = "https://www.zohoapis.in/crm/v6/"

const successCode = "SUCCESS"

var tracer = otel.Tracer("github.com/leadbot/crm-assistant/internal/crm/zoho")

// Config configures the Leads client.
type Config struct {
	APIURL     string
	HTTPClient *http.Client
}

// Client creates Leads in Zoho CRM.
type Client struct {
	apiURL     string
	httpClient *http.Client
	tokens     *TokenManager
	logger     *logger.Logger
}

type leadsResponse struct {
	Data []struct {
		Code    string `json:"code"`
		Status  string `json:"status"`
		Message string `json:"message"`
		Details struct {
			ID string `json:"id"`
		} `json:"details"`
	} `json:"data"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewClient builds a Leads client that authenticates through tokens.
func NewClient(cfg Config, tokens *TokenManager, log *logger.Logger) *Client {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		apiURL:     strings.TrimRight(apiURL, "/"),
		httpClient: httpClient,
		tokens:     tokens,
		logger:     log.Named("zoho"),
	}
}

// Name implements crm.Adapter.
func (c *Client) Name() crm.Name {
	return crm.Zoho
}

// CreateRecord posts one lead to the Leads module.
func (c *Client) CreateRecord(ctx context.Context, payload crm.Payload) crm.Result {
	ctx, span := tracer.Start(ctx, "zoho.CreateLead")
	defer span.End()

	token, err := c.tokens.EnsureAccessToken(ctx)
	if err != nil {
		return crm.Failed(err.Error())
	}

	body, err := json.Marshal(map[string]any{"data": []crm.Payload{payload}})
	if err != nil {
		return crm.Failed(fmt.Sprintf("encode lead: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/Leads", bytes.NewReader(body))
	if err != nil {
		return crm.Failed(err.Error())
	}
	c.addAuthHeaders(req, token)

	c.logger.Debug("creating lead", zap.Any("lead", payload))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("lead request failed", zap.Error(err))
		return crm.Failed(err.Error())
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	var result leadsResponse
	decodeErr := json.Unmarshal(respBody, &result)

	if decodeErr == nil && resp.StatusCode >= 200 && resp.StatusCode <= 299 &&
		len(result.Data) > 0 && result.Data[0].Code == successCode {
		id := result.Data[0].Details.ID
		c.logger.Info("lead created", zap.String("id", id))
		return crm.Succeeded(id)
	}

	msg := failureMessage(resp.StatusCode, result, decodeErr, respBody)
	c.logger.Error("lead rejected",
		zap.Int("status", resp.StatusCode),
		zap.String("message", msg),
	)
	return crm.Failed(msg)
}

func failureMessage(status int, result leadsResponse, decodeErr error, body []byte) string {
	switch {
	case decodeErr == nil && len(result.Data) > 0 && result.Data[0].Message != "":
		return result.Data[0].Message
	case decodeErr == nil && result.Message != "":
		return result.Message
	case len(body) > 0 && (status < 200 || status > 299):
		return fmt.Sprintf("%d %s: %s", status, http.StatusText(status), strings.TrimSpace(string(body)))
	default:
		return fmt.Sprintf("%d %s: unexpected response", status, http.StatusText(status))
	}
}

func (c *Client) addAuthHeaders(req *http.Request, token string) {
	req.Header.Set("Authorization", "Zoho-oauthtoken "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}
