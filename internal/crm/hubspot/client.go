// Package hubspot implements the HubSpot CRM contacts adapter.
package hubspot

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

// DefaultBaseURL is the public HubSpot API host.
const DefaultBaseURL = "https://api.hubapi.com"

var tracer = otel.Tracer("github.com/leadbot/crm-assistant/internal/crm/hubspot")

// Config configures the contacts client.
type Config struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// Client creates contacts through the CRM v3 objects API using a private
// app token.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

type contactResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// NewClient builds a contacts client.
func NewClient(cfg Config, log *logger.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     log.Named("hubspot"),
	}
}

// Name implements crm.Adapter.
func (c *Client) Name() crm.Name {
	return crm.HubSpot
}

// CreateRecord posts one contact.
func (c *Client) CreateRecord(ctx context.Context, payload crm.Payload) crm.Result {
	ctx, span := tracer.Start(ctx, "hubspot.CreateContact")
	defer span.End()

	body, err := json.Marshal(map[string]crm.Payload{"properties": payload})
	if err != nil {
		return crm.Failed(fmt.Sprintf("encode contact: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/crm/v3/objects/contacts", bytes.NewReader(body))
	if err != nil {
		return crm.Failed(err.Error())
	}
	c.addAuthHeaders(req)

	c.logger.Debug("creating contact", zap.Any("contact", payload))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("contact request failed", zap.Error(err))
		return crm.Failed(err.Error())
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	var result contactResponse
	decodeErr := json.Unmarshal(respBody, &result)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		switch {
		case decodeErr == nil && result.Message != "":
			msg += ": " + result.Message
		case len(respBody) > 0:
			msg += ": " + strings.TrimSpace(string(respBody))
		}
		c.logger.Error("contact rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg),
		)
		return crm.Failed(msg)
	}

	if decodeErr != nil || result.ID == "" {
		c.logger.Error("contact response missing id", zap.ByteString("body", respBody))
		return crm.Failed("Contact created but no ID returned.")
	}

	c.logger.Info("contact created", zap.String("id", result.ID))
	return crm.Succeeded(result.ID)
}

func (c *Client) addAuthHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}
