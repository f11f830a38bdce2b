// Package config loads the bot configuration from the environment and the
// CRM configuration file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/leadbot/crm-assistant/internal/crm"
	"github.com/leadbot/crm-assistant/internal/crm/zoho"
	"github.com/leadbot/crm-assistant/internal/llm"
)

// ConfigurationError reports a missing or invalid setting.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// ZohoConfig holds Zoho CRM credentials and endpoints.
type ZohoConfig struct {
	ClientID           string `json:"client_id" yaml:"client_id"`
	ClientSecret       string `json:"client_secret" yaml:"client_secret"`
	RefreshToken       string `json:"refresh_token" yaml:"refresh_token"`
	RedirectURI        string `json:"redirect_uri" yaml:"redirect_uri"`
	AccountsURL        string `json:"accounts_url" yaml:"accounts_url"`
	APIURL             string `json:"api_url" yaml:"api_url"`
	TokenFile          string `json:"token_file" yaml:"token_file"`
	RefreshTokenSource string `json:"refresh_token_source" yaml:"refresh_token_source"`
}

// HubSpotConfig holds HubSpot credentials.
type HubSpotConfig struct {
	APIKey string `json:"api_key" yaml:"api_key"`
	APIURL string `json:"api_url" yaml:"api_url"`
}

// CRMFile is the shape of the CRM configuration file, JSON or YAML.
type CRMFile struct {
	CRM              string        `json:"crm" yaml:"crm"`
	TelegramBotToken string        `json:"telegram_bot_token" yaml:"telegram_bot_token"`
	Zoho             ZohoConfig    `json:"zoho" yaml:"zoho"`
	HubSpot          HubSpotConfig `json:"hubspot" yaml:"hubspot"`
}

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerEnabled      bool
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	AllowedOrigins     []string

	// CRM settings
	CRMConfigPath  string
	CRM            crm.Name
	Zoho           ZohoConfig
	HubSpot        HubSpotConfig
	CRMHTTPTimeout time.Duration
	LeadSource     string

	// Telegram settings
	TelegramBotToken string
	TelegramDebug    bool

	// NATS settings, empty URL disables the event stream
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// JWT settings
	JWTSecret string

	// LLM settings
	LLMProvider     llm.Provider
	LLMModel        string
	AnthropicAPIKey string
	OpenAIAPIKey    string

	// Rate limiting
	RateLimitRequests     int
	UserRateLimitRequests int
	RateLimitWindow       time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables and the CRM file,
// then validates it.
func Load() (*Config, error) {
	cfg := &Config{
		// Server
		ServerEnabled:      getBoolEnv("HTTP_ENABLED", true),
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),
		AllowedOrigins:     getListEnv("CORS_ALLOWED_ORIGINS"),

		// CRM
		CRMConfigPath:  getEnv("CRM_CONFIG_PATH", "config/crm_config.json"),
		CRMHTTPTimeout: getDurationEnv("CRM_HTTP_TIMEOUT", 30*time.Second),
		LeadSource:     getEnv("LEAD_SOURCE", crm.DefaultLeadSource),

		// Telegram
		TelegramDebug: getBoolEnv("TELEGRAM_DEBUG", false),

		// NATS
		NATSURL:      getEnv("NATS_URL", ""),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", ""),

		// LLM
		LLMProvider:     llm.Provider(strings.ToLower(getEnv("LLM_PROVIDER", ""))),
		LLMModel:        getEnv("LLM_MODEL", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),

		// Rate limiting
		RateLimitRequests:     getIntEnv("RATE_LIMIT_REQUESTS", 120),
		UserRateLimitRequests: getIntEnv("USER_RATE_LIMIT_REQUESTS", 30),
		RateLimitWindow:       getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}

	file, err := LoadCRMFile(cfg.CRMConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.applyCRMFile(file)
	cfg.applyEnvOverrides()
	cfg.selectLLMProvider()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadCRMFile reads the CRM configuration file. A missing file yields an
// empty configuration so that the environment alone can configure the bot.
func LoadCRMFile(path string) (*CRMFile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &CRMFile{}, nil
	}
	if err != nil {
		return nil, &ConfigurationError{Field: "CRM_CONFIG_PATH", Reason: err.Error()}
	}

	var file CRMFile
	unmarshal := yaml.Unmarshal
	if strings.EqualFold(filepath.Ext(path), ".json") {
		unmarshal = json.Unmarshal
	}
	if err := unmarshal(data, &file); err != nil {
		return nil, &ConfigurationError{Field: "CRM_CONFIG_PATH", Reason: fmt.Sprintf("parse %s: %v", path, err)}
	}
	return &file, nil
}

func (c *Config) applyCRMFile(f *CRMFile) {
	c.CRM = crm.Name(f.CRM)
	c.TelegramBotToken = f.TelegramBotToken
	c.Zoho = f.Zoho
	c.HubSpot = f.HubSpot
}

func (c *Config) applyEnvOverrides() {
	override(&c.TelegramBotToken, "TELEGRAM_BOT_TOKEN")

	var name string
	override(&name, "CRM_PROVIDER")
	if name != "" {
		c.CRM = crm.Name(name)
	}

	override(&c.Zoho.ClientID, "ZOHO_CLIENT_ID")
	override(&c.Zoho.ClientSecret, "ZOHO_CLIENT_SECRET")
	override(&c.Zoho.RefreshToken, "ZOHO_REFRESH_TOKEN")
	override(&c.Zoho.RedirectURI, "ZOHO_REDIRECT_URI")
	override(&c.Zoho.AccountsURL, "ZOHO_ACCOUNTS_URL")
	override(&c.Zoho.APIURL, "ZOHO_API_URL")
	override(&c.Zoho.TokenFile, "ZOHO_TOKEN_FILE")
	override(&c.Zoho.RefreshTokenSource, "ZOHO_REFRESH_TOKEN_SOURCE")

	override(&c.HubSpot.APIKey, "HUBSPOT_API_KEY")
	override(&c.HubSpot.APIURL, "HUBSPOT_API_URL")

	if c.Zoho.TokenFile == "" {
		c.Zoho.TokenFile = "zoho_tokens.json"
	}
}

// selectLLMProvider picks a provider from the available keys when none is
// named.
func (c *Config) selectLLMProvider() {
	if c.LLMProvider != llm.ProviderNone {
		return
	}
	switch {
	case c.AnthropicAPIKey != "":
		c.LLMProvider = llm.ProviderAnthropic
	case c.OpenAIAPIKey != "":
		c.LLMProvider = llm.ProviderOpenAI
	}
}

// LLMAPIKey returns the key for the selected provider.
func (c *Config) LLMAPIKey() string {
	switch c.LLMProvider {
	case llm.ProviderAnthropic:
		return c.AnthropicAPIKey
	case llm.ProviderOpenAI:
		return c.OpenAIAPIKey
	default:
		return ""
	}
}

// Validate checks that the selected CRM has the settings it needs.
func (c *Config) Validate() error {
	if c.CRM == "" {
		return &ConfigurationError{Field: "crm", Reason: "no CRM selected (set 'crm' in the CRM file or CRM_PROVIDER)"}
	}
	name, err := crm.ParseName(string(c.CRM))
	if err != nil {
		return &ConfigurationError{Field: "crm", Reason: err.Error()}
	}
	c.CRM = name

	switch name {
	case crm.Zoho:
		if c.Zoho.ClientID == "" {
			return &ConfigurationError{Field: "zoho.client_id", Reason: "required"}
		}
		if c.Zoho.ClientSecret == "" {
			return &ConfigurationError{Field: "zoho.client_secret", Reason: "required"}
		}
		if _, err := zoho.ParseRefreshTokenSource(c.Zoho.RefreshTokenSource); err != nil {
			return &ConfigurationError{Field: "zoho.refresh_token_source", Reason: err.Error()}
		}
	case crm.HubSpot:
		if c.HubSpot.APIKey == "" {
			return &ConfigurationError{Field: "hubspot.api_key", Reason: "required"}
		}
	}

	if c.ServerEnabled && c.JWTSecret == "" {
		return &ConfigurationError{Field: "JWT_SECRET", Reason: "required when HTTP_ENABLED is true"}
	}
	if !c.ServerEnabled && c.TelegramBotToken == "" {
		return &ConfigurationError{Field: "telegram_bot_token", Reason: "no chat transport enabled"}
	}

	switch c.LLMProvider {
	case llm.ProviderNone:
	case llm.ProviderAnthropic, llm.ProviderOpenAI:
		if c.LLMAPIKey() == "" {
			return &ConfigurationError{Field: "LLM_PROVIDER", Reason: fmt.Sprintf("no API key for %s", c.LLMProvider)}
		}
	default:
		return &ConfigurationError{Field: "LLM_PROVIDER", Reason: fmt.Sprintf("unknown provider %q", c.LLMProvider)}
	}

	return nil
}

func override(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getListEnv(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
