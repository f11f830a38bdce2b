// Package main is the entry point for the lead capture bot.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/leadbot/crm-assistant/internal/config"
	"github.com/leadbot/crm-assistant/internal/crm"
	"github.com/leadbot/crm-assistant/internal/crm/hubspot"
	"github.com/leadbot/crm-assistant/internal/crm/zoho"
	"github.com/leadbot/crm-assistant/internal/dialogue"
	"github.com/leadbot/crm-assistant/internal/handler"
	"github.com/leadbot/crm-assistant/internal/llm"
	natsclient "github.com/leadbot/crm-assistant/internal/nats"
	"github.com/leadbot/crm-assistant/internal/service"
	"github.com/leadbot/crm-assistant/internal/telegram"
	"github.com/leadbot/crm-assistant/pkg/logger"
	"github.com/leadbot/crm-assistant/pkg/tracing"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Global().Error("invalid configuration", zap.Error(err))
		os.Exit(1)
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	if err := run(cfg, log); err != nil {
		log.Error("leadbot stopped", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(level string) (*logger.Logger, error) {
	if os.Getenv("ENV") == "development" {
		return logger.NewDevelopment()
	}
	return logger.New(level)
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting leadbot", zap.String("crm", string(cfg.CRM)))

	// Initialize tracing if enabled
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "leadbot", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	httpClient := &http.Client{Timeout: cfg.CRMHTTPTimeout}
	adapter, err := newAdapter(ctx, cfg, httpClient, log)
	if err != nil {
		return err
	}
	router, err := crm.NewRouter(string(cfg.CRM), adapter, log)
	if err != nil {
		return err
	}

	// Lead events are optional; both interfaces stay nil without NATS.
	var (
		events    service.EventPublisher
		pinger    handler.Pinger
		eventsAPI *handler.EventHandler
	)
	if cfg.NATSURL != "" {
		nc, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			return err
		}
		defer nc.Close()

		stream := natsclient.NewLeadStream(nc)
		if err := stream.EnsureStream(ctx); err != nil {
			return fmt.Errorf("ensure lead stream: %w", err)
		}
		events = stream
		pinger = nc
		eventsAPI = handler.NewEventHandler(stream, log)
	}

	var responder llm.Responder
	if cfg.LLMProvider != llm.ProviderNone {
		client, err := llm.NewClient(llm.Config{
			Provider: cfg.LLMProvider,
			APIKey:   cfg.LLMAPIKey(),
			Model:    cfg.LLMModel,
		})
		if err != nil {
			log.Warn("failed to create LLM client, using canned replies", zap.Error(err))
		} else {
			responder = llm.NewClientResponder(client, cfg.LLMModel, log)
		}
	}

	capture := service.NewCaptureService(
		dialogue.NewMemoryStore(),
		router,
		events,
		responder,
		service.CaptureConfig{LeadSource: cfg.LeadSource},
		log,
	)

	var (
		wg     sync.WaitGroup
		server *http.Server
	)
	errs := make(chan error, 2)

	if cfg.ServerEnabled {
		server = &http.Server{
			Addr: ":" + cfg.ServerPort,
			Handler: handler.NewRouter(handler.RoutesConfig{
				JWTSecret:             cfg.JWTSecret,
				AllowedOrigins:        cfg.AllowedOrigins,
				RateLimitRequests:     cfg.RateLimitRequests,
				RateLimitWindow:       cfg.RateLimitWindow,
				UserRateLimitRequests: cfg.UserRateLimitRequests,
				Health:                handler.NewHealthHandler(true, pinger),
				Messages:              handler.NewMessageHandler(capture, log),
				Events:                eventsAPI,
			}, log),
			ReadTimeout:  cfg.ServerReadTimeout,
			WriteTimeout: cfg.ServerWriteTimeout,
			IdleTimeout:  120 * time.Second,
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info("server listening", zap.String("port", cfg.ServerPort))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	if cfg.TelegramBotToken != "" {
		bot, err := telegram.New(cfg.TelegramBotToken, cfg.TelegramDebug, capture, log)
		if err != nil {
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := bot.Run(ctx); err != nil {
				errs <- fmt.Errorf("telegram: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errs:
		stop()
		return err
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server forced to shutdown", zap.Error(err))
		}
	}

	// Telegram finishes in-flight messages before Run returns.
	wg.Wait()
	log.Info("leadbot stopped")
	return nil
}

// newAdapter builds the adapter for the configured CRM. For Zoho this
// performs the startup token check, so a failure here is fatal.
func newAdapter(ctx context.Context, cfg *config.Config, httpClient *http.Client, log *logger.Logger) (crm.Adapter, error) {
	switch cfg.CRM {
	case crm.Zoho:
		source, err := zoho.ParseRefreshTokenSource(cfg.Zoho.RefreshTokenSource)
		if err != nil {
			return nil, err
		}
		tokens, err := zoho.NewTokenManager(ctx, zoho.TokenConfig{
			ClientID:           cfg.Zoho.ClientID,
			ClientSecret:       cfg.Zoho.ClientSecret,
			RefreshToken:       cfg.Zoho.RefreshToken,
			RedirectURI:        cfg.Zoho.RedirectURI,
			AccountsURL:        cfg.Zoho.AccountsURL,
			RefreshTokenSource: source,
			Cache:              zoho.NewTokenCache(cfg.Zoho.TokenFile),
			HTTPClient:         httpClient,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("zoho token check: %w", err)
		}
		return zoho.NewClient(zoho.Config{
			APIURL:     cfg.Zoho.APIURL,
			HTTPClient: httpClient,
		}, tokens, log), nil

	case crm.HubSpot:
		return hubspot.NewClient(hubspot.Config{
			APIKey:     cfg.HubSpot.APIKey,
			BaseURL:    cfg.HubSpot.APIURL,
			HTTPClient: httpClient,
		}, log), nil

	default:
		return nil, fmt.Errorf("unsupported CRM %q", cfg.CRM)
	}
}
