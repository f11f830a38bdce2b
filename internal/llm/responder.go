package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/leadbot/crm-assistant/pkg/logger"
)

// Responder answers free-form questions sent to the bot.
type Responder interface {
	Respond(ctx context.Context, prompt string) (string, error)
}

const systemPrompt = "You are a CRM assistant inside a chat bot that captures sales leads. " +
	"Answer briefly. When the user wants to record a lead, tell them to send the " +
	"name, email and phone in one message or to use /newlead."

// CannedReply is the fixed answer used when no model is configured.
func CannedReply(prompt string) string {
	return fmt.Sprintf("I am a simple bot. You said: '%s'. I can help collect lead info.", prompt)
}

// CannedResponder replies without calling a model.
type CannedResponder struct{}

// Respond implements Responder.
func (CannedResponder) Respond(_ context.Context, prompt string) (string, error) {
	return CannedReply(prompt), nil
}

// ClientResponder asks an LLM and falls back to the canned reply when the
// provider fails or returns nothing.
type ClientResponder struct {
	client Client
	model  string
	logger *logger.Logger
}

// NewClientResponder wraps client. An empty model uses the provider default.
func NewClientResponder(client Client, model string, log *logger.Logger) *ClientResponder {
	return &ClientResponder{
		client: client,
		model:  model,
		logger: log.Named("llm"),
	}
}

// Respond implements Responder.
func (r *ClientResponder) Respond(ctx context.Context, prompt string) (string, error) {
	resp, err := r.client.Complete(ctx, &CompletionRequest{
		Model:  r.model,
		System: systemPrompt,
		Messages: []ChatMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		r.logger.Warn("completion failed, using canned reply",
			zap.String("provider", r.client.Name()),
			zap.Error(err),
		)
		return CannedReply(prompt), nil
	}
	if resp.Content == "" {
		return CannedReply(prompt), nil
	}

	r.logger.Debug("completion",
		zap.String("model", resp.Model),
		zap.Int("tokens_in", resp.TokensIn),
		zap.Int("tokens_out", resp.TokensOut),
		zap.Int64("latency_ms", resp.LatencyMs),
	)
	return resp.Content, nil
}
