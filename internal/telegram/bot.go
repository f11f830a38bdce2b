// Package telegram connects the capture service to a Telegram bot through
// long polling.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/leadbot/crm-assistant/internal/service"
	"github.com/leadbot/crm-assistant/pkg/logger"
)

// Transport is the transport label used for Telegram messages.
const Transport = "telegram"

const (
	pollTimeout     = 60
	handleTimeout   = 2 * time.Minute
	internalErrText = "Sorry, something went wrong. Please try again."
)

// MessageProcessor handles one chat message and returns the replies.
type MessageProcessor interface {
	Handle(ctx context.Context, userID, text string) ([]string, error)
}

// botAPI is the part of tgbotapi.BotAPI the bot uses.
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot receives Telegram updates and answers them.
type Bot struct {
	api       botAPI
	processor MessageProcessor
	logger    *logger.Logger

	wg sync.WaitGroup
}

// New authenticates against the Bot API with token.
func New(token string, debug bool, processor MessageProcessor, log *logger.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	api.Debug = debug

	b := newBot(api, processor, log)
	b.logger.Info("authorized on telegram", zap.String("bot", api.Self.UserName))
	return b, nil
}

func newBot(api botAPI, processor MessageProcessor, log *logger.Logger) *Bot {
	return &Bot{
		api:       api,
		processor: processor,
		logger:    log.Named("telegram"),
	}
}

// Run polls for updates until ctx is cancelled, then waits for in-flight
// messages to finish.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("polling for updates")
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("stopped polling")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.dispatch(ctx, update)
		}
	}
}

// dispatch handles each text message on its own goroutine.
func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" {
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.handle(ctx, msg)
	}()
}

func (b *Bot) handle(ctx context.Context, msg *tgbotapi.Message) {
	// A shutdown must not abort a CRM call half way.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), handleTimeout)
	defer cancel()

	userID := userKey(msg)
	log := b.logger.WithUser(Transport, userID)

	replies, err := b.processor.Handle(service.WithTransport(ctx, Transport), userID, msg.Text)
	if err != nil {
		log.Error("failed to handle message", zap.Error(err))
		replies = []string{internalErrText}
	}

	for _, text := range replies {
		if _, err := b.api.Send(tgbotapi.NewMessage(msg.Chat.ID, text)); err != nil {
			log.Error("failed to send reply", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
			return
		}
	}
}

// userKey identifies the sender; channel posts carry no user.
func userKey(msg *tgbotapi.Message) string {
	if msg.From != nil {
		return strconv.FormatInt(msg.From.ID, 10)
	}
	return strconv.FormatInt(msg.Chat.ID, 10)
}
