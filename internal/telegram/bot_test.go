package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadbot/crm-assistant/pkg/logger"
)

type fakeAPI struct {
	updates chan tgbotapi.Update

	mu      sync.Mutex
	sent    []tgbotapi.MessageConfig
	stopped bool
	sendErr error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 10)}
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), f.sent...)
}

type recordingProcessor struct {
	mu    sync.Mutex
	calls [][2]string
	err   error
}

func (p *recordingProcessor) Handle(_ context.Context, userID, text string) ([]string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, [2]string{userID, text})
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return []string{"first: " + text, "second"}, nil
}

func textUpdate(userID, chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			From: &tgbotapi.User{ID: userID},
			Chat: &tgbotapi.Chat{ID: chatID},
			Text: text,
		},
	}
}

func runUntilClosed(t *testing.T, api *fakeAPI, p MessageProcessor) {
	t.Helper()
	b := newBot(api, p, logger.NewNop())
	close(api.updates)
	require.NoError(t, b.Run(context.Background()))
}

func TestRepliesGoToOriginatingChat(t *testing.T) {
	api := newFakeAPI()
	p := &recordingProcessor{}
	api.updates <- textUpdate(42, 900, "/newlead")

	runUntilClosed(t, api, p)

	assert.Equal(t, [][2]string{{"42", "/newlead"}}, p.calls)
	sent := api.messages()
	require.Len(t, sent, 2)
	assert.Equal(t, int64(900), sent[0].ChatID)
	assert.Equal(t, "first: /newlead", sent[0].Text)
	assert.Equal(t, "second", sent[1].Text)
}

func TestIgnoresNonTextUpdates(t *testing.T) {
	api := newFakeAPI()
	p := &recordingProcessor{}
	api.updates <- tgbotapi.Update{}
	api.updates <- tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}}}

	runUntilClosed(t, api, p)

	assert.Empty(t, p.calls)
	assert.Empty(t, api.messages())
}

func TestChannelPostUsesChatID(t *testing.T) {
	api := newFakeAPI()
	p := &recordingProcessor{}
	api.updates <- tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: -100}, Text: "hi"}}

	runUntilClosed(t, api, p)

	assert.Equal(t, [][2]string{{"-100", "hi"}}, p.calls)
}

func TestProcessorErrorSendsApology(t *testing.T) {
	api := newFakeAPI()
	p := &recordingProcessor{err: errors.New("store down")}
	api.updates <- textUpdate(1, 1, "hello")

	runUntilClosed(t, api, p)

	sent := api.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, internalErrText, sent[0].Text)
}

func TestSendFailureStopsReplies(t *testing.T) {
	api := newFakeAPI()
	api.sendErr = errors.New("blocked by user")
	api.updates <- textUpdate(1, 1, "hello")

	runUntilClosed(t, api, &recordingProcessor{})

	assert.Empty(t, api.messages())
}

func TestRunStopsOnCancel(t *testing.T) {
	api := newFakeAPI()
	b := newBot(api, &recordingProcessor{}, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	api.updates <- textUpdate(7, 7, "ping")
	require.Eventually(t, func() bool { return len(api.messages()) == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.True(t, api.stopped)
}
