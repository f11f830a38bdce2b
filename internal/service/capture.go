// Package service provides the lead capture logic shared by every chat
// transport.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leadbot/crm-assistant/internal/crm"
	"github.com/leadbot/crm-assistant/internal/dialogue"
	"github.com/leadbot/crm-assistant/internal/lead"
	"github.com/leadbot/crm-assistant/internal/llm"
	"github.com/leadbot/crm-assistant/internal/model"
	"github.com/leadbot/crm-assistant/pkg/logger"
	"github.com/leadbot/crm-assistant/pkg/metrics"
)

// Reply texts.
const (
	GreetingReply = "Hi! I'm your CRM assistant. " +
		"I can help you capture leads directly into your CRM. " +
		"Tell me about the lead (e.g., 'Name: John Doe, Email: john.doe@example.com, Phone: 9876543210')." +
		"\n\nOr use /newlead to start capturing details step-by-step."
	HelpReply = "I can help you add leads to your CRM. " +
		"Just send me lead information like Name, Email, and Phone number.\n" +
		"Commands:\n" +
		"/start - Start interacting with the bot\n" +
		"/newlead - Start a step-by-step lead capture process\n" +
		"/cancel - Abandon the lead you are entering\n" +
		"/ask <question> - Ask the assistant a question\n" +
		"/help - Show this help message"
	ExtractingReply      = "Okay, let me try to extract information from your message."
	NothingFoundReply    = "I couldn't find any clear lead information (name, email, phone) in your message. Please try again or use /newlead for step-by-step guidance."
	CancelledReply       = "Lead capture cancelled."
	NothingToCancelReply = "There is no lead capture in progress."
	AskUsageReply        = "Usage: /ask <question>"
	UnknownCommandReply  = "Sorry, I don't know that command. Use /help to see what I can do."
	ResponderErrorReply  = "Sorry, I can't answer that right now."
)

// LeadRouter forwards a finished record to the active CRM.
type LeadRouter interface {
	CRM() crm.Name
	CreateLeadOrContact(ctx context.Context, rec lead.Record) crm.Result
}

// EventPublisher records submission outcomes.
type EventPublisher interface {
	PublishLeadEvent(ctx context.Context, event *model.LeadEvent) (uint64, error)
}

// CaptureConfig configures a CaptureService.
type CaptureConfig struct {
	// LeadSource is stamped on every submitted record.
	LeadSource string
}

// CaptureService turns chat messages into CRM leads, either one question at
// a time or by extracting contact details from a single message.
type CaptureService struct {
	store     dialogue.Store
	router    LeadRouter
	events    EventPublisher
	responder llm.Responder
	cfg       CaptureConfig
	logger    *logger.Logger
	now       func() time.Time
}

// NewCaptureService creates a capture service. events may be nil; responder
// nil means the canned reply.
func NewCaptureService(
	store dialogue.Store,
	router LeadRouter,
	events EventPublisher,
	responder llm.Responder,
	cfg CaptureConfig,
	log *logger.Logger,
) *CaptureService {
	if cfg.LeadSource == "" {
		cfg.LeadSource = crm.DefaultLeadSource
	}
	if responder == nil {
		responder = llm.CannedResponder{}
	}

	return &CaptureService{
		store:     store,
		router:    router,
		events:    events,
		responder: responder,
		cfg:       cfg,
		logger:    log.Named("capture"),
		now:       time.Now,
	}
}

type transportKey struct{}

// WithTransport tags ctx with the name of the chat transport.
func WithTransport(ctx context.Context, transport string) context.Context {
	return context.WithValue(ctx, transportKey{}, transport)
}

func transportFrom(ctx context.Context) string {
	if t, ok := ctx.Value(transportKey{}).(string); ok && t != "" {
		return t
	}
	return "unknown"
}

// Handle processes one inbound message and returns the replies to send, in
// order. An error means the conversation store failed.
func (s *CaptureService) Handle(ctx context.Context, userID, text string) ([]string, error) {
	transport := transportFrom(ctx)
	log := s.logger.WithUser(transport, userID)

	if cmd, args, ok := parseCommand(text); ok {
		metrics.RecordChatMessage(transport, "command")
		log.Debug("command", zap.String("command", cmd))
		return s.handleCommand(ctx, log, userID, cmd, args)
	}

	state, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load dialogue state: %w", err)
	}

	if state.Active() {
		metrics.RecordChatMessage(transport, "guided")
		return s.handleStep(ctx, log, userID, state, text)
	}

	metrics.RecordChatMessage(transport, "oneshot")
	return s.handleOneShot(ctx, log, userID, text), nil
}

func (s *CaptureService) handleCommand(ctx context.Context, log *logger.Logger, userID, cmd, args string) ([]string, error) {
	switch cmd {
	case "start":
		if err := s.store.Delete(ctx, userID); err != nil {
			return nil, fmt.Errorf("reset dialogue state: %w", err)
		}
		return []string{GreetingReply}, nil

	case "help":
		return []string{HelpReply}, nil

	case "newlead":
		tr := dialogue.Start()
		if err := s.store.Put(ctx, userID, tr.Next); err != nil {
			return nil, fmt.Errorf("save dialogue state: %w", err)
		}
		log.Info("guided capture started")
		return []string{tr.Prompt}, nil

	case "cancel":
		state, err := s.store.Get(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("load dialogue state: %w", err)
		}
		if !state.Active() {
			return []string{NothingToCancelReply}, nil
		}
		if err := s.store.Delete(ctx, userID); err != nil {
			return nil, fmt.Errorf("reset dialogue state: %w", err)
		}
		log.Info("guided capture cancelled", zap.String("step", string(state.Step)))
		return []string{CancelledReply}, nil

	case "ask":
		if args == "" {
			return []string{AskUsageReply}, nil
		}
		answer, err := s.responder.Respond(ctx, args)
		if err != nil {
			log.Error("responder failed", zap.Error(err))
			return []string{ResponderErrorReply}, nil
		}
		return []string{answer}, nil

	default:
		return []string{UnknownCommandReply}, nil
	}
}

func (s *CaptureService) handleStep(ctx context.Context, log *logger.Logger, userID string, state dialogue.State, text string) ([]string, error) {
	tr := dialogue.Advance(state, text)

	if tr.Next.Active() {
		if err := s.store.Put(ctx, userID, tr.Next); err != nil {
			return nil, fmt.Errorf("save dialogue state: %w", err)
		}
	} else if err := s.store.Delete(ctx, userID); err != nil {
		return nil, fmt.Errorf("reset dialogue state: %w", err)
	}

	replies := []string{tr.Prompt}
	if tr.Complete {
		replies = append(replies, s.submit(ctx, log, userID, tr.Record, model.ModeGuided))
	}
	return replies, nil
}

func (s *CaptureService) handleOneShot(ctx context.Context, log *logger.Logger, userID, text string) []string {
	found := lead.Extract(text)
	if !found.Found() {
		log.Debug("no lead details found")
		return []string{ExtractingReply, NothingFoundReply}
	}

	summary := fmt.Sprintf("I found the following: \nName: %s\nEmail: %s\nPhone: %s\nAttempting to add this to CRM...",
		orNA(found.Name), orNA(found.Email), orNA(found.Phone))

	return []string{
		ExtractingReply,
		summary,
		s.submit(ctx, log, userID, found.Record(), model.ModeOneShot),
	}
}

// submit routes the record, records the outcome and returns the reply text.
func (s *CaptureService) submit(ctx context.Context, log *logger.Logger, userID string, rec lead.Record, mode model.CaptureMode) string {
	rec.LeadSource = s.cfg.LeadSource
	name := s.router.CRM()

	res := s.router.CreateLeadOrContact(ctx, rec)
	metrics.RecordLeadSubmission(string(name), string(mode), res.Success)

	if res.Success {
		log.Info("lead added",
			zap.String("crm", string(name)),
			zap.String("mode", string(mode)),
			zap.String("record_id", res.ID),
		)
	} else {
		log.Error("failed to add lead",
			zap.String("crm", string(name)),
			zap.String("mode", string(mode)),
			zap.String("reason", res.Message),
		)
	}

	s.publish(ctx, log, &model.LeadEvent{
		ID:        uuid.Must(uuid.NewV7()).String(),
		UserID:    userID,
		CRM:       string(name),
		Mode:      mode,
		Success:   res.Success,
		RecordID:  res.ID,
		Message:   res.Message,
		Lead:      rec,
		CreatedAt: s.now(),
	})

	return ResultReply(name, res)
}

func (s *CaptureService) publish(ctx context.Context, log *logger.Logger, event *model.LeadEvent) {
	if s.events == nil {
		return
	}
	seq, err := s.events.PublishLeadEvent(ctx, event)
	if err != nil {
		log.Warn("failed to publish lead event", zap.String("event_id", event.ID), zap.Error(err))
		return
	}
	log.Debug("lead event published", zap.String("event_id", event.ID), zap.Uint64("sequence", seq))
}

// ResultReply renders a submission outcome for the user.
func ResultReply(name crm.Name, res crm.Result) string {
	if res.Success {
		return fmt.Sprintf("Lead/Contact successfully added to %s! ID: %s", name, res.ID)
	}
	msg := res.Message
	if msg == "" {
		msg = "Unknown error"
	}
	return fmt.Sprintf("Failed to add lead/contact to %s. Reason: %s", name, msg)
}

// parseCommand splits "/cmd@bot args" into its lower-cased name and the
// trimmed argument text.
func parseCommand(text string) (cmd, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") || len(text) == 1 {
		return "", "", false
	}

	head, rest := text[1:], ""
	if i := strings.IndexFunc(head, unicode.IsSpace); i >= 0 {
		head, rest = head[:i], head[i:]
	}
	if at := strings.IndexByte(head, '@'); at >= 0 {
		head = head[:at]
	}
	if head == "" {
		return "", "", false
	}
	return strings.ToLower(head), strings.TrimSpace(rest), true
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
