// Package handler provides the HTTP handlers of the chat webhook.
package handler

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/leadbot/crm-assistant/internal/middleware"
	"github.com/leadbot/crm-assistant/internal/model"
	"github.com/leadbot/crm-assistant/internal/service"
	"github.com/leadbot/crm-assistant/pkg/logger"
)

// Transport is the transport label used for webhook messages.
const Transport = "http"

// MessageProcessor handles one chat message and returns the replies.
type MessageProcessor interface {
	Handle(ctx context.Context, userID, text string) ([]string, error)
}

// MessageHandler handles the message webhook.
type MessageHandler struct {
	processor MessageProcessor
	logger    *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(processor MessageProcessor, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		processor: processor,
		logger:    log.Named("webhook"),
	}
}

// Send handles POST /api/v1/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.InboundMessage
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID := req.UserID
	if userID == "" {
		userID = middleware.GetUserID(ctx)
	}
	if err := middleware.ValidateUserID(userID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateMessageText(req.Text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	middleware.SetLogUser(ctx, userID)

	replies, err := h.processor.Handle(service.WithTransport(ctx, Transport), userID, req.Text)
	if err != nil {
		h.logger.Error("failed to handle message",
			zap.String("user_id", userID),
			zap.String("correlation_id", middleware.GetCorrelationID(ctx)),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to handle message")
		return
	}

	writeJSON(w, http.StatusOK, model.ReplyResponse{
		UserID:  userID,
		Replies: replies,
	})
}
