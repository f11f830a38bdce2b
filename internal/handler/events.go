package handler

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/leadbot/crm-assistant/internal/middleware"
	"github.com/leadbot/crm-assistant/internal/model"
	"github.com/leadbot/crm-assistant/pkg/logger"
)

// EventLister reads lead events from the event stream.
type EventLister interface {
	ListLeadEvents(ctx context.Context, crm string, afterSequence uint64, limit int) (*model.ListLeadEventsResponse, error)
}

// EventHandler serves the lead event history.
type EventHandler struct {
	events EventLister
	logger *logger.Logger
}

// NewEventHandler creates a new event handler.
func NewEventHandler(events EventLister, log *logger.Logger) *EventHandler {
	return &EventHandler{
		events: events,
		logger: log.Named("events"),
	}
}

// List handles GET /api/v1/leads/events
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	crmName := q.Get("crm")
	if err := middleware.ValidateCRMFilter(crmName); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	afterSequence := uint64(0)
	if seq := q.Get("after_sequence"); seq != "" {
		parsed, err := strconv.ParseUint(seq, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid after_sequence")
			return
		}
		afterSequence = parsed
	}

	limit := 50
	if l := q.Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if err := middleware.ValidateLimit(parsed); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		limit = parsed
	}

	resp, err := h.events.ListLeadEvents(r.Context(), crmName, afterSequence, limit)
	if err != nil {
		h.logger.Error("failed to list lead events", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list lead events")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
