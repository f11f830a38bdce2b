package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/leadbot/crm-assistant/internal/model"
	"github.com/leadbot/crm-assistant/pkg/metrics"
)

const (
	// StreamName is the name of the lead events stream.
	StreamName = "LEADS"

	// SubjectPrefix is the prefix for all lead event subjects.
	SubjectPrefix = "leads"
)

// LeadStream publishes and replays lead submission events.
type LeadStream struct {
	client *Client
}

// NewLeadStream creates a new lead stream.
func NewLeadStream(client *Client) *LeadStream {
	return &LeadStream{client: client}
}

// EnsureStream creates the lead events stream when it does not exist.
func (s *LeadStream) EnsureStream(ctx context.Context) error {
	js := s.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = js.CreateStream(ctx, streamConfig())
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

func streamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "CRM lead submission outcomes",
	}
}

// LeadSubject returns the subject for an event: leads.<crm>.<created|failed>.
func LeadSubject(event *model.LeadEvent) string {
	crm := strings.ToLower(event.CRM)
	if crm == "" {
		crm = "unknown"
	}
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, crm, event.Outcome())
}

// CRMFilter returns the filter subject for every event of one CRM, or all
// events when crm is empty.
func CRMFilter(crm string) string {
	if crm == "" {
		return SubjectPrefix + ".>"
	}
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, strings.ToLower(crm))
}

// PublishLeadEvent publishes an event to JetStream.
func (s *LeadStream) PublishLeadEvent(ctx context.Context, event *model.LeadEvent) (uint64, error) {
	data, err := json.Marshal(event)
	if err != nil {
		metrics.RecordLeadEvent(false)
		return 0, fmt.Errorf("failed to marshal lead event: %w", err)
	}

	ack, err := s.client.JetStream().Publish(ctx, LeadSubject(event), data)
	if err != nil {
		metrics.RecordLeadEvent(false)
		return 0, fmt.Errorf("failed to publish lead event: %w", err)
	}

	metrics.RecordLeadEvent(true)
	return ack.Sequence, nil
}

// ListLeadEvents reads up to limit events after a stream sequence, optionally
// filtered by CRM.
func (s *LeadStream) ListLeadEvents(ctx context.Context, crm string, afterSequence uint64, limit int) (*model.ListLeadEventsResponse, error) {
	consumerConfig := jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{CRMFilter(crm)},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	}
	if afterSequence > 0 {
		consumerConfig.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		consumerConfig.OptStartSeq = afterSequence + 1
	}

	consumer, err := s.client.JetStream().OrderedConsumer(ctx, StreamName, consumerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch lead events: %w", err)
	}

	resp := &model.ListLeadEventsResponse{Events: []model.LeadEvent{}}
	for msg := range batch.Messages() {
		var event model.LeadEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			continue
		}

		if meta, err := msg.Metadata(); err == nil {
			event.Sequence = meta.Sequence.Stream
			resp.LastSequence = meta.Sequence.Stream
		}

		resp.Events = append(resp.Events, event)
	}

	if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, jetstream.ErrNoMessages) {
		return nil, fmt.Errorf("batch error: %w", err)
	}

	resp.HasMore = len(resp.Events) == limit
	return resp, nil
}
