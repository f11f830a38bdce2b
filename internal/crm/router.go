package crm

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/leadbot/crm-assistant/internal/lead"
	"github.com/leadbot/crm-assistant/pkg/logger"
	"github.com/leadbot/crm-assistant/pkg/metrics"
)

var tracer = otel.Tracer("github.com/leadbot/crm-assistant/internal/crm")

// Router dispatches lead records to the adapter selected at startup.
type Router struct {
	name    Name
	adapter Adapter
	logger  *logger.Logger
}

// NewRouter validates the configured CRM name and binds its adapter.
func NewRouter(name string, adapter Adapter, log *logger.Logger) (*Router, error) {
	n, err := ParseName(name)
	if err != nil {
		return nil, err
	}
	if adapter == nil {
		return nil, fmt.Errorf("no adapter for CRM %q", n)
	}
	if adapter.Name() != n {
		return nil, fmt.Errorf("adapter %q does not match configured CRM %q", adapter.Name(), n)
	}

	return &Router{
		name:    n,
		adapter: adapter,
		logger:  log.Named("crm"),
	}, nil
}

// CRM returns the active back-end name.
func (r *Router) CRM() Name {
	return r.name
}

// CreateLeadOrContact maps the record for the active CRM and forwards it.
// The adapter's result is returned unchanged.
func (r *Router) CreateLeadOrContact(ctx context.Context, rec lead.Record) Result {
	mapper, ok := MapperFor(r.name)
	if !ok {
		return Failed(fmt.Sprintf("CRM '%s' not supported.", r.name))
	}

	if !rec.HasContact() {
		r.logger.Warn("email and phone are both missing, CRM may reject or flag the record",
			zap.String("crm", string(r.name)),
		)
	}

	ctx, span := tracer.Start(ctx, "crm.CreateLeadOrContact")
	defer span.End()
	span.SetAttributes(attribute.String("crm.name", string(r.name)))

	start := time.Now()
	res := r.adapter.CreateRecord(ctx, mapper(rec))
	metrics.RecordCRMRequest(string(r.name), res.Success, time.Since(start).Seconds())

	if res.Success {
		span.SetAttributes(attribute.String("crm.record_id", res.ID))
	} else {
		span.SetStatus(codes.Error, res.Message)
	}

	return res
}
