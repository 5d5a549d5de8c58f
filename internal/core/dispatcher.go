package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Event is a control-plane notification: quota alerts, lifecycle
// changes, scaling actions, invoice generation.
type Event struct {
	Type     string         `json:"type"`
	TenantID string         `json:"tenant_id"`
	Kind     string         `json:"resource_kind,omitempty"`
	Detail   map[string]any `json:"detail,omitempty"`
	At       time.Time      `json:"at"`
}

// Event types emitted by the services.
const (
	EventTenantCreated       = "tenant.created"
	EventTenantStatusChanged = "tenant.status_changed"
	EventQuotaAlert          = "quota.alert"
	EventQuotaExceeded       = "quota.exceeded"
	EventGrantAllocated      = "grant.allocated"
	EventGrantDeallocated    = "grant.deallocated"
	EventScalingApplied      = "scaling.applied"
	EventInvoiceGenerated    = "invoice.generated"
)

// Notifier delivers a single event to an external sink.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// LogNotifier writes events to the structured log. It is the default
// sink when no external notifier is configured.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) Notify(_ context.Context, e Event) error {
	n.Logger.Info().
		Str("event", e.Type).
		Str("tenant_id", e.TenantID).
		Str("resource_kind", e.Kind).
		Fields(e.Detail).
		Time("at", e.At).
		Msg("control plane event")
	return nil
}

// Dispatcher is an async event writer. Services enqueue without
// blocking; a single drain goroutine delivers to the notifier with a
// small bounded retry. A full buffer drops the event and logs it, so a
// slow sink can never stall admission or allocation.
type Dispatcher struct {
	notifier Notifier
	logger   zerolog.Logger
	ch       chan Event
	done     chan struct{}
}

func NewDispatcher(notifier Notifier, logger zerolog.Logger) *Dispatcher {
	d := &Dispatcher{
		notifier: notifier,
		logger:   logger,
		ch:       make(chan Event, 1024),
		done:     make(chan struct{}),
	}
	go d.drain()
	return d
}

func (d *Dispatcher) drain() {
	defer close(d.done)
	for e := range d.ch {
		var err error
		for attempt := 0; attempt < 3; attempt++ {
			// context.Background since delivery is async
			if err = d.notifier.Notify(context.Background(), e); err == nil {
				break
			}
			time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
		}
		if err != nil {
			d.logger.Error().Err(err).Str("event", e.Type).Str("tenant_id", e.TenantID).
				Msg("failed to deliver event, giving up")
		}
	}
}

// Emit enqueues an event. At is stamped if unset.
func (d *Dispatcher) Emit(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	select {
	case d.ch <- e:
	default:
		d.logger.Warn().Str("event", e.Type).Msg("event buffer full, dropping")
	}
}

// Close stops intake and waits for queued events to be delivered.
func (d *Dispatcher) Close() {
	close(d.ch)
	<-d.done
}
