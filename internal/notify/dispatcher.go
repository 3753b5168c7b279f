// Package notify delivers workflow events to interested parties after the
// transition that produced them has committed. Delivery is fire-and-forget:
// a failed notification is logged and counted, never surfaced to the actor
// whose transition already succeeded.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/vaultarc/archive-backend/pkg/enums"
	"github.com/vaultarc/archive-backend/pkg/logger"
)

// Event is one workflow occurrence worth telling someone about.
type Event struct {
	Kind        string              `json:"kind"`
	RequestID   uuid.UUID           `json:"request_id"`
	RequestType enums.RequestType   `json:"request_type"`
	Status      enums.RequestStatus `json:"status"`
	UnitID      uuid.UUID           `json:"unit_id"`
	CrateID     uuid.UUID           `json:"crate_id"`
	ActorID     uuid.UUID           `json:"actor_id"`
	Message     string              `json:"message"`
	OccurredAt  time.Time           `json:"occurred_at"`
}

// Publisher pushes an event payload onto a named channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
	UnitChannel(unitID string) string
}

// Sink is one delivery mechanism fan-out target.
type Sink interface {
	Deliver(ctx context.Context, event Event) error
}

// Dispatcher fans events out to every registered sink plus the unit's
// realtime broadcast channel.
type Dispatcher struct {
	publisher Publisher
	sinks     []Sink
	logg      *logger.Logger
}

// NewDispatcher builds a dispatcher. Publisher may be nil in tests; events
// then go only to registered sinks.
func NewDispatcher(publisher Publisher, logg *logger.Logger, sinks ...Sink) (*Dispatcher, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Dispatcher{publisher: publisher, sinks: sinks, logg: logg}, nil
}

// Dispatch delivers the event everywhere it should go. Errors from individual
// targets are combined and logged; the caller never fails because of them.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	var errs []error
	if d.publisher != nil {
		payload, err := json.Marshal(event)
		if err != nil {
			errs = append(errs, fmt.Errorf("encode event: %w", err))
		} else {
			channel := d.publisher.UnitChannel(event.UnitID.String())
			if err := d.publisher.Publish(ctx, channel, payload); err != nil {
				errs = append(errs, fmt.Errorf("broadcast to %s: %w", channel, err))
			}
		}
	}
	for _, sink := range d.sinks {
		if err := sink.Deliver(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}

	if combined := multierr.Combine(errs...); combined != nil {
		d.logg.Warn(ctx, fmt.Sprintf("notification delivery incomplete for request %s: %v", event.RequestID, combined))
	}
}

// DispatchAsync delivers on a fresh goroutine with a bounded deadline,
// detached from the request context so an HTTP response finishing first
// cannot cancel delivery.
func (d *Dispatcher) DispatchAsync(event Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		d.Dispatch(ctx, event)
	}()
}
