package notify

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultarc/archive-backend/pkg/enums"
	"github.com/vaultarc/archive-backend/pkg/logger"
)

type stubPublisher struct {
	channels []string
	payloads []any
	err      error
}

func (s *stubPublisher) Publish(ctx context.Context, channel string, payload any) error {
	if s.err != nil {
		return s.err
	}
	s.channels = append(s.channels, channel)
	s.payloads = append(s.payloads, payload)
	return nil
}

func (s *stubPublisher) UnitChannel(unitID string) string {
	return "arc:unit:" + unitID
}

type stubSink struct {
	events []Event
	err    error
}

func (s *stubSink) Deliver(ctx context.Context, event Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel})
}

func TestDispatchBroadcastsToUnitChannel(t *testing.T) {
	publisher := &stubPublisher{}
	sink := &stubSink{}
	d, err := NewDispatcher(publisher, testLogger(), sink)
	require.NoError(t, err)

	unitID := uuid.New()
	d.Dispatch(context.Background(), Event{
		Kind:        "request.approved",
		RequestID:   uuid.New(),
		RequestType: enums.RequestTypeStorage,
		Status:      enums.RequestStatusApproved,
		UnitID:      unitID,
	})

	require.Len(t, publisher.channels, 1)
	assert.Equal(t, "arc:unit:"+unitID.String(), publisher.channels[0])
	require.Len(t, sink.events, 1)
	assert.Equal(t, "request.approved", sink.events[0].Kind)
	assert.False(t, sink.events[0].OccurredAt.IsZero())
}

func TestDispatchSwallowsDeliveryFailures(t *testing.T) {
	publisher := &stubPublisher{err: fmt.Errorf("redis down")}
	broken := &stubSink{err: fmt.Errorf("smtp down")}
	healthy := &stubSink{}
	d, err := NewDispatcher(publisher, testLogger(), broken, healthy)
	require.NoError(t, err)

	// Must not panic or propagate anything.
	d.Dispatch(context.Background(), Event{Kind: "request.created", UnitID: uuid.New()})

	require.Len(t, healthy.events, 1)
}

func TestDispatcherWorksWithoutPublisher(t *testing.T) {
	sink := &stubSink{}
	d, err := NewDispatcher(nil, testLogger(), sink)
	require.NoError(t, err)

	d.Dispatch(context.Background(), Event{Kind: "request.issued"})
	require.Len(t, sink.events, 1)
}
