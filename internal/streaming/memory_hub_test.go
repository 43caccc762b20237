package streaming

import (
	"context"
	"testing"
	"time"

	"github.com/rendis/evoflow/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryHubPublishSubscribe(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel()

	event := TelemetryEvent{
		ExecutionID: "ex1",
		WorkflowID:  "wf",
		EventType:   schema.EventStepStart,
	}
	require.NoError(t, hub.Publish(ctx, event))

	select {
	case got := <-ch:
		assert.Equal(t, event, got)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestMemoryHubFiltersByExecutionID(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{ExecutionID: "wanted"})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, TelemetryEvent{ExecutionID: "other", EventType: schema.EventStepStart}))
	require.NoError(t, hub.Publish(ctx, TelemetryEvent{ExecutionID: "wanted", EventType: schema.EventStepComplete}))

	select {
	case got := <-ch:
		assert.Equal(t, "wanted", got.ExecutionID)
		assert.Equal(t, schema.EventStepComplete, got.EventType)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
	assert.Empty(t, ch)
}

func TestMemoryHubFiltersByEventType(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{
		EventTypes: []string{schema.EventWorkflowComplete},
	})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, TelemetryEvent{EventType: schema.EventStepStart}))
	require.NoError(t, hub.Publish(ctx, TelemetryEvent{EventType: schema.EventWorkflowComplete}))

	got := <-ch
	assert.Equal(t, schema.EventWorkflowComplete, got.EventType)
	assert.Empty(t, ch)
}

func TestMemoryHubDropsWhenSubscriberIsFull(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel()

	// Publish never blocks, even past the channel buffer.
	for i := 0; i < defaultChannelBuffer*2; i++ {
		require.NoError(t, hub.Publish(ctx, TelemetryEvent{EventType: schema.EventStepStart}))
	}
	assert.Len(t, ch, defaultChannelBuffer)
}

func TestMemoryHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)

	cancel()
	require.NoError(t, hub.Publish(ctx, TelemetryEvent{EventType: schema.EventStepStart}))
	assert.Empty(t, ch)
}
