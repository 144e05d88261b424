package eventbus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/canvasblocks/pkg/channels/gochannel"
	"github.com/dukex/canvasblocks/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus(t *testing.T) EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateSyncChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	bus := newBus(t)
	received := make(chan any, 1)

	require.NoError(t, bus.Handle(events.RunFinishedEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	}))
	require.NoError(t, bus.Subscribe(t.Context()))

	published := events.RunFinished{
		BaseEvent: events.NewBaseEvent(events.RunFinishedEvent, "exec-1", "main.canvas"),
		Executed:  []string{"a", "b"},
	}
	require.NoError(t, bus.Publish(t.Context(), "main.canvas", published))

	select {
	case event := <-received:
		finished, ok := event.(*events.RunFinished)
		require.True(t, ok)
		assert.Equal(t, "exec-1", finished.ExecutionID)
		assert.Equal(t, []string{"a", "b"}, finished.Executed)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_UnhandledTypesAreAcked(t *testing.T) {
	bus := newBus(t)
	received := make(chan any, 1)

	require.NoError(t, bus.Handle(events.ScriptFailedEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	}))
	require.NoError(t, bus.Subscribe(t.Context()))

	require.NoError(t, bus.Publish(t.Context(), "main.canvas", events.ScriptStarted{
		BaseEvent: events.NewBaseEvent(events.ScriptStartedEvent, "exec-1", "main.canvas"),
		ScriptID:  "a",
	}))
	require.NoError(t, bus.Publish(t.Context(), "main.canvas", events.ScriptFailed{
		BaseEvent: events.NewBaseEvent(events.ScriptFailedEvent, "exec-1", "main.canvas"),
		ScriptID:  "a",
		Error:     "boom",
	}))

	select {
	case event := <-received:
		failed, ok := event.(*events.ScriptFailed)
		require.True(t, ok)
		assert.Equal(t, "boom", failed.Error)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_RejectsNilHandler(t *testing.T) {
	bus := newBus(t)

	assert.ErrorIs(t, bus.Handle(events.RunStartedEvent, nil), ErrNilHandler)
}

var errHandler = errors.New("handler failed")

func TestWatermillEventBus_HandlerErrorNacks(t *testing.T) {
	bus := newBus(t)
	attempts := make(chan struct{}, 4)

	require.NoError(t, bus.Handle(events.RunStartedEvent, func(context.Context, any) error {
		select {
		case attempts <- struct{}{}:
		default:
		}

		return errHandler
	}))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	go func() {
		_ = bus.Publish(ctx, "main.canvas", events.RunStarted{
			BaseEvent: events.NewBaseEvent(events.RunStartedEvent, "exec-1", "main.canvas"),
		})
	}()

	for range 2 {
		select {
		case <-attempts:
		case <-time.After(5 * time.Second):
			t.Fatal("nacked event was not redelivered")
		}
	}
}
