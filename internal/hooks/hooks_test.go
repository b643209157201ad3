package hooks

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soyeahso/funnelbot/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager() *Manager {
	return NewManager(logging.New(nil, "silent"))
}

func noop(context.Context, Payload) error { return nil }

func TestManager_EmitRunsHandlersInOrder(t *testing.T) {
	m := testManager()

	var order []string
	m.On(EventMessageReceived, "audit", func(_ context.Context, p Payload) error {
		assert.Equal(t, EventMessageReceived, p.Event)
		order = append(order, "audit")
		return nil
	})
	m.On(EventMessageReceived, "metrics", func(context.Context, Payload) error {
		order = append(order, "metrics")
		return nil
	})

	m.Emit(context.Background(), EventMessageReceived, nil)
	assert.Equal(t, []string{"audit", "metrics"}, order)
}

func TestManager_EmitPassesData(t *testing.T) {
	m := testManager()

	var got map[string]any
	m.On(EventAgentSelected, "capture", func(_ context.Context, p Payload) error {
		got = p.Data
		return nil
	})

	m.Emit(context.Background(), EventAgentSelected, map[string]any{"agentId": "sales", "chatId": "c1"})
	assert.Equal(t, map[string]any{"agentId": "sales", "chatId": "c1"}, got)
}

func TestManager_ErrorsAndPanicsDoNotStopOthers(t *testing.T) {
	m := testManager()

	var reached int
	m.On(EventConnectionState, "fails", func(context.Context, Payload) error { return errors.New("broken") })
	m.On(EventConnectionState, "panics", func(context.Context, Payload) error { panic("boom") })
	m.On(EventConnectionState, "last", func(context.Context, Payload) error {
		reached++
		return nil
	})

	assert.NotPanics(t, func() { m.Emit(context.Background(), EventConnectionState, nil) })
	assert.Equal(t, 1, reached)
}

func TestManager_EmitWithoutHandlers(t *testing.T) {
	assert.NotPanics(t, func() { testManager().Emit(context.Background(), EventGatewayStop, nil) })
}

func TestManager_Off(t *testing.T) {
	m := testManager()

	var removed, kept int
	m.On(EventGatewayStart, "temp", func(context.Context, Payload) error { removed++; return nil })
	m.On(EventGatewayStart, "stay", func(context.Context, Payload) error { kept++; return nil })

	m.Emit(context.Background(), EventGatewayStart, nil)
	m.Off(EventGatewayStart, "temp")
	m.Emit(context.Background(), EventGatewayStart, nil)

	assert.Equal(t, 1, removed)
	assert.Equal(t, 2, kept)
	assert.Equal(t, 1, m.Count(EventGatewayStart))

	m.Off(EventGatewayStart, "stay")
	assert.Empty(t, m.Events())
}

func TestManager_EmitAsync(t *testing.T) {
	m := testManager()

	var count atomic.Int32
	var wg sync.WaitGroup
	wg.Add(2)
	for _, name := range []string{"a", "b"} {
		m.On(EventMessageSending, name, func(context.Context, Payload) error {
			defer wg.Done()
			count.Add(1)
			return nil
		})
	}

	m.EmitAsync(context.Background(), EventMessageSending, nil)

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async handlers did not complete in time")
	}
	assert.Equal(t, int32(2), count.Load())
}

func TestManager_CountAndEvents(t *testing.T) {
	m := testManager()
	assert.Zero(t, m.Count(EventGatewayStart))

	m.On(EventGatewayStart, "h1", noop)
	m.On(EventGatewayStart, "h2", noop)
	m.On(EventMessageReceived, "h3", noop)

	assert.Equal(t, 2, m.Count(EventGatewayStart))
	assert.Equal(t, []string{EventGatewayStart, EventMessageReceived}, m.Events())
}

func TestManager_LogEvents(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(&buf, "debug")

	m := testManager()
	m.LogEvents(log)
	for _, event := range AllEvents {
		require.Equal(t, 1, m.Count(event), event)
	}

	m.Emit(context.Background(), EventAgentSelected, map[string]any{"agentName": "Ventas"})
	assert.Contains(t, buf.String(), `"event":"agent_selected"`)
	assert.Contains(t, buf.String(), `"agentName":"Ventas"`)
}
