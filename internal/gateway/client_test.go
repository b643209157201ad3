package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/funnelbot/internal/logging"
)

// wsPair returns a server-side Client and the browser end of its socket.
func wsPair(t *testing.T) (*Client, *websocket.Conn) {
	t.Helper()
	log := logging.New(nil, "silent")
	clients := make(chan *Client, 1)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			return
		}
		clients <- NewClient(conn, r.RemoteAddr, log)
	}))
	t.Cleanup(ts.Close)

	browser, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { browser.Close() })

	select {
	case c := <-clients:
		t.Cleanup(func() { c.Close() })
		return c, browser
	case <-time.After(5 * time.Second):
		t.Fatal("no client")
		return nil, nil
	}
}

func TestClient_SendEvent(t *testing.T) {
	c, browser := wsPair(t)
	assert.NotEmpty(t, c.ConnID)

	require.NoError(t, c.SendEvent(EventConnectionStatus, map[string]string{"state": "pairing"}, 7))

	require.NoError(t, browser.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame Frame
	require.NoError(t, browser.ReadJSON(&frame))
	assert.Equal(t, FrameTypeEvent, frame.Type)
	assert.Equal(t, int64(7), frame.Seq)
	assert.JSONEq(t, `{"state":"pairing"}`, string(frame.Payload))
}

func TestClient_SendAfterClose(t *testing.T) {
	c, browser := wsPair(t)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "close is idempotent")
	assert.ErrorIs(t, c.Send(Frame{Type: FrameTypeEvent}), ErrClientClosed)

	require.NoError(t, browser.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := browser.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestNewEvent(t *testing.T) {
	f, err := NewEvent("x", map[string]int{"n": 1}, 3)
	require.NoError(t, err)
	assert.Equal(t, FrameTypeEvent, f.Type)
	assert.Equal(t, "x", f.Event)
	assert.JSONEq(t, `{"n":1}`, string(f.Payload))

	_, err = NewEvent("bad", make(chan int), 1)
	assert.Error(t, err)
}

func TestClientRegistry(t *testing.T) {
	reg := NewClientRegistry(logging.New(nil, "silent"))
	c, browser := wsPair(t)

	reg.Add(c)
	assert.Equal(t, 1, reg.Count())

	reg.Broadcast(EventConnectionStatus, StatusResponse{State: "connected", Connected: true}, 1)
	require.NoError(t, browser.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame Frame
	require.NoError(t, browser.ReadJSON(&frame))
	assert.Equal(t, EventConnectionStatus, frame.Event)

	reg.Remove(c.ConnID)
	assert.Equal(t, 0, reg.Count())

	reg.Add(c)
	reg.CloseAll()
	assert.Equal(t, 0, reg.Count())
	assert.ErrorIs(t, c.Send(Frame{}), ErrClientClosed)
}
