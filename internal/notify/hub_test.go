package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestHubBroadcastAndUnregister(t *testing.T) {
	defer goleak.VerifyNone(t)

	var count atomic.Int32
	hub := NewHub(zerolog.Nop(), func(n int) { count.Store(int32(n)) })
	defer hub.Stop()

	a := make(chan Message, 4)
	b := make(chan Message, 4)
	require.True(t, hub.Register("a", a))
	require.True(t, hub.Register("b", b))
	assert.Equal(t, 2, hub.Count())
	assert.Equal(t, int32(2), count.Load())

	hub.Broadcast(NewMessage(TypeNotification, map[string]any{"level": "success"}))
	for _, ch := range []chan Message{a, b} {
		select {
		case msg := <-ch:
			assert.Equal(t, TypeNotification, msg.Type)
		case <-time.After(time.Second):
			t.Fatal("broadcast not delivered")
		}
	}

	hub.Unregister("a")
	assert.Equal(t, 1, hub.Count())
	assert.Equal(t, int32(1), count.Load())
	_, ok := <-a
	assert.False(t, ok)

	hub.Unregister("missing")
	assert.Equal(t, 1, hub.Count())
}

func TestHubDropsForSlowClient(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub(zerolog.Nop(), nil)
	defer hub.Stop()

	slow := make(chan Message, 1)
	require.True(t, hub.Register("slow", slow))

	hub.Broadcast(NewMessage(TypeState, 1))
	hub.Broadcast(NewMessage(TypeState, 2))
	hub.Broadcast(NewMessage(TypeState, 3))

	msg := <-slow
	assert.Equal(t, 1, msg.Data)
	select {
	case extra := <-slow:
		assert.NotEqual(t, 1, extra.Data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubStopClosesClients(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub(zerolog.Nop(), nil)
	ch := make(chan Message, 1)
	require.True(t, hub.Register("c", ch))

	hub.Stop()
	_, ok := <-ch
	assert.False(t, ok)

	assert.False(t, hub.Register("late", make(chan Message, 1)))
	hub.Unregister("late")
	hub.Stop()
}

func TestServeWS(t *testing.T) {
	hub := NewHub(zerolog.Nop(), nil)
	defer hub.Stop()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hello := NewMessage(TypeState, map[string]any{"online": true})
		hub.ServeWS(w, r, &hello)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first map[string]any
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &first))
	assert.Equal(t, TypeState, first["type"])

	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)
	hub.Broadcast(NewMessage(TypeReload, map[string]any{"after_ms": 3000}))

	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, TypeReload, msg.Type)
	assert.Equal(t, map[string]any{"after_ms": float64(3000)}, msg.Data)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Count() == 0 }, time.Second, 5*time.Millisecond)
}
