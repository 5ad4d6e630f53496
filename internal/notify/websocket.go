package notify

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	clientBuffer   = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and streams hub messages to the browser
// until either side goes away. hello, if not nil, is sent first.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, hello *Message) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	id := uuid.NewString()
	ch := make(chan Message, clientBuffer)
	if hello != nil {
		ch <- *hello
	}
	if !h.Register(id, ch) {
		conn.Close()
		return
	}
	h.log.Debug().Str("client", id).Str("remote", r.RemoteAddr).Msg("Websocket client connected")

	go h.readLoop(conn, id)
	h.writeLoop(conn, ch)
}

// readLoop discards browser messages and keeps the read deadline alive with
// pongs. It unregisters the client when the connection ends.
func (h *Hub) readLoop(conn *websocket.Conn, id string) {
	defer func() {
		h.Unregister(id)
		conn.Close()
		h.log.Debug().Str("client", id).Msg("Websocket client disconnected")
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Warn().Err(err).Str("client", id).Msg("Websocket read error")
			}
			return
		}
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, ch <-chan Message) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-ch:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := msg.Marshal()
			if err != nil {
				h.log.Error().Err(err).Str("type", msg.Type).Msg("Failed to encode message")
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
