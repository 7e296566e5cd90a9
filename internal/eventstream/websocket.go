package eventstream

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteWait = 10 * time.Second

// WSMessage is the JSON shape of an event on the WebSocket mirror.
type WSMessage struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Success bool   `json:"success,omitempty"`
}

// NewWSMessage converts an event to its WebSocket form.
func NewWSMessage(e Event) WSMessage {
	msg := WSMessage{Kind: e.Kind, Message: e.Message(), Success: e.Success}
	if e.Kind == KindTerminal {
		msg.Detail = e.Text
	}
	return msg
}

// WSWriter sends events as JSON text messages. Heartbeats are sent as ping
// control frames.
type WSWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSWriter wraps an upgraded connection.
func NewWSWriter(conn *websocket.Conn) *WSWriter {
	return &WSWriter{conn: conn}
}

// Send writes one event. An error means the peer is gone.
func (w *WSWriter) Send(e Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	deadline := time.Now().Add(wsWriteWait)
	if e.Kind == KindHeartbeat {
		return w.conn.WriteControl(websocket.PingMessage, nil, deadline)
	}
	if err := w.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return w.conn.WriteJSON(NewWSMessage(e))
}

// Close sends a normal closure frame and closes the connection.
func (w *WSWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
		time.Now().Add(wsWriteWait))
	return w.conn.Close()
}
