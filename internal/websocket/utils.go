package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// Clients ping well inside this window while an attempt is open.
	readWait = 5 * time.Minute
	// MaxMessageSize bounds a single client frame.
	MaxMessageSize = 4096
)

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func WriteError(conn *websocket.Conn, code, errMsg string, fields map[string]string) error {
	return WriteTyped(conn, ErrorResponse{
		Event:  EventError,
		Code:   code,
		Error:  errMsg,
		Fields: fields,
	})
}

// ReadMessage reads one text frame, resetting the read deadline.
func ReadMessage(conn *websocket.Conn) ([]byte, error) {
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	_, data, err := conn.ReadMessage()
	return data, err
}

// Close sends a normal close frame and closes the connection.
func Close(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = conn.Close()
}
