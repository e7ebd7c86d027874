package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

// DefaultWriteTimeout bounds a single websocket send
const DefaultWriteTimeout = 10 * time.Second

// WebsocketChannel delivers notifications as text frames over a websocket
type WebsocketChannel struct {
	id           string
	conn         *websocket.Conn
	writeTimeout time.Duration
}

// NewWebsocketChannel wraps an accepted connection
func NewWebsocketChannel(conn *websocket.Conn, writeTimeout time.Duration) *WebsocketChannel {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &WebsocketChannel{
		id:           uuid.NewString(),
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

// ID implements Channel
func (c *WebsocketChannel) ID() string {
	return c.id
}

// Send implements Channel
func (c *WebsocketChannel) Send(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	if err := c.conn.Write(ctx, websocket.MessageText, msg); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

// Serve accepts a websocket upgrade for ownerID, registers it with the hub
// and reads until the client goes away. Incoming messages are discarded.
func Serve(w http.ResponseWriter, r *http.Request, hub *Hub, ownerID string, writeTimeout time.Duration) error {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket accept: %w", err)
	}
	defer func() { _ = conn.CloseNow() }()

	ch := NewWebsocketChannel(conn, writeTimeout)
	hub.Register(ownerID, ch)
	defer hub.Unregister(ownerID, ch)

	ctx := r.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
				errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("websocket read: %w", err)
		}
	}
}
