package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/blinkchat/blink-backend/internal/chat"
	"github.com/blinkchat/blink-backend/internal/middleware"
	"github.com/blinkchat/blink-backend/internal/services"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	wsReadLimit     = 64 * 1024
	wsReadDeadline  = 90 * time.Second
	wsWriteDeadline = 10 * time.Second
	wsSendBuffer    = 64
)

var chatUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS for WebSocket is handled at the HTTP layer already.
		return true
	},
}

// wsClient wraps a WebSocket connection behind a buffered send queue so that
// pushes from HTTP handler goroutines never interleave writes on the socket.
// It satisfies chat.Conn.
type wsClient struct {
	conn *websocket.Conn
	send chan any
	done chan struct{}
	once sync.Once
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{
		conn: conn,
		send: make(chan any, wsSendBuffer),
		done: make(chan struct{}),
	}
}

// WriteJSON enqueues an event for delivery. A full queue means the client has
// stopped draining; the event is dropped rather than blocking the caller. The
// send channel is never closed, so late pushes racing a disconnect are safe.
func (c *wsClient) WriteJSON(v any) error {
	select {
	case c.send <- v:
		return nil
	case <-c.done:
		return websocket.ErrCloseSent
	default:
		return websocket.ErrCloseSent
	}
}

// writePump drains the send queue onto the socket until close.
func (c *wsClient) writePump() {
	for {
		select {
		case v := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline))
			if err := c.conn.WriteJSON(v); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// ChatWebSocket upgrades the request and binds the connection to the caller's
// presence entry. Authentication uses the same session token as the HTTP API;
// browser WebSocket clients pass it via the token query parameter.
func ChatWebSocket(w http.ResponseWriter, r *http.Request) {
	token := middleware.ExtractToken(r)
	if token == "" {
		http.Error(w, "Unauthorized - No Token Provided", http.StatusUnauthorized)
		return
	}
	userID, ok := services.ValidateSession(r.Context(), token)
	if !ok {
		http.Error(w, "Unauthorized - Invalid Token", http.StatusUnauthorized)
		return
	}

	conn, err := chatUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := newWSClient(conn)
	go client.writePump()

	// The request context dies with the upgrade; presence broadcasts need a
	// context that outlives it.
	ctx := context.Background()
	selfID := userID.Hex()
	chatRouter.Connect(ctx, selfID, client)
	defer func() {
		chatRouter.Disconnect(ctx, selfID, client)
		client.close()
	}()

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var sig chat.ClientSignal
		if err := json.Unmarshal(data, &sig); err != nil {
			continue
		}
		if !sig.Valid() {
			continue
		}

		switch sig.Type {
		case chat.SignalTyping, chat.SignalStopTyping:
			// Receiver ids come straight off the wire; a malformed id is
			// dropped since the protocol has no error channel.
			if _, err := primitive.ObjectIDFromHex(sig.ReceiverID); err != nil {
				continue
			}
			if sig.Type == chat.SignalTyping {
				chatRouter.Typing(selfID, sig.ReceiverID)
			} else {
				chatRouter.StopTyping(selfID, sig.ReceiverID)
			}
		case chat.SignalPing:
			_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		}
	}
}
