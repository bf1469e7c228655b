package ws

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"chat-hub/domain/event"
	"chat-hub/services"
	"chat-hub/sink"
)

const (
	pongWait      = 60 * time.Second
	pingInterval  = 54 * time.Second
	writeWait     = 10 * time.Second
	maxFrameBytes = 4096
)

// Client pumps frames between one websocket connection and the chat service.
// Inbound frames are decoded and dispatched; outbound events are drained from
// the connection's buffered sink.
type Client struct {
	id      string
	conn    *websocket.Conn
	sink    *sink.BufferedSink
	service services.IChatService
	log     *slog.Logger
	done    chan struct{}
}

func NewClient(id string, conn *websocket.Conn, s *sink.BufferedSink,
	service services.IChatService, log *slog.Logger) *Client {
	conn.SetReadLimit(maxFrameBytes)
	return &Client{
		id:      id,
		conn:    conn,
		sink:    s,
		service: service,
		log:     log.With("conn_id", id),
		done:    make(chan struct{}),
	}
}

// ReadPump blocks until the connection dies, then triggers the disconnect
// path. Per-connection ordering is the read loop's ordering: commands are
// dispatched one at a time, in arrival order.
func (c *Client) ReadPump() {
	defer func() {
		c.service.Disconnect(c.id)
		c.sink.Close()
		close(c.done)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("Unexpected websocket close", "error", err)
			} else {
				c.log.Debug("Connection closed", "error", err)
			}
			return
		}

		cmd, err := DecodeCommand(raw)
		if err != nil {
			c.log.Debug("Rejected inbound frame", "error", err)
			// Transport-level rejection goes straight to the sink; the
			// coordinator never sees the malformed frame.
			_ = c.sink.Consume(event.Error{Message: err.Error()})
			continue
		}
		c.service.Handle(c.id, cmd)
	}
}

// WritePump drains the sink into the socket and keeps the connection alive
// with pings. It exits when the read side signals done or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case e := <-c.sink.Events():
			frame, err := EncodeEvent(e)
			if err != nil {
				c.log.Error("Failed to encode event", "event", e.EventName(), "error", err)
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("Write failed, closing connection", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
