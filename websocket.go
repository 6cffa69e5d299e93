package main

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// maxViewerMessage bounds what viewers may send us; they only send keepalives.
const maxViewerMessage = 4096

// upgrader converts HTTP requests to WebSocket connections.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsClient is a ClientHandle backed by a WebSocket connection.
//
// Frames go through a single-slot mailbox drained by writePump, so Send never
// waits on the network. A frame arriving while the slot is full is skipped.
type wsClient struct {
	id           string
	conn         *websocket.Conn
	writeTimeout time.Duration
	pingInterval time.Duration

	mailbox   chan []byte
	done      chan struct{}
	closeOnce sync.Once

	sent    atomic.Uint64
	skipped atomic.Uint64
}

func newWSClient(conn *websocket.Conn, writeTimeout, pingInterval time.Duration) *wsClient {
	return &wsClient{
		id:           uuid.NewString(),
		conn:         conn,
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		mailbox:      make(chan []byte, 1),
		done:         make(chan struct{}),
	}
}

func (c *wsClient) ID() string { return c.id }

// Send hands the frame to the writer without blocking.
func (c *wsClient) Send(frame *Frame) error {
	select {
	case <-c.done:
		return ErrSendFailed
	default:
	}
	select {
	case c.mailbox <- frame.Bytes:
		return nil
	default:
		c.skipped.Add(1)
		return ErrClientBusy
	}
}

// close stops the writer and closes the connection. Safe to call more than once.
func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.writeTimeout))
		c.conn.Close()
	})
}

// writePump is the only goroutine that writes data messages to conn.
// A write that fails or exceeds the write timeout closes the client.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.mailbox:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				debugLog("Error sending frame to %s: %v", c.id, err)
				return
			}
			c.sent.Add(1)
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout)); err != nil {
				debugLog("Ping to %s failed: %v", c.id, err)
				return
			}
		}
	}
}

// handleWebSocket runs one viewer session for the lifetime of the connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Upgrade HTTP connection to WebSocket.
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		errorLog("Error upgrading to WebSocket: %v", err)
		return
	}

	client := newWSClient(conn, s.cfg.WriteTimeout, s.cfg.PingInterval)
	session := NewViewerSession(client, s.relay.registry, s.relay.store, s.cfg.CatchUpWindow)
	go client.writePump()

	if err := session.OnOpen(); err != nil {
		client.close()
		session.OnError(err)
		return
	}
	infoLog("Client connected: %s (%s). Total clients: %d", client.id, conn.RemoteAddr(), s.relay.registry.Size())

	readWait := 2 * s.cfg.PingInterval
	conn.SetReadLimit(maxViewerMessage)
	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	// Keep the connection open until the viewer goes away.
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			client.close()
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				session.OnError(err)
			} else {
				session.OnClose()
			}
			infoLog("Client disconnected: %s (sent %d, skipped %d). Total clients: %d",
				client.id, client.sent.Load(), client.skipped.Load(), s.relay.registry.Size())
			return
		}
		debugLog("Received message from WebSocket client %s: %s", client.id, string(msg))
	}
}
