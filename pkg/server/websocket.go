package server

import (
	"log"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/atriumhq/atrium/pkg/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Browser clients connect from the web app's origin; origin policy
		// is enforced by the deployment's reverse proxy.
		return true
	},
}

// ClientConn wraps a WebSocket connection with write synchronization, so
// broadcasts from different goroutines never interleave frames.
type ClientConn struct {
	ws     *websocket.Conn
	mu     sync.Mutex
	closed bool
}

// NewClientConn wraps an upgraded WebSocket connection.
func NewClientConn(ws *websocket.Conn) *ClientConn {
	return &ClientConn{ws: ws}
}

// SendEvent encodes an event and writes it as a single text frame.
func (c *ClientConn) SendEvent(ev protocol.Event) error {
	data, err := protocol.EncodeEvent(ev)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return net.ErrClosed
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close closes the underlying connection. Safe to call more than once.
func (c *ClientConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.ws.Close()
}

// HandleWebSocket upgrades an HTTP request and runs the connection's read
// loop until the client goes away.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	conn := NewClientConn(ws)
	sess := s.sessions.CreateSession(conn)
	log.Printf("client connected: %s (from %s)", sess.ID, ws.RemoteAddr())

	go s.readLoop(sess, ws)
}

// readLoop consumes frames from one connection, dispatching each to
// completion before reading the next, and cleans up on disconnect.
func (s *Server) readLoop(sess *Session, ws *websocket.Conn) {
	defer s.disconnect(sess)

	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			debugLog.Printf("session %s read loop ended: %v", sess.ID, err)
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		s.dispatch(sess, data)
	}
}
