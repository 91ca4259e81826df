package server

import (
	"net"
	"sync"

	"github.com/atriumhq/atrium/pkg/protocol"
)

// mockConn records every event sent to it, standing in for a real
// WebSocket connection.
type mockConn struct {
	mu     sync.Mutex
	events []protocol.Event
	closed bool
}

func newMockConn() *mockConn {
	return &mockConn{}
}

func (c *mockConn) SendEvent(ev protocol.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return net.ErrClosed
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *mockConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *mockConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *mockConn) allEvents() []protocol.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Event(nil), c.events...)
}

func (c *mockConn) eventsOfType(eventType string) []protocol.Event {
	var out []protocol.Event
	for _, ev := range c.allEvents() {
		if ev.EventType() == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func (c *mockConn) countOfType(eventType string) int {
	return len(c.eventsOfType(eventType))
}

func (c *mockConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}
