package server

import (
	"sync"

	"github.com/google/uuid"

	"github.com/atriumhq/atrium/pkg/protocol"
)

// EventSender delivers outbound events to a single client connection.
// Implementations must be safe for concurrent use; the real implementation
// is ClientConn, tests substitute an in-memory recorder.
type EventSender interface {
	SendEvent(ev protocol.Event) error
	Close() error
}

// Session is the ephemeral per-connection record. It exists exactly as
// long as the underlying transport connection. The connection id is
// generated server-side and is independent of any transport identifier.
type Session struct {
	ID   string
	Conn EventSender

	mu          sync.RWMutex
	userID      string
	name        string
	avatarColor string
	room        string // empty while not in any room
	role        string
	x, y        float64
}

// Roles granted at room join time.
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// Default spawn point for members whose position has not been broadcast yet.
const (
	SpawnX = 400
	SpawnY = 300
)

// Identity returns the user id and display name.
func (s *Session) Identity() (userID, name string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID, s.name
}

// AvatarColor returns the display color chosen at join time.
func (s *Session) AvatarColor() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.avatarColor
}

// Room returns the currently joined room id, or "" if none.
func (s *Session) Room() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.room
}

// Role returns the role granted for the current room.
func (s *Session) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

// Position returns the last broadcast avatar position.
func (s *Session) Position() (x, y float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.x, s.y
}

func (s *Session) setPosition(x, y float64) {
	s.mu.Lock()
	s.x, s.y = x, y
	s.mu.Unlock()
}

// PlayerID is the identity used in presence events: the user id when the
// connection has identified, otherwise the connection id.
func (s *Session) PlayerID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.userID != "" {
		return s.userID
	}
	return s.ID
}

// DisplayName returns the display name, defaulting to "Anonymous".
func (s *Session) DisplayName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.name != "" {
		return s.name
	}
	return "Anonymous"
}

// send delivers an event to this session, ignoring transport errors. Dead
// connections are detected and cleaned up by the read loop.
func (s *Session) send(ev protocol.Event) {
	if err := s.Conn.SendEvent(ev); err != nil {
		debugLog.Printf("session %s: send %s failed: %v", s.ID, ev.EventType(), err)
	}
}

// SessionManager owns every live Session, keyed by connection id. It is
// purely in-memory; all state is lost on restart and clients resynchronize
// on reconnect.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	metrics  *Metrics
}

// NewSessionManager creates an empty session registry.
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*Session)}
}

// SetMetrics attaches metrics to the session manager.
func (sm *SessionManager) SetMetrics(metrics *Metrics) {
	sm.metrics = metrics
}

// CreateSession registers a new connection and assigns it a connection id.
func (sm *SessionManager) CreateSession(conn EventSender) *Session {
	sess := &Session{
		ID:   uuid.NewString(),
		Conn: conn,
		role: RoleUser,
		x:    SpawnX,
		y:    SpawnY,
	}

	sm.mu.Lock()
	sm.sessions[sess.ID] = sess
	count := len(sm.sessions)
	sm.mu.Unlock()

	if sm.metrics != nil {
		sm.metrics.RecordActiveSessions(count)
		sm.metrics.RecordSessionCreated()
	}
	return sess
}

// Identify attaches a user identity to a session. Calling it again with
// the same identity is a no-op; it never affects room membership.
func (sm *SessionManager) Identify(sessionID, userID, name string) {
	sess, ok := sm.GetSession(sessionID)
	if !ok {
		return
	}
	sess.mu.Lock()
	sess.userID = userID
	sess.name = name
	sess.mu.Unlock()
}

// GetSession returns a session by connection id.
func (sm *SessionManager) GetSession(sessionID string) (*Session, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sess, ok := sm.sessions[sessionID]
	return sess, ok
}

// SessionsForUser returns every live session identified as the given user.
func (sm *SessionManager) SessionsForUser(userID string) []*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	var out []*Session
	for _, sess := range sm.sessions {
		if id, _ := sess.Identity(); id == userID {
			out = append(out, sess)
		}
	}
	return out
}

// setRoom binds a session to a room with the granted role. An empty room
// id clears the binding.
func (sm *SessionManager) setRoom(sess *Session, roomID, role string) {
	sess.mu.Lock()
	sess.room = roomID
	sess.role = role
	if roomID == "" {
		sess.role = RoleUser
	}
	sess.mu.Unlock()
}

// RemoveSession unregisters a session and closes its connection. It is
// idempotent and returns the room the session was in, so the caller can
// emit a leave broadcast. Returns "" if the session was already removed
// or not in a room.
func (sm *SessionManager) RemoveSession(sessionID string) (roomID string) {
	sm.mu.Lock()
	sess, ok := sm.sessions[sessionID]
	if !ok {
		sm.mu.Unlock()
		return ""
	}
	delete(sm.sessions, sessionID)
	count := len(sm.sessions)
	sm.mu.Unlock()

	if sm.metrics != nil {
		sm.metrics.RecordActiveSessions(count)
		sm.metrics.RecordSessionDisconnected()
	}

	roomID = sess.Room()
	sess.Conn.Close()
	return roomID
}

// CountOnline returns the number of live connections.
func (sm *SessionManager) CountOnline() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// CloseAll closes every connection and empties the registry.
func (sm *SessionManager) CloseAll() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for _, sess := range sm.sessions {
		sess.Conn.Close()
	}
	sm.sessions = make(map[string]*Session)
}
