package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSessionAssignsUniqueIDs(t *testing.T) {
	sm := NewSessionManager()

	a := sm.CreateSession(newMockConn())
	b := sm.CreateSession(newMockConn())

	require.NotEmpty(t, a.ID)
	require.NotEmpty(t, b.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, sm.CountOnline())

	got, ok := sm.GetSession(a.ID)
	require.True(t, ok)
	assert.Same(t, a, got)
}

func TestIdentifyIsIdempotent(t *testing.T) {
	sm := NewSessionManager()
	sess := sm.CreateSession(newMockConn())

	sm.Identify(sess.ID, "u1", "Alice")
	sm.Identify(sess.ID, "u1", "Alice")

	userID, name := sess.Identity()
	assert.Equal(t, "u1", userID)
	assert.Equal(t, "Alice", name)

	// Identification never touches room membership.
	assert.Equal(t, "", sess.Room())
}

func TestIdentifyUnknownSessionIsNoOp(t *testing.T) {
	sm := NewSessionManager()
	sm.Identify("nope", "u1", "Alice") // must not panic
}

func TestRemoveSessionReturnsLastKnownRoom(t *testing.T) {
	sm := NewSessionManager()
	conn := newMockConn()
	sess := sm.CreateSession(conn)
	sm.setRoom(sess, "lobby", RoleUser)

	roomID := sm.RemoveSession(sess.ID)
	assert.Equal(t, "lobby", roomID)
	assert.True(t, conn.isClosed())
	assert.Equal(t, 0, sm.CountOnline())

	// Removing again is safe and reports no room.
	assert.Equal(t, "", sm.RemoveSession(sess.ID))
}

func TestSessionsForUser(t *testing.T) {
	sm := NewSessionManager()
	a := sm.CreateSession(newMockConn())
	b := sm.CreateSession(newMockConn())
	c := sm.CreateSession(newMockConn())

	sm.Identify(a.ID, "u1", "Alice")
	sm.Identify(b.ID, "u1", "Alice")
	sm.Identify(c.ID, "u2", "Bob")

	assert.Len(t, sm.SessionsForUser("u1"), 2)
	assert.Len(t, sm.SessionsForUser("u2"), 1)
	assert.Empty(t, sm.SessionsForUser("u3"))
}

func TestPlayerIDFallsBackToConnectionID(t *testing.T) {
	sm := NewSessionManager()
	sess := sm.CreateSession(newMockConn())

	assert.Equal(t, sess.ID, sess.PlayerID())
	assert.Equal(t, "Anonymous", sess.DisplayName())

	sm.Identify(sess.ID, "u1", "Alice")
	assert.Equal(t, "u1", sess.PlayerID())
	assert.Equal(t, "Alice", sess.DisplayName())
}

func TestSetRoomClearsRoleOnLeave(t *testing.T) {
	sm := NewSessionManager()
	sess := sm.CreateSession(newMockConn())

	sm.setRoom(sess, "lobby", RoleAdmin)
	assert.Equal(t, "lobby", sess.Room())
	assert.Equal(t, RoleAdmin, sess.Role())

	sm.setRoom(sess, "", "")
	assert.Equal(t, "", sess.Room())
	assert.Equal(t, RoleUser, sess.Role())
}
