package server

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/atriumhq/atrium/pkg/protocol"
)

// TestRoomMembershipInvariants drives the room manager with random
// join/leave/disconnect sequences and checks that no room ever holds two
// live connections for the same user identity, and that every member's
// recorded room matches the index.
func TestRoomMembershipInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := newRoomFixture()

		users := []string{"u1", "u2", "u3"}
		roomIDs := []string{"lobby", "stage"}
		var live []*Session

		t.Repeat(map[string]func(*rapid.T){
			"join": func(t *rapid.T) {
				userID := rapid.SampledFrom(users).Draw(t, "user")
				roomID := rapid.SampledFrom(roomIDs).Draw(t, "room")

				conn := newMockConn()
				sess := f.sessions.CreateSession(conn)
				f.rooms.Join(sess, &protocol.RoomJoin{
					RoomID: roomID,
					UserID: userID,
					Name:   userID,
				})
				live = append(live, sess)
			},
			"rejoin": func(t *rapid.T) {
				if len(live) == 0 {
					t.Skip()
				}
				sess := rapid.SampledFrom(live).Draw(t, "session")
				roomID := rapid.SampledFrom(roomIDs).Draw(t, "room")
				userID, name := sess.Identity()
				f.rooms.Join(sess, &protocol.RoomJoin{RoomID: roomID, UserID: userID, Name: name})
			},
			"leave": func(t *rapid.T) {
				if len(live) == 0 {
					t.Skip()
				}
				sess := rapid.SampledFrom(live).Draw(t, "session")
				f.rooms.Leave(sess, sess.Room())
			},
			"disconnect": func(t *rapid.T) {
				if len(live) == 0 {
					t.Skip()
				}
				i := rapid.IntRange(0, len(live)-1).Draw(t, "index")
				sess := live[i]
				f.rooms.Disconnect(sess)
				f.sessions.RemoveSession(sess.ID)
				live = append(live[:i], live[i+1:]...)
			},
			"": func(t *rapid.T) {
				for _, roomID := range roomIDs {
					seen := map[string]string{} // user id -> connection id
					for _, connID := range f.rooms.Members(roomID) {
						sess, ok := f.sessions.GetSession(connID)
						if !ok {
							t.Fatalf("room %s indexes removed session %s", roomID, connID)
						}
						if sess.Room() != roomID {
							t.Fatalf("session %s indexed in %s but records room %q", connID, roomID, sess.Room())
						}
						userID, _ := sess.Identity()
						if userID == "" {
							continue
						}
						if prev, dup := seen[userID]; dup {
							t.Fatalf("room %s holds two connections for %s: %s and %s",
								roomID, userID, prev, connID)
						}
						seen[userID] = connID
					}
				}
			},
		})
	})
}

// TestSessionRegistryInvariants checks that the registry's per-user index
// stays consistent under random create/identify/remove sequences.
func TestSessionRegistryInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sm := NewSessionManager()
		var ids []string

		t.Repeat(map[string]func(*rapid.T){
			"create": func(t *rapid.T) {
				sess := sm.CreateSession(newMockConn())
				ids = append(ids, sess.ID)
			},
			"identify": func(t *rapid.T) {
				if len(ids) == 0 {
					t.Skip()
				}
				id := rapid.SampledFrom(ids).Draw(t, "id")
				n := rapid.IntRange(1, 3).Draw(t, "user")
				sm.Identify(id, fmt.Sprintf("u%d", n), fmt.Sprintf("User %d", n))
			},
			"remove": func(t *rapid.T) {
				if len(ids) == 0 {
					t.Skip()
				}
				i := rapid.IntRange(0, len(ids)-1).Draw(t, "index")
				sm.RemoveSession(ids[i])
				ids = append(ids[:i], ids[i+1:]...)
			},
			"": func(t *rapid.T) {
				if sm.CountOnline() != len(ids) {
					t.Fatalf("registry holds %d sessions, expected %d", sm.CountOnline(), len(ids))
				}
				for n := 1; n <= 3; n++ {
					for _, sess := range sm.SessionsForUser(fmt.Sprintf("u%d", n)) {
						if _, ok := sm.GetSession(sess.ID); !ok {
							t.Fatalf("user index returned removed session %s", sess.ID)
						}
					}
				}
			},
		})
	})
}
