package server

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atriumhq/atrium/pkg/protocol"
)

// RoomManager keeps room membership consistent and fans out presence and
// chat events. Membership is the set of sessions whose current room equals
// a given room id; the map here is the authoritative index over that set.
//
// The manager mutex is held across each operation's mutation and fanout,
// so events within one room are delivered in invocation order.
type RoomManager struct {
	mu       sync.Mutex
	rooms    map[string]map[string]*Session // room id -> connection id -> session
	sessions *SessionManager
	store    RoomStore
	users    UserStore
	metrics  *Metrics

	maxChatLen int
}

// NewRoomManager creates a room manager. store and users may be nil, in
// which case role resolution and mute/ban checks degrade to their safe
// defaults.
func NewRoomManager(sessions *SessionManager, store RoomStore, users UserStore, maxChatLen int) *RoomManager {
	return &RoomManager{
		rooms:      make(map[string]map[string]*Session),
		sessions:   sessions,
		store:      store,
		users:      users,
		maxChatLen: maxChatLen,
	}
}

// SetMetrics attaches metrics to the room manager.
func (rm *RoomManager) SetMetrics(metrics *Metrics) {
	rm.metrics = metrics
}

// Join adds a connection to a room. A join always succeeds for a
// non-banned user: role resolution failures degrade to the default role
// instead of rejecting. Any existing connection in the room with the same
// user identity is evicted first (the newest connection wins).
func (rm *RoomManager) Join(sess *Session, msg *protocol.RoomJoin) {
	rm.sessions.Identify(sess.ID, msg.UserID, msg.Name)

	if msg.UserID != "" && rm.users != nil {
		banned, err := rm.users.IsBannedFromRoom(msg.UserID, msg.RoomID)
		if err == nil && banned {
			sess.send(protocol.ErrorEvent{Message: "You have been removed from this room"})
			return
		}
	}

	// Resolve role outside the lock; these are collaborator lookups.
	role := rm.resolveRole(msg.RoomID, msg.UserID)

	sess.mu.Lock()
	sess.avatarColor = avatarColorOrDefault(msg.AvatarColor)
	sess.mu.Unlock()

	rm.mu.Lock()

	// Leave semantics for any previously held room.
	if prev := sess.Room(); prev != "" {
		rm.leaveLocked(sess, prev)
	}

	// Ghost eviction: a stale connection for the same identity is removed
	// from the room and its transport closed. The rest of the room sees
	// exactly one left event for it.
	if msg.UserID != "" {
		for _, other := range rm.rooms[msg.RoomID] {
			if other == sess {
				continue
			}
			if id, _ := other.Identity(); id == msg.UserID {
				log.Printf("evicting ghost session %s for user %s in room %s", other.ID, msg.UserID, msg.RoomID)
				delete(rm.rooms[msg.RoomID], other.ID)
				rm.sessions.setRoom(other, "", "")
				rm.broadcastLocked(msg.RoomID, "", protocol.PlayerLeft{
					PlayerID:     msg.UserID,
					ConnectionID: other.ID,
				})
				other.Conn.Close()
				if rm.metrics != nil {
					rm.metrics.RecordGhostEviction()
				}
			}
		}
	}

	members, ok := rm.rooms[msg.RoomID]
	if !ok {
		members = make(map[string]*Session)
		rm.rooms[msg.RoomID] = members
	}
	members[sess.ID] = sess
	rm.sessions.setRoom(sess, msg.RoomID, role)
	sess.setPosition(SpawnX, SpawnY)

	// Snapshot of everyone else, with their last broadcast positions.
	players := make([]protocol.PlayerInfo, 0, len(members)-1)
	for _, member := range members {
		if member == sess {
			continue
		}
		x, y := member.Position()
		players = append(players, protocol.PlayerInfo{
			ID:          member.PlayerID(),
			Name:        member.DisplayName(),
			AvatarColor: member.AvatarColor(),
			X:           x,
			Y:           y,
		})
	}

	sess.send(protocol.RoomState{Players: players})

	rm.broadcastLocked(msg.RoomID, sess.ID, protocol.PlayerJoined{
		ID:          sess.PlayerID(),
		Name:        sess.DisplayName(),
		AvatarColor: sess.AvatarColor(),
		X:           SpawnX,
		Y:           SpawnY,
	})
	rm.broadcastLocked(msg.RoomID, sess.ID, protocol.PeerJoined{PeerID: sess.ID})

	memberCount := len(members)
	rm.mu.Unlock()

	sess.send(protocol.RoomJoined{
		RoomID:  msg.RoomID,
		Message: fmt.Sprintf("Successfully joined room: %s", msg.RoomID),
		Role:    role,
	})
	sess.send(protocol.RoomRole{Role: role})

	if rm.metrics != nil {
		rm.metrics.RecordRoomMembers(msg.RoomID, memberCount)
	}
	log.Printf("user %s joined room %s as %s (session %s)", sess.DisplayName(), msg.RoomID, role, sess.ID)
}

// resolveRole grants admin to the room owner, otherwise the user's stored
// role. Every lookup failure degrades to the default role.
func (rm *RoomManager) resolveRole(roomID, userID string) string {
	if userID == "" {
		return RoleUser
	}
	if rm.store != nil {
		owner, err := rm.store.RoomOwner(roomID)
		if err == nil && owner == userID {
			return RoleAdmin
		}
		if err != nil {
			debugLog.Printf("room owner lookup failed for %s: %v", roomID, err)
		}
	}
	if rm.users != nil {
		role, err := rm.users.Role(userID)
		if err == nil && (role == RoleModerator || role == RoleAdmin) {
			return role
		}
	}
	return RoleUser
}

// Leave removes a connection from a room and broadcasts a left event.
// Redundant calls are safe: a session that is not in the room produces no
// broadcast.
func (rm *RoomManager) Leave(sess *Session, roomID string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, ok := rm.rooms[roomID][sess.ID]; !ok {
		return
	}
	rm.leaveLocked(sess, roomID)
	log.Printf("user %s left room %s (session %s)", sess.DisplayName(), roomID, sess.ID)
}

// Disconnect handles transport loss: the session leaves whatever room it
// was in, with the usual left broadcast.
func (rm *RoomManager) Disconnect(sess *Session) {
	roomID := sess.Room()
	if roomID == "" {
		return
	}
	rm.Leave(sess, roomID)
}

// leaveLocked removes sess from roomID's group and broadcasts the left
// event to the remaining members. Caller holds rm.mu.
func (rm *RoomManager) leaveLocked(sess *Session, roomID string) {
	members, ok := rm.rooms[roomID]
	if !ok {
		return
	}
	if _, ok := members[sess.ID]; !ok {
		return
	}
	delete(members, sess.ID)
	if len(members) == 0 {
		delete(rm.rooms, roomID)
	}
	rm.sessions.setRoom(sess, "", "")

	rm.broadcastLocked(roomID, "", protocol.PlayerLeft{
		PlayerID:     sess.PlayerID(),
		ConnectionID: sess.ID,
	})
	if rm.metrics != nil {
		rm.metrics.RecordRoomMembers(roomID, len(members))
	}
}

// Move relays a position update to the rest of the sender's room. Without
// a room association the sender gets an error and nothing is broadcast.
// Coordinates are client-authoritative and relayed unvalidated.
func (rm *RoomManager) Move(sess *Session, x, y float64) {
	roomID := sess.Room()
	if roomID == "" {
		sess.send(protocol.ErrorEvent{Message: "Not in a room"})
		return
	}

	sess.setPosition(x, y)

	rm.mu.Lock()
	rm.broadcastLocked(roomID, sess.ID, protocol.PlayerMoved{
		PlayerID: sess.PlayerID(),
		X:        x,
		Y:        y,
	})
	rm.mu.Unlock()
}

// Chat broadcasts a chat message to every member of the sender's room,
// including the sender, so client UIs render from the authoritative
// broadcast rather than a local echo.
func (rm *RoomManager) Chat(sess *Session, text string) {
	roomID := sess.Room()
	if roomID == "" {
		sess.send(protocol.ErrorEvent{Message: "Not in a room"})
		return
	}
	if rm.maxChatLen > 0 && len(text) > rm.maxChatLen {
		sess.send(protocol.ErrorEvent{Message: fmt.Sprintf("Message too long (max %d bytes)", rm.maxChatLen)})
		return
	}

	userID, _ := sess.Identity()
	if userID != "" && rm.users != nil {
		muted, err := rm.users.IsMuted(userID)
		if err == nil && muted {
			sess.send(protocol.ErrorEvent{Message: "You are muted"})
			return
		}
	}

	msg := protocol.ChatBroadcast{
		ID:        "msg_" + uuid.NewString(),
		UserID:    sess.PlayerID(),
		Username:  sess.DisplayName(),
		Text:      text,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	rm.mu.Lock()
	rm.broadcastLocked(roomID, "", msg)
	rm.mu.Unlock()
}

// Broadcast sends an event to every member of a room.
func (rm *RoomManager) Broadcast(roomID string, ev protocol.Event) {
	rm.mu.Lock()
	rm.broadcastLocked(roomID, "", ev)
	rm.mu.Unlock()
}

// broadcastLocked fans out an event to every member of roomID except the
// session with id exclude. Send failures are ignored here; dead
// connections are reaped by their own read loops. Caller holds rm.mu.
func (rm *RoomManager) broadcastLocked(roomID, exclude string, ev protocol.Event) {
	members := rm.rooms[roomID]
	delivered := 0
	for id, member := range members {
		if id == exclude {
			continue
		}
		member.send(ev)
		delivered++
	}
	if rm.metrics != nil {
		rm.metrics.RecordBroadcast(ev.EventType(), delivered)
	}
}

// Members returns the connection ids currently in a room.
func (rm *RoomManager) Members(roomID string) []string {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	out := make([]string, 0, len(rm.rooms[roomID]))
	for id := range rm.rooms[roomID] {
		out = append(out, id)
	}
	return out
}

// Stats returns the number of rooms and total room memberships.
func (rm *RoomManager) Stats() (rooms, members int) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rooms = len(rm.rooms)
	for _, m := range rm.rooms {
		members += len(m)
	}
	return rooms, members
}

func avatarColorOrDefault(color string) string {
	if color == "" {
		return "#3498db"
	}
	return color
}
