package server

import (
	"fmt"
	"log"

	"github.com/atriumhq/atrium/pkg/protocol"
)

// Moderator executes privileged mute/unmute/kick commands issued over the
// same connection used for presence. Role checks come from the issuing
// session's granted role; persistent state changes and audit entries go
// through the collaborator stores, and their failure is reported to the
// issuer rather than silently swallowed.
type Moderator struct {
	sessions *SessionManager
	rooms    *RoomManager
	users    UserStore
	audit    AuditStore
}

// NewModerator wires the moderation channel to its collaborators.
func NewModerator(sessions *SessionManager, rooms *RoomManager, users UserStore, audit AuditStore) *Moderator {
	return &Moderator{sessions: sessions, rooms: rooms, users: users, audit: audit}
}

// authorize rejects issuers below moderator. The rejection goes to the
// issuer only; no state changes and nothing is broadcast.
func (m *Moderator) authorize(issuer *Session) bool {
	role := issuer.Role()
	if role != RoleModerator && role != RoleAdmin {
		issuer.send(protocol.AdminError{Message: "Insufficient permissions"})
		return false
	}
	return true
}

// Mute sets the target user's persistent mute flag.
func (m *Moderator) Mute(issuer *Session, msg *protocol.AdminMute) {
	if !m.authorize(issuer) {
		return
	}

	username, err := m.users.Username(msg.TargetUserID)
	if err != nil {
		issuer.send(protocol.AdminError{Message: "User not found"})
		return
	}
	if err := m.users.SetMuted(msg.TargetUserID, true); err != nil {
		log.Printf("mute of %s failed: %v", msg.TargetUserID, err)
		issuer.send(protocol.AdminError{Message: "Failed to mute user"})
		return
	}
	if err := m.appendAudit("mute", msg.TargetUserID, issuer, msg.RoomID, msg.Reason); err != nil {
		issuer.send(protocol.AdminError{Message: "Failed to mute user"})
		return
	}

	if msg.RoomID != "" {
		m.rooms.Broadcast(msg.RoomID, protocol.SystemMessage{
			Message: fmt.Sprintf("%s has been muted", username),
		})
	}
	m.notifyUser(msg.TargetUserID, protocol.UserMuted{UserID: msg.TargetUserID, RoomID: msg.RoomID})

	issuer.send(protocol.AdminSuccess{Message: "User muted successfully"})
}

// Unmute clears the target user's persistent mute flag.
func (m *Moderator) Unmute(issuer *Session, msg *protocol.AdminUnmute) {
	if !m.authorize(issuer) {
		return
	}

	username, err := m.users.Username(msg.TargetUserID)
	if err != nil {
		issuer.send(protocol.AdminError{Message: "User not found"})
		return
	}
	if err := m.users.SetMuted(msg.TargetUserID, false); err != nil {
		log.Printf("unmute of %s failed: %v", msg.TargetUserID, err)
		issuer.send(protocol.AdminError{Message: "Failed to unmute user"})
		return
	}
	if err := m.appendAudit("unmute", msg.TargetUserID, issuer, msg.RoomID, ""); err != nil {
		issuer.send(protocol.AdminError{Message: "Failed to unmute user"})
		return
	}

	if msg.RoomID != "" {
		m.rooms.Broadcast(msg.RoomID, protocol.SystemMessage{
			Message: fmt.Sprintf("%s has been unmuted", username),
		})
	}
	m.notifyUser(msg.TargetUserID, protocol.UserUnmuted{UserID: msg.TargetUserID, RoomID: msg.RoomID})

	issuer.send(protocol.AdminSuccess{Message: "User unmuted successfully"})
}

// Kick bans the target user from a room. The target's own connections
// receive a system:kicked event and are expected to disconnect from the
// room themselves; the ban keeps them from rejoining.
func (m *Moderator) Kick(issuer *Session, msg *protocol.AdminKick) {
	if !m.authorize(issuer) {
		return
	}

	username, err := m.users.Username(msg.TargetUserID)
	if err != nil {
		issuer.send(protocol.AdminError{Message: "User not found"})
		return
	}
	if err := m.users.BanFromRoom(msg.TargetUserID, msg.RoomID); err != nil {
		log.Printf("kick of %s from %s failed: %v", msg.TargetUserID, msg.RoomID, err)
		issuer.send(protocol.AdminError{Message: "Failed to kick user"})
		return
	}
	if err := m.appendAudit("kick", msg.TargetUserID, issuer, msg.RoomID, msg.Reason); err != nil {
		issuer.send(protocol.AdminError{Message: "Failed to kick user"})
		return
	}

	reason := msg.Reason
	if reason == "" {
		reason = "You have been removed from this room"
	}
	m.notifyUser(msg.TargetUserID, protocol.SystemKicked{
		UserID: msg.TargetUserID,
		RoomID: msg.RoomID,
		Reason: reason,
	})
	m.rooms.Broadcast(msg.RoomID, protocol.SystemMessage{
		Message: fmt.Sprintf("%s has been removed from the room", username),
	})

	issuer.send(protocol.AdminSuccess{Message: "User kicked successfully"})
}

// appendAudit writes the moderation log entry. Enforcement correctness
// depends on the audit trail, so a failed append fails the command.
func (m *Moderator) appendAudit(action, targetUserID string, issuer *Session, roomID, reason string) error {
	if m.audit == nil {
		return nil
	}
	issuerID, _ := issuer.Identity()
	if err := m.audit.AppendModerationLog(action, targetUserID, issuerID, roomID, reason); err != nil {
		log.Printf("audit append (%s %s) failed: %v", action, targetUserID, err)
		return err
	}
	return nil
}

// notifyUser delivers an event to every live connection of a user.
func (m *Moderator) notifyUser(userID string, ev protocol.Event) {
	for _, sess := range m.sessions.SessionsForUser(userID) {
		sess.send(ev)
	}
}
