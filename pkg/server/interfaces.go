package server

// RoomStore resolves room ownership for role grants. Implemented by
// pkg/database; lookups are best-effort and failures degrade to the
// default role.
type RoomStore interface {
	// RoomOwner returns the owning user id for a room, matched by slug or
	// short room code. Returns database.ErrRoomNotFound for unknown rooms.
	RoomOwner(roomID string) (string, error)
}

// UserStore holds persistent per-user moderation state. Mute and ban
// mutations must be durable; their failure is surfaced to the issuing
// moderator as a failed command.
type UserStore interface {
	// Username returns the display name for a user id.
	Username(userID string) (string, error)
	// Role returns the stored global role (user/moderator/admin).
	Role(userID string) (string, error)
	SetMuted(userID string, muted bool) error
	IsMuted(userID string) (bool, error)
	BanFromRoom(userID, roomID string) error
	IsBannedFromRoom(userID, roomID string) (bool, error)
}

// AuditStore appends moderation actions to the audit log.
type AuditStore interface {
	AppendModerationLog(action, targetUserID, issuedByUserID, roomID, reason string) error
}
