// Package database holds the persistent collaborator state the realtime
// layer consults: room ownership for role grants, per-user moderation
// flags, and the moderation audit log. Presence itself is never persisted.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrUserNotFound indicates the user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrRoomNotFound indicates the room does not exist.
	ErrRoomNotFound = errors.New("room not found")
)

// DB wraps the SQLite database connection.
type DB struct {
	conn *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	username   TEXT NOT NULL,
	role       TEXT NOT NULL DEFAULT 'user',
	is_muted   INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS rooms (
	id         TEXT PRIMARY KEY,
	room_code  TEXT,
	name       TEXT NOT NULL,
	owner_id   TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rooms_code ON rooms(room_code);

CREATE TABLE IF NOT EXISTS room_bans (
	user_id    TEXT NOT NULL,
	room_id    TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (user_id, room_id)
);

CREATE TABLE IF NOT EXISTS moderation_log (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	action            TEXT NOT NULL,
	target_user_id    TEXT,
	issued_by_user_id TEXT NOT NULL,
	room_id           TEXT,
	reason            TEXT,
	created_at        INTEGER NOT NULL
);
`

// Open opens the SQLite database at the given path and initializes the
// schema if needed.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL allows readers alongside the single writer; the busy timeout
	// makes SQLite wait instead of failing with SQLITE_BUSY.
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// CreateUser inserts or replaces a user record.
func (db *DB) CreateUser(id, username, role string) error {
	_, err := db.conn.Exec(
		`INSERT OR REPLACE INTO users (id, username, role, is_muted, created_at)
		 VALUES (?, ?, ?, COALESCE((SELECT is_muted FROM users WHERE id = ?), 0), ?)`,
		id, username, role, id, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// Username returns the display name for a user id.
func (db *DB) Username(userID string) (string, error) {
	var username string
	err := db.conn.QueryRow(`SELECT username FROM users WHERE id = ?`, userID).Scan(&username)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}
	return username, nil
}

// Role returns the stored global role for a user.
func (db *DB) Role(userID string) (string, error) {
	var role string
	err := db.conn.QueryRow(`SELECT role FROM users WHERE id = ?`, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up role: %w", err)
	}
	return role, nil
}

// SetMuted sets the persistent mute flag for a user.
func (db *DB) SetMuted(userID string, muted bool) error {
	res, err := db.conn.Exec(`UPDATE users SET is_muted = ? WHERE id = ?`, boolToInt(muted), userID)
	if err != nil {
		return fmt.Errorf("failed to update mute flag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// IsMuted reports whether a user is muted. Unknown users are not muted.
func (db *DB) IsMuted(userID string) (bool, error) {
	var muted int
	err := db.conn.QueryRow(`SELECT is_muted FROM users WHERE id = ?`, userID).Scan(&muted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up mute flag: %w", err)
	}
	return muted != 0, nil
}

// BanFromRoom adds a room to the user's ban list. Repeating a ban is not
// an error.
func (db *DB) BanFromRoom(userID, roomID string) error {
	var exists int
	err := db.conn.QueryRow(`SELECT 1 FROM users WHERE id = ?`, userID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}

	_, err = db.conn.Exec(
		`INSERT OR IGNORE INTO room_bans (user_id, room_id, created_at) VALUES (?, ?, ?)`,
		userID, roomID, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record ban: %w", err)
	}
	return nil
}

// IsBannedFromRoom reports whether a user is banned from a room.
func (db *DB) IsBannedFromRoom(userID, roomID string) (bool, error) {
	var exists int
	err := db.conn.QueryRow(
		`SELECT 1 FROM room_bans WHERE user_id = ? AND room_id = ?`, userID, roomID,
	).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up ban: %w", err)
	}
	return true, nil
}

// CreateRoom inserts or replaces a room record. roomCode is the short
// join code; it may be empty.
func (db *DB) CreateRoom(id, roomCode, name, ownerID string) error {
	_, err := db.conn.Exec(
		`INSERT OR REPLACE INTO rooms (id, room_code, name, owner_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, roomCode, name, ownerID, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

// RoomOwner returns the owner of a room, matched by slug or short code.
func (db *DB) RoomOwner(roomID string) (string, error) {
	var owner string
	err := db.conn.QueryRow(
		`SELECT owner_id FROM rooms WHERE id = ? OR room_code = ?`, roomID, roomID,
	).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrRoomNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up room: %w", err)
	}
	return owner, nil
}

// ModerationEntry is one audit log record.
type ModerationEntry struct {
	ID             int64
	Action         string
	TargetUserID   string
	IssuedByUserID string
	RoomID         string
	Reason         string
	CreatedAt      int64
}

// AppendModerationLog records a moderation action.
func (db *DB) AppendModerationLog(action, targetUserID, issuedByUserID, roomID, reason string) error {
	_, err := db.conn.Exec(
		`INSERT INTO moderation_log (action, target_user_id, issued_by_user_id, room_id, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		action, targetUserID, issuedByUserID, roomID, reason, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to append moderation log: %w", err)
	}
	return nil
}

// ListModerationLog returns the most recent audit entries, newest first.
func (db *DB) ListModerationLog(limit int) ([]*ModerationEntry, error) {
	rows, err := db.conn.Query(
		`SELECT id, action, target_user_id, issued_by_user_id, room_id, reason, created_at
		 FROM moderation_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list moderation log: %w", err)
	}
	defer rows.Close()

	var entries []*ModerationEntry
	for rows.Next() {
		e := &ModerationEntry{}
		if err := rows.Scan(&e.ID, &e.Action, &e.TargetUserID, &e.IssuedByUserID, &e.RoomID, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan moderation entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
