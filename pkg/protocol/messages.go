package protocol

import (
	"encoding/json"
	"fmt"
)

// Inbound message types. This is the complete set of client-originated
// events; anything else is rejected at decode time.
const (
	TypeRoomJoin        = "room:join"
	TypeRoomLeave       = "room:leave"
	TypePlayerMove      = "player:move"
	TypeChatMessage     = "chat:message"
	TypeWebRTCOffer     = "webrtc:offer"
	TypeWebRTCAnswer    = "webrtc:answer"
	TypeWebRTCCandidate = "webrtc:candidate"
	TypeGameJoin        = "game:join"
	TypeGameAction      = "game:action"
	TypeGameNext        = "game:next"
	TypeGameLeave       = "game:leave"
	TypeAdminMute       = "admin:mute"
	TypeAdminUnmute     = "admin:unmute"
	TypeAdminKick       = "admin:kick"
	TypePing            = "ping"
)

// Envelope is the outer JSON frame for every message in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RoomJoin requests membership in a room.
type RoomJoin struct {
	RoomID      string `json:"roomId"`
	UserID      string `json:"userId,omitempty"`
	Name        string `json:"name,omitempty"`
	AvatarColor string `json:"avatarColor,omitempty"`
}

// RoomLeave leaves a room explicitly.
type RoomLeave struct {
	RoomID string `json:"roomId"`
}

// PlayerMove reports the client's avatar position. Coordinates are
// client-authoritative; the server relays them without validation.
type PlayerMove struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ChatMessage posts a chat line to the sender's current room.
type ChatMessage struct {
	Text string `json:"text"`
}

// WebRTCOffer carries a peer connection offer to another connection.
type WebRTCOffer struct {
	TargetID string          `json:"targetId"`
	Offer    json.RawMessage `json:"offer"`
}

// WebRTCAnswer carries a peer connection answer back to the initiator.
type WebRTCAnswer struct {
	TargetID string          `json:"targetId"`
	Answer   json.RawMessage `json:"answer"`
}

// WebRTCCandidate carries an ICE candidate to another connection.
type WebRTCCandidate struct {
	TargetID  string          `json:"targetId"`
	Candidate json.RawMessage `json:"candidate"`
}

// GameJoin enters the mini-game anchored to a room zone.
type GameJoin struct {
	RoomID   string `json:"roomId"`
	ZoneID   string `json:"zoneId"`
	GameID   string `json:"gameId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// GameAction is a generic in-game action (start_game, submit_answer).
type GameAction struct {
	GameSessionID string          `json:"gameSessionId"`
	ActionType    string          `json:"actionType"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// Game action types carried in GameAction.ActionType.
const (
	ActionStartGame    = "start_game"
	ActionSubmitAnswer = "submit_answer"
)

// SubmitAnswerPayload is the GameAction payload for submit_answer.
type SubmitAnswerPayload struct {
	AnswerIndex int `json:"answerIndex"`
}

// GameNext explicitly advances a game session to the next question.
type GameNext struct {
	GameSessionID string `json:"gameSessionId"`
}

// GameLeave leaves a game session.
type GameLeave struct {
	GameSessionID string `json:"gameSessionId"`
}

// AdminMute mutes a user. Requires moderator or admin role.
type AdminMute struct {
	TargetUserID string `json:"targetUserId"`
	RoomID       string `json:"roomId,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// AdminUnmute lifts a mute. Requires moderator or admin role.
type AdminUnmute struct {
	TargetUserID string `json:"targetUserId"`
	RoomID       string `json:"roomId,omitempty"`
}

// AdminKick bans a user from a room. Requires moderator or admin role.
type AdminKick struct {
	TargetUserID string `json:"targetUserId"`
	RoomID       string `json:"roomId"`
	Reason       string `json:"reason,omitempty"`
}

// Ping is a client keepalive; the server echoes the timestamp back.
type Ping struct {
	Timestamp int64 `json:"timestamp"`
}

// DecodeInbound parses a raw frame into one of the typed inbound messages
// and reports the wire type. The returned value is always a pointer to one
// of the structs above, so callers dispatch with a type switch and get
// compile-time coverage of the closed message set.
func DecodeInbound(data []byte) (any, string, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, "", fmt.Errorf("invalid frame: %w", err)
	}

	var msg any
	switch env.Type {
	case TypeRoomJoin:
		msg = &RoomJoin{}
	case TypeRoomLeave:
		msg = &RoomLeave{}
	case TypePlayerMove:
		msg = &PlayerMove{}
	case TypeChatMessage:
		msg = &ChatMessage{}
	case TypeWebRTCOffer:
		msg = &WebRTCOffer{}
	case TypeWebRTCAnswer:
		msg = &WebRTCAnswer{}
	case TypeWebRTCCandidate:
		msg = &WebRTCCandidate{}
	case TypeGameJoin:
		msg = &GameJoin{}
	case TypeGameAction:
		msg = &GameAction{}
	case TypeGameNext:
		msg = &GameNext{}
	case TypeGameLeave:
		msg = &GameLeave{}
	case TypeAdminMute:
		msg = &AdminMute{}
	case TypeAdminUnmute:
		msg = &AdminUnmute{}
	case TypeAdminKick:
		msg = &AdminKick{}
	case TypePing:
		msg = &Ping{}
	default:
		return nil, env.Type, fmt.Errorf("unknown message type %q", env.Type)
	}

	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, msg); err != nil {
			return nil, env.Type, fmt.Errorf("invalid %s payload: %w", env.Type, err)
		}
	}
	return msg, env.Type, nil
}
