package protocol

import (
	"encoding/json"
	"fmt"
)

// Outbound event types.
const (
	TypeRoomState       = "room:state"
	TypeRoomJoined      = "room:joined"
	TypeRoomRole        = "room:role"
	TypePlayerJoined    = "player:joined"
	TypePlayerMoved     = "player:moved"
	TypePlayerLeft      = "player:left"
	TypeWebRTCPeer      = "webrtc:peer-joined"
	TypeGameJoined      = "game:joined"
	TypeGameState       = "game:state"
	TypeGameUpdate      = "game:update"
	TypeGameEnded       = "game:ended"
	TypeGameError       = "game:error"
	TypeSystemMessage   = "system:message"
	TypeUserMuted       = "user:muted"
	TypeUserUnmuted     = "user:unmuted"
	TypeSystemKicked    = "system:kicked"
	TypeAdminSuccess    = "admin:success"
	TypeAdminError      = "admin:error"
	TypeError           = "error"
	TypePong            = "pong"
	// chat:message and webrtc:offer/answer/candidate reuse their inbound
	// type names in the broadcast direction.
)

// Event is an outbound message that knows its wire type.
type Event interface {
	EventType() string
}

// EncodeEvent wraps an event in an Envelope and marshals it to a frame.
func EncodeEvent(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", ev.EventType(), err)
	}
	return json.Marshal(Envelope{Type: ev.EventType(), Payload: payload})
}

// PlayerInfo is a room member's public state as seen by other members.
type PlayerInfo struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	AvatarColor string  `json:"avatarColor"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
}

// RoomState is the snapshot sent to a freshly joined connection. It lists
// every other member with their most recently broadcast position.
type RoomState struct {
	Players []PlayerInfo `json:"players"`
}

func (RoomState) EventType() string { return TypeRoomState }

// RoomJoined confirms a join to the joining connection.
type RoomJoined struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
	Role    string `json:"role"`
}

func (RoomJoined) EventType() string { return TypeRoomJoined }

// RoomRole reports the role granted for the joined room.
type RoomRole struct {
	Role string `json:"role"`
}

func (RoomRole) EventType() string { return TypeRoomRole }

// PlayerJoined announces a new room member to existing members.
type PlayerJoined struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	AvatarColor string  `json:"avatarColor"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
}

func (PlayerJoined) EventType() string { return TypePlayerJoined }

// PlayerMoved relays a member's position to the rest of the room.
type PlayerMoved struct {
	PlayerID string  `json:"playerId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

func (PlayerMoved) EventType() string { return TypePlayerMoved }

// PlayerLeft announces a departure. ConnectionID lets the signaling layer
// tear down any peer connections addressed to the departed connection.
type PlayerLeft struct {
	PlayerID     string `json:"playerId"`
	ConnectionID string `json:"connectionId,omitempty"`
}

func (PlayerLeft) EventType() string { return TypePlayerLeft }

// ChatBroadcast is the authoritative broadcast form of a chat message,
// delivered to every room member including the sender.
type ChatBroadcast struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt"`
}

func (ChatBroadcast) EventType() string { return TypeChatMessage }

// SignalEvent is a relayed WebRTC negotiation message, re-tagged with the
// source connection id. Kind selects the wire type; the payload field name
// matches the kind so browsers see the same shape they sent.
type SignalEvent struct {
	Kind      string          `json:"-"`
	SourceID  string          `json:"sourceId"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

func (e SignalEvent) EventType() string { return e.Kind }

// PeerJoined tells existing room members a new connection is available for
// media negotiation.
type PeerJoined struct {
	PeerID string `json:"peerId"`
}

func (PeerJoined) EventType() string { return TypeWebRTCPeer }

// GamePlayer is a participant's public game state.
type GamePlayer struct {
	UserID       string `json:"userId"`
	ConnectionID string `json:"connectionId"`
	Name         string `json:"name"`
	Score        int    `json:"score"`
}

// QuizQuestion is one question of a quiz game. The correct index never
// leaves the server; answers are judged server-side.
type QuizQuestion struct {
	ID           string   `json:"id"`
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"-"`
}

// GameSnapshot is the full public state of a game session.
type GameSnapshot struct {
	SessionID            string         `json:"sessionId"`
	RoomID               string         `json:"roomId"`
	ZoneID               string         `json:"zoneId"`
	GameID               string         `json:"gameId"`
	Kind                 string         `json:"type"`
	Players              []GamePlayer   `json:"players"`
	State                string         `json:"state"`
	Questions            []QuizQuestion `json:"questions,omitempty"`
	CurrentQuestionIndex int            `json:"currentQuestionIndex"`
	StartedAt            int64          `json:"startTime"`
}

// GameJoined is returned to a connection that joined a game session.
type GameJoined struct {
	GameSessionID string       `json:"gameSessionId"`
	Players       []GamePlayer `json:"players"`
	InitialState  GameSnapshot `json:"initialState"`
}

func (GameJoined) EventType() string { return TypeGameJoined }

// GameState broadcasts the full session state to the session group.
type GameState struct {
	GameSnapshot
}

func (GameState) EventType() string { return TypeGameState }

// Game update kinds carried in GameUpdate.Kind.
const (
	UpdatePlayerJoined = "player_joined"
	UpdatePlayerLeft   = "player_left"
	UpdateScore        = "score_update"
	UpdateNextQuestion = "next_question"
)

// AnswerResult reports the outcome of one answer submission.
type AnswerResult struct {
	PlayerID string `json:"playerId"`
	Correct  bool   `json:"correct"`
}

// GameUpdate is an incremental session change broadcast to the session
// group. Fields are populated according to Kind.
type GameUpdate struct {
	Kind                 string        `json:"type"`
	Player               *GamePlayer   `json:"player,omitempty"`
	Players              []GamePlayer  `json:"players,omitempty"`
	LastAnswer           *AnswerResult `json:"lastAnswer,omitempty"`
	CurrentQuestionIndex *int          `json:"currentQuestionIndex,omitempty"`
}

func (GameUpdate) EventType() string { return TypeGameUpdate }

// GameEnded broadcasts final scores when a session finishes.
type GameEnded struct {
	FinalScores []GamePlayer `json:"finalScores"`
}

func (GameEnded) EventType() string { return TypeGameEnded }

// GameError reports a failed game operation to the issuing connection.
type GameError struct {
	Message string `json:"message"`
}

func (GameError) EventType() string { return TypeGameError }

// SystemMessage is a human-readable notice broadcast to a room.
type SystemMessage struct {
	Message string `json:"message"`
}

func (SystemMessage) EventType() string { return TypeSystemMessage }

// UserMuted notifies a user's connections that they have been muted.
type UserMuted struct {
	UserID string `json:"userId"`
	RoomID string `json:"roomId,omitempty"`
}

func (UserMuted) EventType() string { return TypeUserMuted }

// UserUnmuted notifies a user's connections that a mute has been lifted.
type UserUnmuted struct {
	UserID string `json:"userId"`
	RoomID string `json:"roomId,omitempty"`
}

func (UserUnmuted) EventType() string { return TypeUserUnmuted }

// SystemKicked notifies a user's connections of removal from a room.
type SystemKicked struct {
	UserID string `json:"userId"`
	RoomID string `json:"roomId"`
	Reason string `json:"reason"`
}

func (SystemKicked) EventType() string { return TypeSystemKicked }

// AdminSuccess confirms a moderation command to its issuer.
type AdminSuccess struct {
	Message string `json:"message"`
}

func (AdminSuccess) EventType() string { return TypeAdminSuccess }

// AdminError rejects a moderation command to its issuer.
type AdminError struct {
	Message string `json:"message"`
}

func (AdminError) EventType() string { return TypeAdminError }

// ErrorEvent reports a caller error (e.g. moving without joining a room)
// to the issuing connection only.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (ErrorEvent) EventType() string { return TypeError }

// Pong answers a Ping with the client's own timestamp.
type Pong struct {
	Timestamp int64 `json:"timestamp"`
}

func (Pong) EventType() string { return TypePong }
