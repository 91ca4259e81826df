package server

import (
	"log"
	"time"

	"github.com/atriumhq/atrium/pkg/game"
	"github.com/atriumhq/atrium/pkg/protocol"
)

// Server ties the presence, signaling, game, and moderation components to
// the WebSocket transport. One process holds all in-memory room state;
// nothing here survives a restart, and clients resynchronize on reconnect.
type Server struct {
	config    ServerConfig
	sessions  *SessionManager
	rooms     *RoomManager
	relay     *SignalingRelay
	games     *game.Manager
	moderator *Moderator
	metrics   *Metrics
	startTime time.Time
}

// ServerConfig holds the runtime configuration.
type ServerConfig struct {
	HTTPPort          int
	MaxChatLength     int
	FinishedRetention time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:          4000,
		MaxChatLength:     1024,
		FinishedRetention: game.DefaultFinishedRetention,
	}
}

// NewServer builds a server over the given collaborator stores. Any store
// may be nil: role resolution then always grants the default role, mute
// and ban checks pass, and moderation commands report failure.
func NewServer(config ServerConfig, roomStore RoomStore, users UserStore, audit AuditStore) *Server {
	sessions := NewSessionManager()
	rooms := NewRoomManager(sessions, roomStore, users, config.MaxChatLength)

	return &Server{
		config:    config,
		sessions:  sessions,
		rooms:     rooms,
		relay:     NewSignalingRelay(sessions),
		games:     game.NewManager(config.FinishedRetention),
		moderator: NewModerator(sessions, rooms, users, audit),
		startTime: time.Now(),
	}
}

// EnableMetrics registers Prometheus metrics and attaches them to every
// component. Call at most once per process.
func (s *Server) EnableMetrics() {
	s.metrics = NewMetrics()
	s.sessions.SetMetrics(s.metrics)
	s.rooms.SetMetrics(s.metrics)
	s.relay.SetMetrics(s.metrics)
	s.games.SetMetrics(s.metrics)
}

// Sessions exposes the registry, for the stats endpoint and tests.
func (s *Server) Sessions() *SessionManager { return s.sessions }

// Rooms exposes the room manager, for the stats endpoint and tests.
func (s *Server) Rooms() *RoomManager { return s.rooms }

// Games exposes the game manager, for the stats endpoint and tests.
func (s *Server) Games() *game.Manager { return s.games }

// Shutdown closes every live connection.
func (s *Server) Shutdown() {
	s.sessions.CloseAll()
}

// dispatch decodes one inbound frame and runs its handler to completion.
// A failure while handling one connection's event never affects other
// connections: caller errors go back to the issuer, everything else is
// logged and dropped.
func (s *Server) dispatch(sess *Session, data []byte) {
	msg, msgType, err := protocol.DecodeInbound(data)
	if err != nil {
		debugLog.Printf("session %s: %v", sess.ID, err)
		sess.send(protocol.ErrorEvent{Message: "Invalid message format"})
		return
	}
	if s.metrics != nil {
		s.metrics.RecordMessageReceived(msgType)
	}

	switch msg := msg.(type) {
	case *protocol.RoomJoin:
		s.rooms.Join(sess, msg)
	case *protocol.RoomLeave:
		s.rooms.Leave(sess, msg.RoomID)
	case *protocol.PlayerMove:
		s.rooms.Move(sess, msg.X, msg.Y)
	case *protocol.ChatMessage:
		s.rooms.Chat(sess, msg.Text)
	case *protocol.WebRTCOffer:
		s.relay.Relay(protocol.TypeWebRTCOffer, sess, msg.TargetID, msg.Offer)
	case *protocol.WebRTCAnswer:
		s.relay.Relay(protocol.TypeWebRTCAnswer, sess, msg.TargetID, msg.Answer)
	case *protocol.WebRTCCandidate:
		s.relay.Relay(protocol.TypeWebRTCCandidate, sess, msg.TargetID, msg.Candidate)
	case *protocol.GameJoin:
		s.games.Join(msg, sess.ID, sess.Conn)
	case *protocol.GameAction:
		s.games.HandleAction(msg, sess.ID)
	case *protocol.GameNext:
		s.games.Next(msg.GameSessionID)
	case *protocol.GameLeave:
		s.games.Leave(msg.GameSessionID, sess.ID)
	case *protocol.AdminMute:
		s.moderator.Mute(sess, msg)
	case *protocol.AdminUnmute:
		s.moderator.Unmute(sess, msg)
	case *protocol.AdminKick:
		s.moderator.Kick(sess, msg)
	case *protocol.Ping:
		sess.send(protocol.Pong{Timestamp: msg.Timestamp})
	}
}

// disconnect runs cleanup for a closed connection: the room sees a left
// broadcast, game sessions drop the player, and the registry record goes
// away.
func (s *Server) disconnect(sess *Session) {
	log.Printf("client disconnected: %s", sess.ID)
	s.rooms.Disconnect(sess)
	s.games.DropConnection(sess.ID)
	s.sessions.RemoveSession(sess.ID)
}
