// Package game manages ephemeral multiplayer mini-game sessions anchored
// to zones inside rooms. Sessions live entirely in memory: one per
// (room, zone) pair while any player remains, torn down when the last
// player leaves or shortly after the game finishes.
package game

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atriumhq/atrium/pkg/protocol"
)

// Sender delivers outbound events to one client connection.
type Sender interface {
	SendEvent(ev protocol.Event) error
}

// Session lifecycle states.
const (
	StateWaiting    = "waiting"
	StateInProgress = "in-progress"
	StateFinished   = "finished"
)

// pointsPerCorrectAnswer is the fixed score increment for a correct quiz
// answer.
const pointsPerCorrectAnswer = 10

// DefaultFinishedRetention keeps a finished session around long enough
// for trailing clients to render the final scores.
const DefaultFinishedRetention = 60 * time.Second

type player struct {
	userID   string
	connID   string
	name     string
	score    int
	answered bool // answered the current question
	sender   Sender
}

type session struct {
	id        string
	roomID    string
	zoneID    string
	gameID    string
	kind      string
	state     string
	players   []*player
	questions []protocol.QuizQuestion
	current   int
	startedAt time.Time
}

type zoneKey struct {
	roomID string
	zoneID string
}

// Manager owns every live game session, indexed by (room, zone) and by
// session id. All methods are safe for concurrent use; the manager mutex
// is held across each operation's mutation and fanout so events within a
// session group are delivered in invocation order.
type Manager struct {
	mu        sync.Mutex
	byZone    map[zoneKey]*session
	byID      map[string]*session
	questions []protocol.QuizQuestion
	retention time.Duration

	metrics MetricsRecorder
}

// MetricsRecorder is the metrics surface the manager needs. Nil-safe via
// the manager's own checks.
type MetricsRecorder interface {
	RecordActiveGameSessions(count int)
}

// NewManager creates a game session manager. retention controls how long
// a finished session lingers before deletion; zero means
// DefaultFinishedRetention.
func NewManager(retention time.Duration) *Manager {
	if retention <= 0 {
		retention = DefaultFinishedRetention
	}
	return &Manager{
		byZone:    make(map[zoneKey]*session),
		byID:      make(map[string]*session),
		questions: defaultQuizQuestions(),
		retention: retention,
	}
}

// SetMetrics attaches metrics to the manager.
func (m *Manager) SetMetrics(rec MetricsRecorder) {
	m.metrics = rec
}

// Join finds or creates the session for (roomID, zoneID) and adds the
// caller as a player. Rejoining under the same user identity refreshes the
// player's connection rather than duplicating it. The joiner receives the
// full session state; the rest of the group gets a player_joined update.
func (m *Manager) Join(msg *protocol.GameJoin, connID string, sender Sender) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := zoneKey{roomID: msg.RoomID, zoneID: msg.ZoneID}
	sess, ok := m.byZone[key]
	if !ok {
		sess = &session{
			id:        uuid.NewString(),
			roomID:    msg.RoomID,
			zoneID:    msg.ZoneID,
			gameID:    msg.GameID,
			kind:      "quiz",
			state:     StateWaiting,
			questions: append([]protocol.QuizQuestion(nil), m.questions...),
			startedAt: time.Now(),
		}
		m.byZone[key] = sess
		m.byID[sess.id] = sess
		log.Printf("created game session %s for zone %s in room %s", sess.id, msg.ZoneID, msg.RoomID)
		if m.metrics != nil {
			m.metrics.RecordActiveGameSessions(len(m.byID))
		}
	}

	var joined *player
	for _, p := range sess.players {
		if p.userID == msg.UserID {
			// Reconnect: refresh routing, keep the score.
			p.connID = connID
			p.sender = sender
			joined = p
			break
		}
	}
	if joined == nil {
		joined = &player{
			userID: msg.UserID,
			connID: connID,
			name:   msg.Username,
			sender: sender,
		}
		sess.players = append(sess.players, joined)
	}

	snap := sess.snapshot()
	sendTo(joined, protocol.GameJoined{
		GameSessionID: sess.id,
		Players:       snap.Players,
		InitialState:  snap,
	})
	pub := joined.public()
	sess.broadcastExcept(joined, protocol.GameUpdate{
		Kind:   protocol.UpdatePlayerJoined,
		Player: &pub,
	})
}

// HandleAction dispatches a generic game action from a connection. An
// unknown session id is a no-op: clients may race with cleanup.
func (m *Manager) HandleAction(msg *protocol.GameAction, connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.byID[msg.GameSessionID]
	if !ok {
		return
	}
	p := sess.playerByConn(connID)
	if p == nil {
		return
	}

	switch msg.ActionType {
	case protocol.ActionStartGame:
		m.startLocked(sess)
	case protocol.ActionSubmitAnswer:
		var answer protocol.SubmitAnswerPayload
		if err := unmarshalPayload(msg.Payload, &answer); err != nil {
			sendTo(p, protocol.GameError{Message: "Invalid answer payload"})
			return
		}
		m.submitAnswerLocked(sess, p, answer.AnswerIndex)
	default:
		sendTo(p, protocol.GameError{Message: "Unknown action"})
	}
}

// Next explicitly advances a session to the next question. Unknown ids
// are ignored.
func (m *Manager) Next(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.byID[sessionID]
	if !ok {
		return
	}
	m.nextQuestionLocked(sess)
}

// Leave removes the player routed through connID from a session. The
// group sees the updated roster; an emptied session is deleted
// immediately.
func (m *Manager) Leave(sessionID, connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.byID[sessionID]
	if !ok {
		return
	}
	m.removePlayerLocked(sess, connID)
}

// DropConnection removes a disconnected connection from every session it
// participates in.
func (m *Manager) DropConnection(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sess := range m.byID {
		if sess.playerByConn(connID) != nil {
			m.removePlayerLocked(sess, connID)
		}
	}
}

// SessionCount returns the number of live sessions.
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// Snapshot returns the public state of a session, for tests and the stats
// endpoint.
func (m *Manager) Snapshot(sessionID string) (protocol.GameSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.byID[sessionID]
	if !ok {
		return protocol.GameSnapshot{}, false
	}
	return sess.snapshot(), true
}

func (m *Manager) startLocked(sess *session) {
	if sess.state != StateWaiting {
		return
	}
	sess.state = StateInProgress
	sess.current = 0
	sess.resetAnswers()

	sess.broadcast(protocol.GameState{GameSnapshot: sess.snapshot()})
}

func (m *Manager) submitAnswerLocked(sess *session, p *player, answerIndex int) {
	if sess.state != StateInProgress || sess.current >= len(sess.questions) {
		return
	}

	question := sess.questions[sess.current]
	correct := answerIndex == question.CorrectIndex
	if correct && !p.answered {
		p.score += pointsPerCorrectAnswer
	}
	p.answered = true

	sess.broadcast(protocol.GameUpdate{
		Kind:       protocol.UpdateScore,
		Players:    sess.roster(),
		LastAnswer: &protocol.AnswerResult{PlayerID: p.userID, Correct: correct},
	})

	// Advance once every current player has answered this question.
	for _, pl := range sess.players {
		if !pl.answered {
			return
		}
	}
	m.nextQuestionLocked(sess)
}

func (m *Manager) nextQuestionLocked(sess *session) {
	if sess.state != StateInProgress {
		return
	}
	if sess.current < len(sess.questions)-1 {
		sess.current++
		sess.resetAnswers()
		idx := sess.current
		sess.broadcast(protocol.GameUpdate{
			Kind:                 protocol.UpdateNextQuestion,
			CurrentQuestionIndex: &idx,
		})
		return
	}
	m.finishLocked(sess)
}

func (m *Manager) finishLocked(sess *session) {
	sess.state = StateFinished
	sess.broadcast(protocol.GameEnded{FinalScores: sess.roster()})

	// Keep the finished session around so trailing clients can render the
	// result, then delete it.
	id := sess.id
	time.AfterFunc(m.retention, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.deleteLocked(id)
	})
}

func (m *Manager) removePlayerLocked(sess *session, connID string) {
	kept := sess.players[:0]
	for _, p := range sess.players {
		if p.connID != connID {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(sess.players) {
		return
	}
	sess.players = kept

	sess.broadcast(protocol.GameUpdate{
		Kind:    protocol.UpdatePlayerLeft,
		Players: sess.roster(),
	})

	if len(sess.players) == 0 {
		m.deleteLocked(sess.id)
		log.Printf("game session %s ended (empty)", sess.id)
	}
}

func (m *Manager) deleteLocked(sessionID string) {
	sess, ok := m.byID[sessionID]
	if !ok {
		return
	}
	delete(m.byID, sessionID)
	delete(m.byZone, zoneKey{roomID: sess.roomID, zoneID: sess.zoneID})
	if m.metrics != nil {
		m.metrics.RecordActiveGameSessions(len(m.byID))
	}
}

func (s *session) playerByConn(connID string) *player {
	for _, p := range s.players {
		if p.connID == connID {
			return p
		}
	}
	return nil
}

func (s *session) resetAnswers() {
	for _, p := range s.players {
		p.answered = false
	}
}

func (s *session) roster() []protocol.GamePlayer {
	out := make([]protocol.GamePlayer, len(s.players))
	for i, p := range s.players {
		out[i] = p.public()
	}
	return out
}

func (s *session) snapshot() protocol.GameSnapshot {
	return protocol.GameSnapshot{
		SessionID:            s.id,
		RoomID:               s.roomID,
		ZoneID:               s.zoneID,
		GameID:               s.gameID,
		Kind:                 s.kind,
		Players:              s.roster(),
		State:                s.state,
		Questions:            s.questions,
		CurrentQuestionIndex: s.current,
		StartedAt:            s.startedAt.UnixMilli(),
	}
}

// broadcast delivers an event to the session group (every player's
// connection). Send failures are ignored; dead connections are dropped by
// their read loops.
func (s *session) broadcast(ev protocol.Event) {
	s.broadcastExcept(nil, ev)
}

func (s *session) broadcastExcept(skip *player, ev protocol.Event) {
	for _, p := range s.players {
		if p == skip {
			continue
		}
		sendTo(p, ev)
	}
}

func (p *player) public() protocol.GamePlayer {
	return protocol.GamePlayer{
		UserID:       p.userID,
		ConnectionID: p.connID,
		Name:         p.name,
		Score:        p.score,
	}
}

func sendTo(p *player, ev protocol.Event) {
	if err := p.sender.SendEvent(ev); err != nil {
		log.Printf("game: send %s to %s failed: %v", ev.EventType(), p.connID, err)
	}
}
