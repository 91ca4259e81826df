package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInboundRoomJoin(t *testing.T) {
	frame := `{"type":"room:join","payload":{"roomId":"lobby","userId":"u1","name":"Alice","avatarColor":"#ff0000"}}`

	msg, wireType, err := DecodeInbound([]byte(frame))
	require.NoError(t, err)
	assert.Equal(t, TypeRoomJoin, wireType)

	join, ok := msg.(*RoomJoin)
	require.True(t, ok)
	assert.Equal(t, "lobby", join.RoomID)
	assert.Equal(t, "u1", join.UserID)
	assert.Equal(t, "Alice", join.Name)
	assert.Equal(t, "#ff0000", join.AvatarColor)
}

func TestDecodeInboundMove(t *testing.T) {
	msg, _, err := DecodeInbound([]byte(`{"type":"player:move","payload":{"x":12.5,"y":-3}}`))
	require.NoError(t, err)

	move := msg.(*PlayerMove)
	assert.Equal(t, 12.5, move.X)
	assert.Equal(t, -3.0, move.Y)
}

func TestDecodeInboundSignalPreservesRawPayload(t *testing.T) {
	frame := `{"type":"webrtc:offer","payload":{"targetId":"c2","offer":{"sdp":"v=0","type":"offer"}}}`

	msg, _, err := DecodeInbound([]byte(frame))
	require.NoError(t, err)

	offer := msg.(*WebRTCOffer)
	assert.Equal(t, "c2", offer.TargetID)
	// The SDP body passes through untouched.
	assert.JSONEq(t, `{"sdp":"v=0","type":"offer"}`, string(offer.Offer))
}

func TestDecodeInboundGameAction(t *testing.T) {
	frame := `{"type":"game:action","payload":{"gameSessionId":"g1","actionType":"submit_answer","payload":{"answerIndex":2}}}`

	msg, _, err := DecodeInbound([]byte(frame))
	require.NoError(t, err)

	action := msg.(*GameAction)
	assert.Equal(t, "g1", action.GameSessionID)
	assert.Equal(t, ActionSubmitAnswer, action.ActionType)

	var answer SubmitAnswerPayload
	require.NoError(t, json.Unmarshal(action.Payload, &answer))
	assert.Equal(t, 2, answer.AnswerIndex)
}

func TestDecodeInboundMissingPayload(t *testing.T) {
	msg, _, err := DecodeInbound([]byte(`{"type":"ping"}`))
	require.NoError(t, err)
	assert.Zero(t, msg.(*Ping).Timestamp)
}

func TestDecodeInboundUnknownType(t *testing.T) {
	_, wireType, err := DecodeInbound([]byte(`{"type":"room:explode","payload":{}}`))
	require.Error(t, err)
	assert.Equal(t, "room:explode", wireType)
}

func TestDecodeInboundMalformedFrame(t *testing.T) {
	_, _, err := DecodeInbound([]byte(`{not json`))
	require.Error(t, err)

	_, _, err = DecodeInbound([]byte(`{"type":"player:move","payload":{"x":"twelve"}}`))
	require.Error(t, err)
}

func TestEncodeEventWrapsEnvelope(t *testing.T) {
	frame, err := EncodeEvent(PlayerMoved{PlayerID: "u1", X: 1, Y: 2})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	assert.Equal(t, TypePlayerMoved, env.Type)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "u1", payload["playerId"])
	assert.Equal(t, 1.0, payload["x"])
}

func TestSignalEventSerializesUnderItsKind(t *testing.T) {
	ev := SignalEvent{
		Kind:     TypeWebRTCAnswer,
		SourceID: "c1",
		Answer:   json.RawMessage(`{"type":"answer"}`),
	}

	frame, err := EncodeEvent(ev)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	assert.Equal(t, TypeWebRTCAnswer, env.Type)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "c1", payload["sourceId"])
	assert.Contains(t, payload, "answer")
	assert.NotContains(t, payload, "offer")
	assert.NotContains(t, payload, "candidate")
}

func TestQuizQuestionHidesCorrectIndex(t *testing.T) {
	q := QuizQuestion{
		ID:           "q1",
		Question:     "What is the capital of France?",
		Options:      []string{"London", "Berlin", "Paris", "Madrid"},
		CorrectIndex: 2,
	}

	data, err := json.Marshal(q)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.NotContains(t, out, "correctIndex")
	assert.NotContains(t, out, "CorrectIndex")
	assert.Contains(t, out, "options")
}
