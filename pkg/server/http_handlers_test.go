package server

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumhq/atrium/pkg/protocol"
)

func TestHealthHandler(t *testing.T) {
	srv := NewServer(DefaultConfig(), nil, nil, nil)

	rec := httptest.NewRecorder()
	srv.HealthHandler(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestStatsHandler(t *testing.T) {
	srv := NewServer(DefaultConfig(), nil, nil, nil)

	sess := srv.Sessions().CreateSession(newMockConn())
	srv.Rooms().Join(sess, &protocol.RoomJoin{RoomID: "lobby", UserID: "u1", Name: "Alice"})

	rec := httptest.NewRecorder()
	srv.StatsHandler(rec, httptest.NewRequest("GET", "/stats", nil))

	assert.Equal(t, 200, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1.0, body["sessions"])
	assert.Equal(t, 1.0, body["rooms"])
	assert.Equal(t, 1.0, body["roomMembers"])
	assert.Equal(t, 0.0, body["gameSessions"])
	assert.Contains(t, body, "uptimeSeconds")
}
