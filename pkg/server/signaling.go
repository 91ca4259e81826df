package server

import (
	"encoding/json"

	"github.com/atriumhq/atrium/pkg/protocol"
)

// SignalingRelay forwards WebRTC negotiation messages between two
// connections, addressed by connection id. It never inspects or mutates
// payloads: the server only brokers the handshake, the media path is
// peer-to-peer.
type SignalingRelay struct {
	sessions *SessionManager
	metrics  *Metrics
}

// NewSignalingRelay creates a relay over the session registry.
func NewSignalingRelay(sessions *SessionManager) *SignalingRelay {
	return &SignalingRelay{sessions: sessions}
}

// SetMetrics attaches metrics to the relay.
func (r *SignalingRelay) SetMetrics(metrics *Metrics) {
	r.metrics = metrics
}

// Relay forwards payload to the target connection, re-tagged with the
// source connection id. A disconnected target is a silent drop: clients
// legitimately race with server-side cleanup, so no error flows back.
func (r *SignalingRelay) Relay(kind string, from *Session, targetID string, payload json.RawMessage) {
	target, ok := r.sessions.GetSession(targetID)
	if !ok {
		debugLog.Printf("signaling %s from %s dropped: target %s gone", kind, from.ID, targetID)
		if r.metrics != nil {
			r.metrics.RecordSignalDropped(kind)
		}
		return
	}

	ev := protocol.SignalEvent{Kind: kind, SourceID: from.ID}
	switch kind {
	case protocol.TypeWebRTCOffer:
		ev.Offer = payload
	case protocol.TypeWebRTCAnswer:
		ev.Answer = payload
	case protocol.TypeWebRTCCandidate:
		ev.Candidate = payload
	default:
		debugLog.Printf("signaling: unknown kind %q from %s", kind, from.ID)
		return
	}

	target.send(ev)
	if r.metrics != nil {
		r.metrics.RecordSignalRelayed(kind)
	}
}
