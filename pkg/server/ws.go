package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/voicebridge/voicebridge/pkg/relay"
)

// closeSessionNotFound is the application close code sent when a client
// attaches a socket to an unknown session.
const closeSessionNotFound = 4404

// clientFrame is one inbound message from a downstream client.
type clientFrame struct {
	Type  string `json:"type"`
	Audio string `json:"audio,omitempty"`
	Text  string `json:"text,omitempty"`
}

// handleSessionSocket attaches one downstream listener to a session. The
// socket carries normalized session events out and client commands in; a
// client disconnect detaches the listener but leaves the session running.
func (s *Server) handleSessionSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sessionID := r.PathValue("id")
	session, err := s.registry.GetSession(sessionID)
	if err != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(closeSessionNotFound, "session not found"))
		return
	}
	log := s.log.With("session_id", sessionID)

	events := session.AddListener()
	defer session.RemoveListener(events)

	// The emitter goroutine is the socket's only writer after this frame.
	ready := relay.Event{Type: relay.EventSessionReady, SessionID: sessionID}
	if err := conn.WriteJSON(ready); err != nil {
		return
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case ev := <-events:
				if err := conn.WriteJSON(ev); err != nil {
					log.Info("websocket emitter stopped", "error", err)
					return
				}
			}
		}
	}()

	for {
		var frame clientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			log.Info("client disconnected")
			return
		}
		ctx := r.Context()
		switch frame.Type {
		case "audio_chunk":
			err = session.SendAudioChunk(ctx, frame.Audio)
		case "commit_audio":
			err = session.CommitAudio(ctx)
		case "clear_audio":
			err = session.ClearAudio(ctx)
		case "user_text":
			err = session.SendUserMessage(ctx, frame.Text)
		case "request_response":
			err = session.RequestResponse(ctx)
		default:
			log.Warn("unknown websocket message type", "type", frame.Type)
			continue
		}
		if err != nil {
			log.Error("client command failed", "type", frame.Type, "error", err)
		}
	}
}
