package server

import (
	"encoding/json"
	"net/http"

	"github.com/voicebridge/voicebridge/pkg/relay"
)

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	session := s.registry.CreateSession()
	writeJSON(w, http.StatusOK, map[string]string{"session_id": session.ID()})
}

// session resolves the path's session id, writing a 404 on miss.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*relay.Session, bool) {
	session, err := s.registry.GetSession(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return nil, false
	}
	return session, true
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": session.ID(),
		"status":     "active",
	})
}

func (s *Server) handleAvatarConnect(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		ClientSDP string `json:"client_sdp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClientSDP == "" {
		writeError(w, http.StatusBadRequest, "client_sdp is required")
		return
	}

	s.log.Info("handling avatar connect request", "session_id", session.ID())
	serverSDP, err := session.ConnectAvatar(r.Context(), req.ClientSDP)
	if err != nil {
		s.log.Error("avatar connection failed", "session_id", session.ID(), "error", err)
		writeError(w, http.StatusInternalServerError, "Avatar connection failed: "+err.Error())
		return
	}
	s.log.Info("avatar connect successful", "session_id", session.ID())
	writeJSON(w, http.StatusOK, map[string]string{"server_sdp": serverSDP})
}

func (s *Server) handleAvatarDisconnect(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := session.DisconnectAvatar(r.Context()); err != nil {
		s.log.Error("avatar disconnect failed", "session_id", session.ID(), "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Avatar disconnected",
	})
}

func (s *Server) handleTextMessage(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := session.SendUserMessage(r.Context(), req.Text); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "queued"})
}

func (s *Server) handleCommitAudio(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := session.CommitAudio(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "committed"})
}
