package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/voicebridge/voicebridge/pkg/agentstore"
)

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	current, err := s.agents.Current(r.Context())
	if errors.Is(err, agentstore.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]string{
			"model":        defaultModel,
			"agent_name":   defaultAgentName,
			"instructions": defaultInstructions,
			"agent_id":     "",
		})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"model":        current.Model,
		"agent_name":   current.Name,
		"instructions": current.Instructions,
		"agent_id":     current.ID,
	})
}

// handleUpdateConfig reuses an agent with an identical configuration when
// one exists, otherwise provisions a new one upstream and records it.
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Model        string `json:"model"`
		AgentName    string `json:"agent_name"`
		Instructions string `json:"instructions"`
	}{
		Model:        defaultModel,
		AgentName:    defaultAgentName,
		Instructions: defaultInstructions,
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	existing, err := s.agents.Find(r.Context(), req.Model, req.AgentName, req.Instructions)
	if err == nil {
		if _, err := s.agents.Activate(r.Context(), existing.ID); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.log.Info("agent already exists with same configuration", "agent_id", existing.ID)
		writeJSON(w, http.StatusOK, map[string]string{
			"agent_id": existing.ID,
			"status":   "success",
			"message":  fmt.Sprintf("Using existing agent with ID: %s", existing.ID),
		})
		return
	}
	if !errors.Is(err, agentstore.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if s.creator == nil {
		writeError(w, http.StatusInternalServerError, "agent provisioning is not configured")
		return
	}
	s.log.Info("creating new agent", "model", req.Model, "name", req.AgentName)
	agentID, err := s.creator.CreateAgent(r.Context(), req.Model, req.AgentName, req.Instructions)
	if err != nil {
		s.log.Error("failed to create agent", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create agent: "+err.Error())
		return
	}
	err = s.agents.Add(r.Context(), agentstore.Agent{
		ID:           agentID,
		Model:        req.Model,
		Name:         req.AgentName,
		Instructions: req.Instructions,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Info("new agent created", "agent_id", agentID)
	writeJSON(w, http.StatusOK, map[string]string{
		"agent_id": agentID,
		"status":   "success",
		"message":  fmt.Sprintf("New agent created successfully with ID: %s", agentID),
	})
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.agents.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	currentID := ""
	if current, err := s.agents.Current(r.Context()); err == nil {
		currentID = current.ID
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agents":           agents,
		"current_agent_id": currentID,
		"total_count":      len(agents),
	})
}

func (s *Server) handleActivateAgent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.agents.Activate(r.Context(), id); err != nil {
		if errors.Is(err, agentstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Agent %s not found", id))
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "success",
		"message":  fmt.Sprintf("Agent %s is now active", id),
		"agent_id": id,
	})
}

func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.agents.Delete(r.Context(), id); err != nil {
		if errors.Is(err, agentstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Agent %s not found", id))
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": fmt.Sprintf("Agent %s deleted successfully", id),
	})
}

func (s *Server) handleResetAgent(w http.ResponseWriter, r *http.Request) {
	if err := s.agents.ClearCurrent(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Info("agent configuration reset")
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Current agent selection has been cleared",
	})
}
