// Package server exposes the relay over HTTP: a JSON API for session and
// agent management, a WebSocket endpoint streaming normalized session
// events, and optional static SPA serving.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/voicebridge/voicebridge/pkg/agentstore"
	"github.com/voicebridge/voicebridge/pkg/relay"
)

// AgentCreator provisions agents in the AI project. Satisfied by
// aiproject.Client.
type AgentCreator interface {
	CreateAgent(ctx context.Context, model, name, instructions string) (string, error)
}

// Defaults reported by GET /api/config when no agent is active yet.
const (
	defaultModel        = "gpt-4o-mini"
	defaultAgentName    = "voice-agent"
	defaultInstructions = "You are an AI Voice Assistant designed to have natural conversations with users."
)

// Config wires the server's collaborators.
type Config struct {
	Registry *relay.Registry
	Agents   *agentstore.Store

	// Creator is used by POST /api/config to provision new agents. May be
	// nil, in which case only existing agents can be activated.
	Creator AgentCreator

	// StaticDir, when set, serves a built frontend with an index.html SPA
	// fallback for non-API paths.
	StaticDir string
}

// Server is the HTTP layer. Build one with New and mount Handler.
type Server struct {
	registry  *relay.Registry
	agents    *agentstore.Store
	creator   AgentCreator
	staticDir string
	log       *slog.Logger
	upgrader  websocket.Upgrader
}

// New builds the HTTP layer around an existing registry and agent store.
func New(cfg Config) *Server {
	return &Server{
		registry:  cfg.Registry,
		agents:    cfg.Agents,
		creator:   cfg.Creator,
		staticDir: cfg.StaticDir,
		log:       slog.Default(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the full route table wrapped in CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /api/session", s.handleCreateSession)
	mux.HandleFunc("GET /api/session/{id}", s.handleSessionStatus)
	mux.HandleFunc("POST /api/session/{id}/avatar/connect", s.handleAvatarConnect)
	mux.HandleFunc("POST /api/session/{id}/avatar/disconnect", s.handleAvatarDisconnect)
	mux.HandleFunc("POST /api/session/{id}/message", s.handleTextMessage)
	mux.HandleFunc("POST /sessions/{id}/commit-audio", s.handleCommitAudio)
	mux.HandleFunc("GET /api/ws/{id}", s.handleSessionSocket)

	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("POST /api/config", s.handleUpdateConfig)
	mux.HandleFunc("GET /api/agents", s.handleListAgents)
	mux.HandleFunc("POST /api/agents/{id}/activate", s.handleActivateAgent)
	mux.HandleFunc("DELETE /api/agents/{id}", s.handleDeleteAgent)
	mux.HandleFunc("DELETE /api/config/agent", s.handleResetAgent)

	mux.HandleFunc("/", s.handleStatic)

	return cors(mux)
}

// cors allows any origin, matching the original deployment which fronts a
// separately served SPA during development.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "*")
		h.Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "voicebridge",
	})
}
