package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// handleStatic serves the built frontend, falling back to index.html for
// client-routed paths. Without a configured static dir everything 404s.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if s.staticDir == "" || r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/sessions/") {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	name := strings.TrimPrefix(filepath.Clean(r.URL.Path), "/")
	if name != "" {
		full := filepath.Join(s.staticDir, name)
		if info, err := os.Stat(full); err == nil && !info.IsDir() {
			http.ServeFile(w, r, full)
			return
		}
	}

	index := filepath.Join(s.staticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	http.ServeFile(w, r, index)
}
