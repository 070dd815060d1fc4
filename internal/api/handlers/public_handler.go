package handlers

import (
	"fmt"
	"log"
	"net/http"

	"github.com/progate-hackathon-strawberry-flavor/gitris-engine/internal/services/tetris"
)

func PublicHandlerFunc(w http.ResponseWriter, r *http.Request) {
	log.Println("Request to public endpoint: /api/public")
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "Hello, this is public content! (From /api/public)")
}

// StatusHandler reports how many sessions the server is currently running.
type StatusHandler struct {
	SessionManager *tetris.SessionManager
}

func NewStatusHandler(sm *tetris.SessionManager) *StatusHandler {
	return &StatusHandler{SessionManager: sm}
}

// GetStatus
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	WriteJSONResponse(w, http.StatusOK, map[string]int{
		"active_sessions": h.SessionManager.ActiveSessions(),
	})
}
