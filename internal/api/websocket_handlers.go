package api

import (
	"net/http"
)

// WebSocket endpoints

// HandleNoteWebSocket upgrades a collaboration connection for a note.
// The gateway owns everything past the upgrade.
func (h *Handler) HandleNoteWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsHandler(w, r)
}
