package api

import (
	"net/http"

	"github.com/vcruvinelr/share-notes/internal/middleware"

	"github.com/gorilla/mux"
)

func SetupRoutes(h *Handler) *mux.Router {
	r := mux.NewRouter()

	// Middleware order: tracing first, then recovery, then CORS.
	r.Use(middleware.TracingMiddleware)
	r.Use(middleware.ErrorRecoveryMiddleware)
	r.Use(middleware.CORSMiddleware)

	api := r.PathPrefix("/api").Subrouter()

	// Identity
	api.HandleFunc("/me", h.GetMe).Methods("GET")

	// Note endpoints
	api.HandleFunc("/notes", h.CreateNote).Methods("POST")
	api.HandleFunc("/notes", h.ListNotes).Methods("GET")
	api.HandleFunc("/notes/shared/{token}", h.GetSharedNote).Methods("GET")
	api.HandleFunc("/notes/{id}", h.GetNote).Methods("GET")
	api.HandleFunc("/notes/{id}", h.UpdateNote).Methods("PUT")
	api.HandleFunc("/notes/{id}", h.DeleteNote).Methods("DELETE")
	api.HandleFunc("/notes/{id}/share", h.ShareNote).Methods("POST")
	api.HandleFunc("/notes/{id}/permissions", h.GrantPermission).Methods("POST")
	api.HandleFunc("/notes/{id}/operations", h.ListOperations).Methods("GET")
	api.HandleFunc("/notes/{id}/participants", h.ListParticipants).Methods("GET")

	// Health check endpoint
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// WebSocket routes
	r.HandleFunc("/ws/notes/{id}", h.HandleNoteWebSocket)

	return r
}
