package ws

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/quyht-dev/tienlen/internal/app"
)

// NewRouter mounts the WebSocket endpoint next to health and room listing.
func NewRouter(h *Handler, rooms *app.RoomRegistry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/rooms", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, rooms.List())
	})
	r.Get("/ws", h.ServeHTTP)
	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
