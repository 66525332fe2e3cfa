package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/playcities/citiesgame/game/registry"
)

// Server is a read-only REST view of the room registry. Gameplay happens
// over the TCP and websocket transports; this surface exists for dashboards
// and scripting.
type Server struct {
	registry *registry.Registry
	router   *mux.Router
}

// NewServer creates a new API server.
func NewServer(reg *registry.Registry) *Server {
	s := &Server{
		registry: reg,
		router:   mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/rooms", s.handleListRooms).Methods("GET")
	api.HandleFunc("/rooms/{name}", s.handleGetRoom).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Handlers

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := s.registry.ListRooms()
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Name < rooms[j].Name })

	limit := len(rooms)
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(rooms) {
			limit = l
		}
	}
	rooms = rooms[:limit]

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(rooms),
		"rooms": rooms,
	})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	rm, ok := s.registry.RoomByName(name)
	if !ok {
		respondError(w, http.StatusNotFound, "room not found")
		return
	}
	snap := rm.Snapshot()

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"room_name":      snap.RoomName,
		"players":        snap.Players,
		"used_cities":    snap.UsedCities,
		"last_letter":    snap.LastLetter,
		"game_started":   snap.GameStarted,
		"current_player": snap.CurrentPlayer,
		"used_count":     snap.UsedCount,
		"scores":         snap.Scores,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
