package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/wricardo/autotrack/game/engine"
	"github.com/wricardo/autotrack/game/service"
	"github.com/wricardo/autotrack/transport/websocket"
)

// Server represents the REST API server
type Server struct {
	service service.TrackService
	hub     *websocket.Hub
	router  *mux.Router
	logger  zerolog.Logger
}

// NewServer creates a new API server. hub may be nil, in which case /ws is
// not served.
func NewServer(trackService service.TrackService, hub *websocket.Hub, logger zerolog.Logger) *Server {
	s := &Server{
		service: trackService,
		hub:     hub,
		router:  mux.NewRouter(),
		logger:  logger,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Session management
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")

	// Editing tools
	api.HandleFunc("/sessions/{id}/track", s.handlePlaceTrack).Methods("POST")
	api.HandleFunc("/sessions/{id}/scenery", s.handlePlaceScenery).Methods("POST")
	api.HandleFunc("/sessions/{id}/erase", s.handleErase).Methods("POST")
	api.HandleFunc("/sessions/{id}/cars", s.handlePlaceCar).Methods("POST")
	api.HandleFunc("/sessions/{id}/cars", s.handleRemoveAllCars).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/reset", s.handleReset).Methods("POST")

	// Simulation
	api.HandleFunc("/sessions/{id}/snapshot", s.handleGetSnapshot).Methods("GET")
	api.HandleFunc("/sessions/{id}/tick", s.handleTick).Methods("POST")
	api.HandleFunc("/sessions/{id}/start", s.handleStart).Methods("POST")
	api.HandleFunc("/sessions/{id}/stop", s.handleStop).Methods("POST")

	// Saved tracks
	api.HandleFunc("/sessions/{id}/save", s.handleSaveTrack).Methods("POST")
	api.HandleFunc("/sessions/{id}/load", s.handleLoadTrack).Methods("POST")
	api.HandleFunc("/tracks", s.handleListTracks).Methods("GET")
	api.HandleFunc("/tracks/{name}", s.handleDeleteTrack).Methods("DELETE")

	// Layouts
	api.HandleFunc("/layouts", s.handleListLayouts).Methods("GET")
	api.HandleFunc("/layouts", s.handleSaveLayout).Methods("POST")
	api.HandleFunc("/layouts/{name}", s.handleGetLayout).Methods("GET")
	api.HandleFunc("/sessions/{id}/export", s.handleExportLayout).Methods("POST")

	// Catalogue
	api.HandleFunc("/designs", s.handleDesigns).Methods("GET")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	if s.hub != nil {
		s.router.HandleFunc("/ws", s.handleWebSocket)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps service and engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrTrackNotFound),
		errors.Is(err, service.ErrConfigNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrCellOccupied),
		errors.Is(err, engine.ErrTooManyCars),
		errors.Is(err, service.ErrSessionAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidArgument),
		errors.Is(err, service.ErrInvalidConfig),
		errors.Is(err, engine.ErrInvalidLayout),
		errors.Is(err, engine.ErrInvalidTrack),
		errors.Is(err, engine.ErrInvalidHeading),
		errors.Is(err, engine.ErrInvalidDesign),
		errors.Is(err, engine.ErrNoTrack),
		errors.Is(err, engine.ErrOutOfBounds):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	}
	respondError(w, status, err.Error())
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Session Handlers

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Layout string `json:"layout,omitempty"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := s.service.CreateSession(r.Context(), req.Layout)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	total := len(sessions)

	query := r.URL.Query()
	sortBy := query.Get("sort") // "created", "accessed" (default)
	order := query.Get("order") // "asc", "desc" (default)
	if sortBy == "" {
		sortBy = "accessed"
	}
	if order == "" {
		order = "desc"
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		var ti, tj time.Time
		if sortBy == "created" {
			ti, tj = sessions[i].CreatedAt, sessions[j].CreatedAt
		} else {
			ti, tj = sessions[i].LastAccessedAt, sessions[j].LastAccessedAt
		}
		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(sessions) {
			sessions = sessions[:l]
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"count":    len(sessions),
		"total":    total,
		"sessions": sessions,
		"sort":     sortBy,
		"order":    order,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.service.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if err := s.service.DeleteSession(r.Context(), sessionID); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session %s deleted", sessionID),
	})
}

// Editing Handlers

type cellRequest struct {
	X *int `json:"x"`
	Y *int `json:"y"`
}

func (c cellRequest) coords() (int, int, error) {
	if c.X == nil || c.Y == nil {
		return 0, 0, errors.New("x and y are required")
	}
	return *c.X, *c.Y, nil
}

func (s *Server) handlePlaceTrack(w http.ResponseWriter, r *http.Request) {
	var req struct {
		cellRequest
		Kind engine.TrackKind `json:"kind"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	x, y, err := req.coords()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := s.service.PlaceTrack(r.Context(), mux.Vars(r)["id"], x, y, req.Kind)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePlaceScenery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		cellRequest
		Kind engine.SceneryKind `json:"kind"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	x, y, err := req.coords()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := s.service.PlaceScenery(r.Context(), mux.Vars(r)["id"], x, y, req.Kind)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleErase(w http.ResponseWriter, r *http.Request) {
	var req cellRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	x, y, err := req.coords()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := s.service.Erase(r.Context(), mux.Vars(r)["id"], x, y)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePlaceCar(w http.ResponseWriter, r *http.Request) {
	var req struct {
		cellRequest
		Design int `json:"design,omitempty"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	x, y, err := req.coords()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	car, err := s.service.PlaceCar(r.Context(), mux.Vars(r)["id"], x, y, req.Design)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, car)
}

func (s *Server) handleRemoveAllCars(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.RemoveAllCars(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.ResetToStarter(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message":  "Track reset to starter loop",
		"snapshot": snap,
	})
}

// Simulation Handlers

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.GetSnapshot(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	req := struct {
		N int `json:"n"`
	}{N: 1}
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if nStr := r.URL.Query().Get("n"); nStr != "" {
		n, err := strconv.Atoi(nStr)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid n %q", nStr))
			return
		}
		req.N = n
	}

	result, err := s.service.Tick(r.Context(), mux.Vars(r)["id"], req.N)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	status, err := s.service.StartSimulation(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	status, err := s.service.StopSimulation(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// Saved Track Handlers

type nameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleSaveTrack(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	info, err := s.service.SaveTrack(r.Context(), mux.Vars(r)["id"], req.Name)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, info)
}

func (s *Server) handleLoadTrack(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	snap, err := s.service.LoadTrack(r.Context(), mux.Vars(r)["id"], req.Name)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.service.ListTracks(r.Context())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tracks)
}

func (s *Server) handleDeleteTrack(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.service.DeleteTrack(r.Context(), name); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Track %q deleted", name),
	})
}

// Layout Handlers

func (s *Server) handleListLayouts(w http.ResponseWriter, r *http.Request) {
	layouts, err := s.service.ListLayouts(r.Context())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, layouts)
}

func (s *Server) handleGetLayout(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSuffix(mux.Vars(r)["name"], ".json")

	cfg, err := s.service.LoadLayout(r.Context(), name)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleSaveLayout(w http.ResponseWriter, r *http.Request) {
	var cfg engine.TrackConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if cfg.Name == "" {
		respondError(w, http.StatusBadRequest, "Layout name is required")
		return
	}

	if err := s.service.SaveLayout(r.Context(), cfg.Name, &cfg); err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{
		"message":   "Layout saved successfully",
		"layout_id": cfg.Name,
	})
}

func (s *Server) handleExportLayout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
	}
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cfg, err := s.service.ExportLayout(r.Context(), mux.Vars(r)["id"], req.Name, req.Description)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleDesigns(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, engine.CarDesigns)
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}

	snap, err := s.service.GetSnapshot(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "Invalid session", http.StatusNotFound)
		return
	}

	s.hub.ServeWS(w, r, sessionID, snap)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
