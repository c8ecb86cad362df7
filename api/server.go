package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/wricardo/grid-localization/game/config"
	"github.com/wricardo/grid-localization/game/engine"
	"github.com/wricardo/grid-localization/game/service"
	"github.com/wricardo/grid-localization/game/session"
	"github.com/wricardo/grid-localization/render"
	"github.com/wricardo/grid-localization/transport/websocket"
)

// Server represents the REST API server
type Server struct {
	service service.GameService
	hub     *websocket.Hub
	router  *mux.Router
}

// NewServer creates a new API server. hub may be nil, in which case no
// snapshots are pushed and /ws is not served.
func NewServer(gameService service.GameService, hub *websocket.Hub) *Server {
	s := &Server{
		service: gameService,
		hub:     hub,
		router:  mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(logRequests)

	api := s.router.PathPrefix("/api").Subrouter()

	// Session management
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")

	// Localization state
	api.HandleFunc("/sessions/{id}/snapshot", s.handleGetSnapshot).Methods("GET")
	api.HandleFunc("/sessions/{id}/board", s.handleGetBoard).Methods("GET")
	api.HandleFunc("/sessions/{id}/probability", s.handleGetProbability).Methods("GET")
	api.HandleFunc("/sessions/{id}/probability.png", s.handleGetHeatmap).Methods("GET")
	api.HandleFunc("/sessions/{id}/vehicle", s.handleGetVehicle).Methods("GET")
	api.HandleFunc("/sessions/{id}/estimate", s.handleGetEstimate).Methods("GET")

	// Simulation
	api.HandleFunc("/sessions/{id}/step", s.handleStep).Methods("POST")
	api.HandleFunc("/sessions/{id}/bulk-step", s.handleBulkStep).Methods("POST")
	api.HandleFunc("/sessions/{id}/restart", s.handleRestart).Methods("POST")

	// Palette
	api.HandleFunc("/colormap", s.handleColormap).Methods("GET")

	// Configuration
	api.HandleFunc("/configs", s.handleListConfigs).Methods("GET")
	api.HandleFunc("/configs", s.handleCreateConfig).Methods("POST")
	api.HandleFunc("/configs/{name}", s.handleGetConfig).Methods("GET")

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Single-board routes acting on the default session
	s.router.HandleFunc("/vehicle_position", s.handleLegacyVehiclePosition).Methods("GET")
	s.router.HandleFunc("/get_board", s.handleLegacyBoard).Methods("GET")
	s.router.HandleFunc("/get_probability", s.handleLegacyProbability).Methods("GET")
	s.router.HandleFunc("/get_colormap", s.handleLegacyColormap).Methods("GET")
	s.router.HandleFunc("/move", s.handleLegacyMove).Methods("POST")
	s.router.HandleFunc("/restart", s.handleLegacyRestart).Methods("POST")

	// WebSocket
	if s.hub != nil {
		s.router.HandleFunc("/ws", s.handleWebSocket)
	}
}

// ServeHTTP implements http.Handler
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
	respondJSON(w, status, map[string]interface{}{"error": message, "code": status})
}

// respondServiceError maps service errors onto HTTP statuses
func respondServiceError(w http.ResponseWriter, err error) {
	respondError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, config.ErrConfigNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidNumColors):
		return http.StatusUnprocessableEntity
	case errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, engine.ErrInvalidConfig),
		errors.Is(err, service.ErrInvalidSteps),
		errors.Is(err, session.ErrInvalidSessionID):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrSessionAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// queryInt parses an optional integer query parameter
func queryInt(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer", name)
	}
	return &v, nil
}

func (s *Server) broadcast(sessionID, event string, snap *engine.Snapshot) {
	if s.hub != nil && snap != nil {
		s.hub.BroadcastSnapshot(sessionID, event, snap)
	}
}

// Session Handlers

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfigID   string `json:"config_id,omitempty"`
		ConfigName string `json:"config_name,omitempty"`
	}

	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	configID := req.ConfigID
	if configID == "" {
		configID = req.ConfigName
	}

	info, err := s.service.CreateSession(r.Context(), configID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, info)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	query := r.URL.Query()
	sortBy := query.Get("sort") // "created", "accessed" (default)
	order := query.Get("order") // "asc", "desc" (default)
	if sortBy == "" {
		sortBy = "accessed"
	}
	if order == "" {
		order = "desc"
	}

	sort.Slice(sessions, func(i, j int) bool {
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

	total := len(sessions)
	if l, err := strconv.Atoi(query.Get("limit")); err == nil && l > 0 && l < total {
		sessions = sessions[:l]
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(sessions),
		"total":    total,
		"sessions": sessions,
		"sort":     sortBy,
		"order":    order,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if err := s.service.DeleteSession(r.Context(), sessionID); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session %s deleted", sessionID),
	})
}

// State Handlers

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.GetSnapshot(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	s.writeBoard(w, r, mux.Vars(r)["id"])
}

func (s *Server) handleGetProbability(w http.ResponseWriter, r *http.Request) {
	s.writeProbability(w, r, mux.Vars(r)["id"])
}

func (s *Server) handleGetVehicle(w http.ResponseWriter, r *http.Request) {
	s.writeVehiclePosition(w, r, mux.Vars(r)["id"])
}

func (s *Server) handleGetEstimate(w http.ResponseWriter, r *http.Request) {
	est, err := s.service.GetEstimate(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, est)
}

func (s *Server) handleGetHeatmap(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.GetSnapshot(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	opts := render.DefaultOptions()
	opts.HideVehicle, _ = strconv.ParseBool(r.URL.Query().Get("hide_vehicle"))

	// Render fully before writing so a failure still gets a clean JSON error
	var buf bytes.Buffer
	if err := render.Heatmap(&buf, snap, opts); err != nil {
		log.Error().Err(err).Str("session", mux.Vars(r)["id"]).Msg("Heatmap render failed")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

func (s *Server) writeBoard(w http.ResponseWriter, r *http.Request, sessionID string) {
	board, err := s.service.GetBoard(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"board": board})
}

func (s *Server) writeProbability(w http.ResponseWriter, r *http.Request, sessionID string) {
	field, err := s.service.GetProbabilityField(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"probability_field": field})
}

func (s *Server) writeVehiclePosition(w http.ResponseWriter, r *http.Request, sessionID string) {
	pos, err := s.service.GetVehiclePosition(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"vehicle_position": pos})
}

// Simulation Handlers

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	s.step(w, r, mux.Vars(r)["id"])
}

func (s *Server) step(w http.ResponseWriter, r *http.Request, sessionID string) {
	result, err := s.service.Step(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.broadcast(sessionID, websocket.EventStep, result.Snapshot)
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleBulkStep(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		Steps int `json:"steps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.BulkStep(r.Context(), sessionID, req.Steps)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.broadcast(sessionID, websocket.EventStep, result.Snapshot)
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	s.restart(w, r, mux.Vars(r)["id"])
}

// restart reads num_colors from the query string or a JSON body
func (s *Server) restart(w http.ResponseWriter, r *http.Request, sessionID string) {
	numColors, err := queryInt(r, "num_colors")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if numColors == nil && r.Body != nil && r.ContentLength != 0 {
		var req struct {
			NumColors *int `json:"num_colors"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		numColors = req.NumColors
	}

	snap, err := s.service.Restart(r.Context(), sessionID, numColors)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.broadcast(sessionID, websocket.EventRestart, snap)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Game restarted",
		"snapshot": snap,
	})
}

// Palette Handlers

func (s *Server) handleColormap(w http.ResponseWriter, r *http.Request) {
	colors, ok := s.colormap(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"colors": colors})
}

func (s *Server) colormap(w http.ResponseWriter, r *http.Request) ([]engine.Color, bool) {
	n, err := queryInt(r, "num_colors")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	numColors := 0
	if n != nil {
		numColors = *n
	}

	colors, err := s.service.GetColormap(r.Context(), numColors)
	if err != nil {
		respondServiceError(w, err)
		return nil, false
	}
	return colors, true
}

// Configuration Handlers

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.service.ListConfigs(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, configs)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.service.LoadConfig(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfigID string `json:"config_id,omitempty"`
		engine.Config
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "Config name is required")
		return
	}

	configID := req.ConfigID
	if configID == "" {
		configID = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(req.Name), " ", "-"))
	}

	if err := s.service.SaveConfig(r.Context(), configID, &req.Config); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":   "Configuration saved successfully",
		"config_id": configID,
	})
}

// Single-board Handlers

func (s *Server) handleLegacyVehiclePosition(w http.ResponseWriter, r *http.Request) {
	s.writeVehiclePosition(w, r, service.DefaultSessionID)
}

func (s *Server) handleLegacyBoard(w http.ResponseWriter, r *http.Request) {
	s.writeBoard(w, r, service.DefaultSessionID)
}

func (s *Server) handleLegacyProbability(w http.ResponseWriter, r *http.Request) {
	s.writeProbability(w, r, service.DefaultSessionID)
}

func (s *Server) handleLegacyMove(w http.ResponseWriter, r *http.Request) {
	s.step(w, r, service.DefaultSessionID)
}

func (s *Server) handleLegacyRestart(w http.ResponseWriter, r *http.Request) {
	s.restart(w, r, service.DefaultSessionID)
}

// handleLegacyColormap returns the palette keyed by color index
func (s *Server) handleLegacyColormap(w http.ResponseWriter, r *http.Request) {
	colors, ok := s.colormap(w, r)
	if !ok {
		return
	}

	colormap := make(map[string]interface{}, len(colors))
	for _, c := range colors {
		colormap[strconv.Itoa(c.Index)] = map[string]interface{}{
			"name": c.Name,
			"RGB":  c.RGB,
		}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"colormap": colormap})
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = service.DefaultSessionID
	}

	snap, err := s.service.GetSnapshot(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
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

// statusRecorder captures the response status for request logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets websocket upgrades through the recorder
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		event := log.Debug()
		if rec.status >= http.StatusInternalServerError {
			event = log.Warn()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
