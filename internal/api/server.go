// Package api provides the HTTP API for watching a conquest run.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brighammerrick/Civilization-Simulation/internal/engine"
	"github.com/brighammerrick/Civilization-Simulation/internal/persistence"
	"github.com/brighammerrick/Civilization-Simulation/internal/render"
	"github.com/brighammerrick/Civilization-Simulation/internal/world"
)

const maxStreamConns = 8

// Server serves the simulation over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	DB       *persistence.DB // Optional; history and snapshots need it
	RunID    string
	DataDir  string // Snapshot root
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	streamConns atomic.Int32
	upgrader    websocket.Upgrader
	http        *http.Server
}

// Handler builds the routing table.
func (s *Server) Handler() http.Handler {
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	// PNG encoding is the only expensive read.
	frameLimiter := NewRateLimiter(2, 5)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/map", s.handleMap)
	mux.HandleFunc("/api/v1/civs", s.handleCivs)
	mux.HandleFunc("/api/v1/wars", s.handleWars)
	mux.HandleFunc("/api/v1/annexations", s.handleAnnexations)
	mux.HandleFunc("/api/v1/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/history", s.handleHistory)
	mux.HandleFunc("/api/v1/frame.png", RateLimitMiddleware(frameLimiter, s.handleFrame))
	mux.HandleFunc("/api/v1/stream", s.handleStream)

	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/snapshot", s.adminOnly(s.handleSnapshot))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.http = &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Close stops the listener started by Start.
func (s *Server) Close() error {
	if s.http == nil {
		return nil
	}
	return s.http.Close()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// CORS_ORIGINS holds a comma-separated list; localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no CONQUEST_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

// intParam parses a positive query parameter, falling back to def outside [1, ceiling].
func intParam(r *http.Request, name string, def, ceiling int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= ceiling {
			return n
		}
	}
	return def
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	view := s.Sim.Snapshot()

	status := map[string]any{
		"run_id":      s.RunID,
		"tick":        view.Frame,
		"grid_size":   view.Grid.Size,
		"seed":        s.Sim.Seed,
		"alive_civs":  view.Stats.AliveCivs,
		"active_wars": view.Stats.ActiveWars,
		"neutral":     view.Stats.NeutralTiles,
		"annexations": view.Stats.Annexations,
		"finished":    view.Stats.AliveCivs <= 1,
		"leader": map[string]any{
			"id":    view.Stats.LeaderID,
			"name":  s.Sim.Civs.Name(view.Stats.LeaderID),
			"tiles": view.Stats.LeaderTiles,
		},
	}
	if s.Eng != nil {
		status["speed"] = s.Eng.Speed()
		status["running"] = s.Eng.Running()
	}
	writeJSON(w, status)
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	view := s.Sim.Snapshot()
	writeJSON(w, map[string]any{
		"tick":        view.Frame,
		"size":  view.Grid.Size,
		"cells": view.Grid.Cells,
	})
}

func (s *Server) handleCivs(w http.ResponseWriter, r *http.Request) {
	type civSummary struct {
		ID            world.Cell `json:"id"`
		Name          string     `json:"name"`
		Color         string     `json:"color"`
		Tiles         int        `json:"tiles"`
		Alive         bool       `json:"alive"`
		LastExpansion *uint64    `json:"last_expansion"`
		LastWar       *uint64    `json:"last_war"`
		Enemies       []string   `json:"enemies"`
	}

	view := s.Sim.Snapshot()
	out := make([]civSummary, 0, len(s.Sim.Civs.Civs))
	for _, c := range s.Sim.Civs.Civs {
		tiles := view.Sizes[c.ID.Index()]
		cs := civSummary{
			ID:      c.ID,
			Name:    c.Name,
			Color:   fmt.Sprintf("#%02x%02x%02x", c.Color.R, c.Color.G, c.Color.B),
			Tiles:   tiles,
			Alive:   tiles > 0,
			Enemies: []string{},
		}
		if f, ok := view.LastExpansion[c.ID]; ok {
			cs.LastExpansion = &f
		}
		if f, ok := view.LastWarFrame[c.ID]; ok {
			cs.LastWar = &f
		}
		for _, p := range view.Wars {
			if p.Involves(c.ID) {
				cs.Enemies = append(cs.Enemies, s.Sim.Civs.Name(p.Other(c.ID)))
			}
		}
		out = append(out, cs)
	}
	writeJSON(w, out)
}

func (s *Server) handleWars(w http.ResponseWriter, r *http.Request) {
	type warSummary struct {
		A         world.Cell `json:"a"`
		B         world.Cell `json:"b"`
		AName     string     `json:"a_name"`
		BName     string     `json:"b_name"`
		Intensity float64    `json:"intensity"`
	}

	view := s.Sim.Snapshot()
	out := make([]warSummary, 0, len(view.Wars))
	for _, p := range view.Wars {
		intensity, ok := view.Intensity[p]
		if !ok {
			intensity = 1.0
		}
		out = append(out, warSummary{
			A:         p.A,
			B:         p.B,
			AName:     s.Sim.Civs.Name(p.A),
			BName:     s.Sim.Civs.Name(p.B),
			Intensity: intensity,
		})
	}
	writeJSON(w, out)
}

func (s *Server) handleAnnexations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"capacity": s.Sim.Config.Annexation.LogCapacity,
		"entries":  s.Sim.AnnexationLog(),
	})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", 10, 1000)
	writeJSON(w, render.Leaderboard(s.Sim.Sizes(), s.Sim.Civs, limit))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", 50, 500)

	var events []engine.Event
	if r.URL.Query().Get("source") == "db" && s.DB != nil {
		var err error
		if events, err = s.DB.RecentEvents(s.RunID, limit); err != nil {
			slog.Error("load events failed", "error", err)
			http.Error(w, "events unavailable", http.StatusInternalServerError)
			return
		}
		// Stored events come back newest first; the response is oldest first.
		slices.Reverse(events)
	} else {
		events = s.Sim.RecentEvents(1000)
	}

	// Optional category filter (war, peace, annexation, extinction).
	if cat := r.URL.Query().Get("category"); cat != "" {
		var filtered []engine.Event
		for _, e := range events {
			if e.Category == cat {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	start := 0
	if len(events) > limit {
		start = len(events) - limit
	}
	if events == nil {
		events = []engine.Event{}
	}
	writeJSON(w, events[start:])
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	civID := intParam(r, "civ", 0, 1<<20)

	samples, err := s.DB.LoadTerritoryHistory(s.RunID, civID)
	if err != nil {
		slog.Error("load history failed", "error", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	if samples == nil {
		samples = []persistence.TerritorySample{}
	}
	writeJSON(w, samples)
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	scale := intParam(r, "scale", 1, 8)
	view := s.Sim.Snapshot()

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := render.EncodePNG(w, view.Grid, s.Sim.Civs, scale); err != nil {
		slog.Error("frame encode failed", "error", err)
	}
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "engine not running", http.StatusServiceUnavailable)
		return
	}
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	path, tick, err := SaveSnapshot(s.DB, s.Sim, s.RunID, s.DataDir)
	if err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"tick":        tick,
		"path":    path,
		"message": "snapshot saved",
	})
}

// SaveSnapshot writes a snapshot file, indexes it, and flushes run history.
func SaveSnapshot(db *persistence.DB, sim *engine.Simulation, runID, dataDir string) (string, uint64, error) {
	snap := persistence.FromSimulation(sim, runID)
	path := persistence.SnapshotPath(dataDir, runID, snap.Header.Tick)
	if err := persistence.WriteSnapshot(path, snap); err != nil {
		return "", 0, fmt.Errorf("write snapshot: %w", err)
	}
	if err := db.RecordSnapshot(runID, snap.Header.Tick, path); err != nil {
		return "", 0, fmt.Errorf("record snapshot: %w", err)
	}
	if err := db.SaveRunState(runID, sim); err != nil {
		return "", 0, err
	}
	return path, snap.Header.Tick, nil
}

// streamMessage is one websocket frame.
type streamMessage struct {
	Type  string        `json:"type"` // "hello" or "event"
	Tick  uint64        `json:"tick"`
	Event *engine.Event `json:"event,omitempty"`
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if n := s.streamConns.Add(1); n > maxStreamConns {
		s.streamConns.Add(-1)
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer s.streamConns.Add(-1)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	subID, ch := s.Sim.Subscribe()
	defer s.Sim.Unsubscribe(subID)

	send := func(m streamMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		return conn.WriteJSON(m)
	}

	if err := send(streamMessage{Type: "hello", Tick: s.Sim.CurrentTick()}); err != nil {
		return
	}
	// Catch-up on recent events.
	for _, e := range s.Sim.RecentEvents(50) {
		e := e
		if err := send(streamMessage{Type: "event", Tick: e.Tick, Event: &e}); err != nil {
			return
		}
	}

	slog.Info("stream client connected", "sub_id", subID)

	// Reads only detect the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			if err := send(streamMessage{Type: "event", Tick: e.Tick, Event: &e}); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-closed:
			slog.Info("stream client disconnected", "sub_id", subID)
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
