package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fourway-systems/fourway/internal/engine"
	"github.com/fourway-systems/fourway/internal/runstore"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server exposes one controller over HTTP. The run store is optional;
// without it the runs endpoints report recording disabled.
type Server struct {
	ctl   *Control
	store *runstore.Store
}

func NewServer(ctl *Control, store *runstore.Store) *Server {
	return &Server{
		ctl:   ctl,
		store: store,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/state", s.showState)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/vehicle", s.addVehicle)
	mux.HandleFunc("/api/step", s.step)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/runs/", s.showRun)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// LaneStatus is the monitor view of one lane.
type LaneStatus struct {
	Light   string `json:"light"`
	Queue   int    `json:"queue"`
	MaxWait uint32 `json:"max_wait"`
}

// RoadStatus groups the two lanes of one approach road.
type RoadStatus struct {
	StraightRight LaneStatus `json:"straight_right"`
	Left          LaneStatus `json:"left"`
}

// StateResponse is the GET /api/state body.
type StateResponse struct {
	Tick      uint32                `json:"tick"`
	State     string                `json:"state"`
	StateCode uint8                 `json:"state_code"`
	Queued    int                   `json:"queued"`
	Roads     map[string]RoadStatus `json:"roads"`
}

func (s *Server) showState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	snap := s.ctl.Snapshot()
	resp := StateResponse{
		Tick:      snap.Tick,
		State:     snap.State.String(),
		StateCode: uint8(snap.State),
		Queued:    snap.Queued,
		Roads:     make(map[string]RoadStatus, engine.NumRoads),
	}
	for road := engine.Direction(0); road < engine.NumRoads; road++ {
		resp.Roads[road.String()] = RoadStatus{
			StraightRight: laneStatus(snap, road, engine.LaneStraightRight),
			Left:          laneStatus(snap, road, engine.LaneLeft),
		}
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write state")
		return
	}
}

func laneStatus(snap Snapshot, road engine.Direction, lane engine.Lane) LaneStatus {
	return LaneStatus{
		Light:   snap.Lights[road][lane].String(),
		Queue:   snap.Queues[road][lane],
		MaxWait: snap.MaxWaits[road][lane],
	}
}

// ConfigResponse is the GET /api/config body.
type ConfigResponse struct {
	Timing    engine.Timing `json:"timing"`
	Recording bool          `json:"recording"`
}

// handleConfig serves the active signal plan on GET and applies a new
// one on POST. A POST body may name any subset of the timing fields;
// unnamed fields keep their current values. Applying a plan resets the
// engine.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		// fall through to the response below
	case http.MethodPost:
		t := s.ctl.Timing()
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		s.ctl.Configure(t)
	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	resp := ConfigResponse{
		Timing:    s.ctl.Timing(),
		Recording: s.store != nil,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write config")
		return
	}
}

// VehicleRequest is the POST /api/vehicle body. Field names follow the
// scenario file format.
type VehicleRequest struct {
	VehicleID string `json:"vehicleId"`
	StartRoad string `json:"startRoad"`
	EndRoad   string `json:"endRoad"`
}

func (s *Server) addVehicle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req VehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.VehicleID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "vehicleId is required")
		return
	}

	start, err := engine.ParseDirection(req.StartRoad)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid startRoad: %v", err))
		return
	}
	end, err := engine.ParseDirection(req.EndRoad)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid endRoad: %v", err))
		return
	}

	if err := s.ctl.AddVehicleNow(req.VehicleID, start, end); err != nil {
		switch {
		case errors.Is(err, engine.ErrBadRoute):
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Undrivable route: %v", err))
		case errors.Is(err, engine.ErrQueueFull):
			s.writeJSONError(w, http.StatusConflict, fmt.Sprintf("Lane at capacity: %v", err))
		default:
			s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to add vehicle: %v", err))
		}
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"status": "queued"})
}

// DepartureAPI is one departed vehicle in a step response.
type DepartureAPI struct {
	ID   string `json:"id"`
	Road string `json:"road"`
	Lane string `json:"lane"`
	Wait uint32 `json:"wait"`
}

// StepResponse is the POST /api/step body.
type StepResponse struct {
	Tick     uint32         `json:"tick"`
	State    string         `json:"state"`
	Departed []DepartureAPI `json:"departed"`
}

func (s *Server) step(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	res := s.ctl.Step()
	resp := StepResponse{
		Tick:     res.Tick,
		State:    res.State.String(),
		Departed: make([]DepartureAPI, 0, len(res.Departed)),
	}
	for _, d := range res.Departed {
		resp.Departed = append(resp.Departed, DepartureAPI{
			ID:   d.ID,
			Road: d.Road.String(),
			Lane: d.Lane.String(),
			Wait: d.Wait,
		})
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write step result")
		return
	}
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.store == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Run recording is not enabled")
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	runs, err := s.store.Runs(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve runs: %v", err))
		return
	}
	if runs == nil {
		runs = []runstore.Run{}
	}

	if err := json.NewEncoder(w).Encode(runs); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write runs")
		return
	}
}

// RunDetail is the GET /api/runs/:id body.
type RunDetail struct {
	Run          runstore.Run            `json:"run"`
	Departures   []runstore.DepartureRow `json:"departures"`
	QueueSamples []runstore.QueueSample  `json:"queue_samples"`
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.store == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "Run recording is not enabled")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if id == "" || strings.Contains(id, "/") {
		s.writeJSONError(w, http.StatusBadRequest, "Missing run ID")
		return
	}

	run, err := s.store.Run(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeJSONError(w, http.StatusNotFound, "Run not found")
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve run: %v", err))
		return
	}

	departures, err := s.store.RunDepartures(id)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve departures: %v", err))
		return
	}
	samples, err := s.store.RunQueueSamples(id)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve queue samples: %v", err))
		return
	}

	detail := RunDetail{Run: *run, Departures: departures, QueueSamples: samples}
	if detail.Departures == nil {
		detail.Departures = []runstore.DepartureRow{}
	}
	if detail.QueueSamples == nil {
		detail.QueueSamples = []runstore.QueueSample{}
	}

	if err := json.NewEncoder(w).Encode(detail); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write run")
		return
	}
}
