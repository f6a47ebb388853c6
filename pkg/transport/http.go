// Package transport implements the HTTP control surface and the WebSocket
// broadcast stream. It stays thin: routing, marshaling and status codes
// only; every decision is delegated to the orchestrator, planner, selector,
// scheduler or raster service.
package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/riverwatch/evacroute/pkg/evac"
	"github.com/riverwatch/evacroute/pkg/metrics"
	"github.com/riverwatch/evacroute/pkg/orchestrator"
	"github.com/riverwatch/evacroute/pkg/planner"
	"github.com/riverwatch/evacroute/pkg/raster"
	"github.com/riverwatch/evacroute/pkg/reporting"
	"github.com/riverwatch/evacroute/pkg/scheduler"
)

// routeWait bounds how long a queued request waits for its routing phase
// before the client gets a timeout.
const routeWait = 15 * time.Second

// Server wires the HTTP surface over the core subsystems.
type Server struct {
	orch      *orchestrator.Orchestrator
	plan      *planner.Planner
	selector  *evac.Selector
	sched     *scheduler.Scheduler
	rasterSvc *raster.Service
	registry  *metrics.Registry
	hub       *Hub
	logger    *reporting.Logger
}

// Config wires a Server.
type Config struct {
	Orchestrator  *orchestrator.Orchestrator
	Planner       *planner.Planner
	Selector      *evac.Selector
	Scheduler     *scheduler.Scheduler
	RasterService *raster.Service
	Metrics       *metrics.Registry
	Hub           *Hub
	Logger        *reporting.Logger
}

// NewServer creates the HTTP server.
func NewServer(cfg Config) *Server {
	return &Server{
		orch:      cfg.Orchestrator,
		plan:      cfg.Planner,
		selector:  cfg.Selector,
		sched:     cfg.Scheduler,
		rasterSvc: cfg.RasterService,
		registry:  cfg.Metrics,
		hub:       cfg.Hub,
		logger:    cfg.Logger,
	}
}

// Routes builds the mux router with every endpoint registered.
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/route", s.handleRoute).Methods(http.MethodPost)
	r.HandleFunc("/evacuate", s.handleEvacuate).Methods(http.MethodPost)

	r.HandleFunc("/admin/collect-flood-data", s.handleCollectNow).Methods(http.MethodPost)
	r.HandleFunc("/scheduler/status", s.handleSchedulerStatus).Methods(http.MethodGet)
	r.HandleFunc("/scheduler/stats", s.handleSchedulerStats).Methods(http.MethodGet)
	r.HandleFunc("/scheduler/trigger", s.handleCollectNow).Methods(http.MethodPost)

	r.HandleFunc("/simulation/start", s.handleSimStart).Methods(http.MethodPost)
	r.HandleFunc("/simulation/stop", s.handleSimStop).Methods(http.MethodPost)
	r.HandleFunc("/simulation/reset", s.handleSimReset).Methods(http.MethodPost)
	r.HandleFunc("/simulation/status", s.handleSimStatus).Methods(http.MethodGet)

	r.HandleFunc("/admin/geotiff/enable", s.handleGeotiffToggle(true)).Methods(http.MethodPost)
	r.HandleFunc("/admin/geotiff/disable", s.handleGeotiffToggle(false)).Methods(http.MethodPost)
	r.HandleFunc("/admin/geotiff/status", s.handleGeotiffStatus).Methods(http.MethodGet)
	r.HandleFunc("/admin/geotiff/set-scenario", s.handleGeotiffScenario).Methods(http.MethodPost)

	if s.hub != nil {
		r.HandleFunc("/ws", s.hub.HandleWS)
	}
	if s.registry != nil {
		r.Handle("/metrics", s.registry.Handler()).Methods(http.MethodGet)
	}

	return r
}

// ListenAndServe starts the HTTP listener.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	if s.logger != nil {
		s.logger.Info("HTTP listener starting", "addr", addr)
	}
	return srv.ListenAndServe()
}

// --- request/response shapes ---

type preferencesBody struct {
	Profile          string   `json:"profile,omitempty"`
	AvoidFloods      *bool    `json:"avoid_floods,omitempty"`
	MaxRiskThreshold *float64 `json:"max_risk_threshold,omitempty"`
	Alternatives     int      `json:"alternatives,omitempty"`
}

type routeBody struct {
	Start       []float64        `json:"start"`
	End         []float64        `json:"end"`
	Preferences *preferencesBody `json:"preferences,omitempty"`
}

type routeResponse struct {
	Status           string       `json:"status"`
	Path             [][2]float64 `json:"path"`
	DistanceM        float64      `json:"distance_m"`
	EstimatedTimeMin float64      `json:"estimated_time_min"`
	AvgRisk          float64      `json:"avg_risk"`
	MaxRisk          float64      `json:"max_risk"`
	Warnings         []string     `json:"warnings"`
	Alternatives     int          `json:"alternatives,omitempty"`

	Shelter *reporting.ShelterInfo `json:"shelter,omitempty"`
}

func (b *preferencesBody) toPreferences() planner.Preferences {
	prefs := planner.Preferences{}
	if b == nil {
		return prefs
	}
	prefs.Profile = b.Profile
	prefs.Alternatives = b.Alternatives
	if b.MaxRiskThreshold != nil {
		prefs.MaxRiskThreshold = b.MaxRiskThreshold
	}
	// avoid_floods maps onto the safest profile unless one was named.
	if b.AvoidFloods != nil && *b.AvoidFloods && prefs.Profile == "" {
		prefs.Profile = "safest"
	}
	return prefs
}

func parseCoord(pair []float64) (planner.Coord, bool) {
	if len(pair) != 2 {
		return planner.Coord{}, false
	}
	c := planner.Coord{Lat: pair[0], Lon: pair[1]}
	if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
		return planner.Coord{}, false
	}
	return c, true
}

// --- handlers ---

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var body routeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	start, ok := parseCoord(body.Start)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid start coordinate")
		return
	}
	end, ok := parseCoord(body.End)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid end coordinate")
		return
	}

	prefs := body.Preferences.toPreferences()
	res := s.resolveRoute(start, end, prefs, false)
	s.writeRouteResult(w, res)
}

func (s *Server) handleEvacuate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Start   []float64 `json:"start"`
		Profile string    `json:"profile,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	start, ok := parseCoord(body.Start)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid start coordinate")
		return
	}
	if s.selector == nil {
		s.writeError(w, http.StatusServiceUnavailable, "no shelter roster loaded")
		return
	}

	res := s.resolveRoute(start, planner.Coord{}, planner.Preferences{Profile: body.Profile}, true)
	s.writeRouteResult(w, res)
}

// resolveRoute serves a routing job. While the tick loop is running the
// request rides the shared bus and is answered in the next routing phase
// (so it sees a complete post-fusion state); otherwise it is served
// directly from the read-locked graph.
func (s *Server) resolveRoute(start, end planner.Coord, prefs planner.Preferences, evacuate bool) orchestrator.RouteResult {
	if s.orch != nil && s.orch.Running() {
		req := orchestrator.NewRouteRequest(start, end, prefs, evacuate)
		s.orch.Bus().EnqueueRoute(req)

		select {
		case res := <-req.Result:
			return res
		case <-time.After(routeWait):
			return orchestrator.RouteResult{Err: errors.New("routing phase timed out")}
		}
	}

	if evacuate {
		selection, err := s.selector.Select(start, prefs)
		if err != nil {
			return orchestrator.RouteResult{Err: err}
		}
		shelter := selection.Shelter
		return orchestrator.RouteResult{Route: selection.Route, Shelter: &shelter}
	}

	route, err := s.plan.Route(start, end, prefs)
	return orchestrator.RouteResult{Route: route, Err: err}
}

func (s *Server) writeRouteResult(w http.ResponseWriter, res orchestrator.RouteResult) {
	if res.Err != nil {
		switch {
		case errors.Is(res.Err, planner.ErrGraphNotReady):
			s.writeError(w, http.StatusServiceUnavailable, res.Err.Error())
		case errors.Is(res.Err, planner.ErrNoPath), errors.Is(res.Err, planner.ErrNoNearbyNode):
			s.writeError(w, http.StatusNotFound, res.Err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, res.Err.Error())
		}
		return
	}

	route := res.Route
	resp := routeResponse{
		Status:           "ok",
		Path:             route.Coords(),
		DistanceM:        route.TotalDistanceM,
		EstimatedTimeMin: route.EstimatedTimeMin,
		AvgRisk:          route.AvgRisk,
		MaxRisk:          route.MaxRisk,
		Warnings:         route.Warnings,
		Alternatives:     len(route.Alternatives),
	}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	if res.Shelter != nil {
		resp.Shelter = &reporting.ShelterInfo{
			Name:     res.Shelter.Name,
			Lat:      res.Shelter.Lat,
			Lon:      res.Shelter.Lon,
			Capacity: res.Shelter.Capacity,
			Kind:     res.Shelter.Kind,
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCollectNow(w http.ResponseWriter, r *http.Request) {
	if s.sched == nil {
		s.writeError(w, http.StatusServiceUnavailable, "no upstream scheduler configured")
		return
	}
	stats := s.sched.TriggerNow(r.Context())
	if s.hub != nil {
		s.hub.Broadcast(reporting.NewEnvelope(reporting.MsgSchedulerUpdate, stats))
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	if s.sched == nil {
		s.writeError(w, http.StatusServiceUnavailable, "no upstream scheduler configured")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"running":    s.sched.IsRunning(),
		"interval_s": s.sched.Interval().Seconds(),
	})
}

func (s *Server) handleSchedulerStats(w http.ResponseWriter, r *http.Request) {
	if s.sched == nil {
		s.writeError(w, http.StatusServiceUnavailable, "no upstream scheduler configured")
		return
	}
	s.writeJSON(w, http.StatusOK, s.sched.GetStats())
}

func (s *Server) handleSimStart(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = "medium"
	}
	if err := s.orch.Start(mode); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, s.orch.GetStatus())
}

func (s *Server) handleSimStop(w http.ResponseWriter, r *http.Request) {
	s.orch.Stop()
	s.writeJSON(w, http.StatusOK, s.orch.GetStatus())
}

func (s *Server) handleSimReset(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.Reset("operator.http"); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, s.orch.GetStatus())
}

func (s *Server) handleSimStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.orch.GetStatus())
}

func (s *Server) handleGeotiffToggle(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.rasterSvc == nil {
			s.writeError(w, http.StatusServiceUnavailable, "raster service not configured")
			return
		}
		s.rasterSvc.SetEnabled(enabled)
		s.writeJSON(w, http.StatusOK, map[string]bool{"enabled": s.rasterSvc.Enabled()})
	}
}

func (s *Server) handleGeotiffStatus(w http.ResponseWriter, r *http.Request) {
	if s.rasterSvc == nil {
		s.writeError(w, http.StatusServiceUnavailable, "raster service not configured")
		return
	}
	status := s.orch.GetStatus()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"enabled":       s.rasterSvc.Enabled(),
		"return_period": status.ReturnPeriod,
		"time_step":     status.TimeStep,
	})
}

func (s *Server) handleGeotiffScenario(w http.ResponseWriter, r *http.Request) {
	rp := raster.ReturnPeriod(r.URL.Query().Get("return_period"))
	timeStep, err := strconv.Atoi(r.URL.Query().Get("time_step"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid time_step")
		return
	}
	if err := s.orch.SetScenario(rp, timeStep); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, s.orch.GetStatus())
}

// --- helpers ---

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil && s.logger != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]string{"status": "error", "error": msg})
}
