// Package orchestrator drives the tick: the four-phase state machine
// (Collection, Fusion, Routing, Advancement) over the shared data bus,
// scenario time-step advancement, and the stop/reset controls. Phases run
// strictly in order; the fusion engine is the graph's only writer, so an
// external reader always sees either the pre- or post-tick risk state.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/riverwatch/evacroute/pkg/config"
	"github.com/riverwatch/evacroute/pkg/emergency"
	"github.com/riverwatch/evacroute/pkg/evac"
	"github.com/riverwatch/evacroute/pkg/graph"
	"github.com/riverwatch/evacroute/pkg/hazard"
	"github.com/riverwatch/evacroute/pkg/planner"
	"github.com/riverwatch/evacroute/pkg/raster"
	"github.com/riverwatch/evacroute/pkg/reporting"
	"github.com/riverwatch/evacroute/pkg/resetlog"
	"github.com/riverwatch/evacroute/pkg/verify"
)

// Phase represents the current position inside a tick
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCollection
	PhaseFusion
	PhaseRouting
	PhaseAdvancement
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseCollection:
		return "COLLECTION"
	case PhaseFusion:
		return "FUSION"
	case PhaseRouting:
		return "ROUTING"
	case PhaseAdvancement:
		return "ADVANCEMENT"
	default:
		return "UNKNOWN"
	}
}

// maxTimeStep is the hourly index bound; advancement wraps mod this.
const maxTimeStep = 18

// Mode names the simulation intensity and binds the raster return period.
var modeReturnPeriods = map[string]raster.ReturnPeriod{
	"light":   raster.RR01,
	"medium":  raster.RR02,
	"heavy":   raster.RR03,
	"extreme": raster.RR04,
}

// Agent is one participant in a tick phase. Agents communicate only
// through the message router; the orchestrator merely sequences their
// step calls.
type Agent interface {
	Name() string
	Step(ctx context.Context) error
}

// RouteResult is the answer to one queued route request.
type RouteResult struct {
	Route   *planner.Route
	Shelter *evac.Shelter
	Err     error
}

// RouteRequest is one pending routing job on the shared bus. Result is
// buffered so the routing phase never blocks on a slow consumer.
type RouteRequest struct {
	ID       string
	Start    planner.Coord
	End      planner.Coord
	Prefs    planner.Preferences
	Evacuate bool
	Result   chan RouteResult
}

// NewRouteRequest builds a request with a fresh id and a buffered result
// channel.
func NewRouteRequest(start, end planner.Coord, prefs planner.Preferences, evacuate bool) *RouteRequest {
	return &RouteRequest{
		ID:       uuid.NewString(),
		Start:    start,
		End:      end,
		Prefs:    prefs,
		Evacuate: evacuate,
		Result:   make(chan RouteResult, 1),
	}
}

// DataBus is the orchestrator-owned per-tick staging area. The input
// staging is cleared at the start of every collection phase; pending route
// requests survive until their routing phase.
type DataBus struct {
	mu            sync.Mutex
	floodData     []hazard.HazardReading
	scoutData     []hazard.ScoutReport
	pendingRoutes []*RouteRequest
	graphUpdated  bool
}

// NewDataBus returns an empty bus.
func NewDataBus() *DataBus {
	return &DataBus{}
}

// AddFloodData stages a HazardReading batch for the next fusion phase.
func (b *DataBus) AddFloodData(readings []hazard.HazardReading) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.floodData = append(b.floodData, readings...)
}

// AddScoutData stages a ScoutReport batch for the next fusion phase.
func (b *DataBus) AddScoutData(reports []hazard.ScoutReport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scoutData = append(b.scoutData, reports...)
}

// EnqueueRoute queues a route request. Requests enqueued while a routing
// phase is in flight are served by the next tick's routing phase.
func (b *DataBus) EnqueueRoute(req *RouteRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pendingRoutes = append(b.pendingRoutes, req)
}

// PendingRoutes reports the queued request count.
func (b *DataBus) PendingRoutes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pendingRoutes)
}

// setGraphUpdated records whether this tick's fusion changed any edge.
func (b *DataBus) setGraphUpdated(updated bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.graphUpdated = updated
}

// GraphUpdated reports whether the last fusion phase changed any edge.
func (b *DataBus) GraphUpdated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.graphUpdated
}

// clearInputs drops staged collection inputs at the start of a tick.
func (b *DataBus) clearInputs() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.floodData = nil
	b.scoutData = nil
	b.graphUpdated = false
}

// takeInputs removes and returns the staged inputs for fusion.
func (b *DataBus) takeInputs() ([]hazard.HazardReading, []hazard.ScoutReport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	flood, scout := b.floodData, b.scoutData
	b.floodData = nil
	b.scoutData = nil
	return flood, scout
}

// takeRoutes removes and returns the route requests due this tick. New
// requests keep accumulating for the next tick.
func (b *DataBus) takeRoutes() []*RouteRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	due := b.pendingRoutes
	b.pendingRoutes = nil
	return due
}

// TickResult represents the outcome of one tick
type TickResult struct {
	TickID       string
	TickCount    int64
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	ReturnPeriod raster.ReturnPeriod
	TimeStep     int
	Success      bool
	Message      string
	Summary      hazard.Summary
	RoutesServed int
	Errors       []error
}

// Hooks let transport subscribe to tick outcomes without the orchestrator
// depending on it. All hooks are optional and called from the tick
// goroutine; they must not block.
type Hooks struct {
	// OnRiskUpdate fires at the end of a fusion phase with edges_updated > 0.
	OnRiskUpdate func(reporting.RiskUpdateData)

	// OnCriticalAlert fires once per location newly classified critical.
	OnCriticalAlert func(reading hazard.HazardReading)

	// OnFloodUpdate fires with the readings staged this tick when the engine
	// accepted at least one of them; readings it dropped are passed as well.
	OnFloodUpdate func(readings []hazard.HazardReading)

	// OnTickCompleted fires after every tick, success or not.
	OnTickCompleted func(result *TickResult)
}

// Config wires the orchestrator's collaborators.
type Config struct {
	Cfg           *config.Config
	Logger        *reporting.Logger
	Graph         *graph.Graph
	Engine        *hazard.Engine
	RasterService *raster.Service
	Planner       *planner.Planner
	Selector      *evac.Selector
	Emergency     *emergency.Controller

	// Collectors step during the collection phase; the hazard agent steps
	// at the start of fusion; routing agents step during the routing phase.
	Collectors    []Agent
	HazardAgent   Agent
	RoutingAgents []Agent

	Hooks Hooks
}

// Orchestrator coordinates the tick lifecycle
type Orchestrator struct {
	cfg       *config.Config
	logger    *reporting.Logger
	g         *graph.Graph
	engine    *hazard.Engine
	rasterSvc *raster.Service
	plan      *planner.Planner
	selector  *evac.Selector
	emergency *emergency.Controller
	verifier  *verify.Verifier
	resetLog  *resetlog.Coordinator
	bus       *DataBus
	hooks     Hooks

	collectors    []Agent
	hazardAgent   Agent
	routingAgents []Agent

	mu           sync.Mutex
	running      bool
	phase        Phase
	mode         string
	returnPeriod raster.ReturnPeriod
	timeStep     int
	tickCount    int64
	criticalSeen map[string]bool
}

// New creates a new Orchestrator instance
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Cfg == nil {
		return nil, fmt.Errorf("orchestrator: config is required")
	}
	if cfg.Graph == nil || cfg.Engine == nil || cfg.Planner == nil {
		return nil, fmt.Errorf("orchestrator: graph, engine and planner are required")
	}

	return &Orchestrator{
		cfg:           cfg.Cfg,
		logger:        cfg.Logger,
		g:             cfg.Graph,
		engine:        cfg.Engine,
		rasterSvc:     cfg.RasterService,
		plan:          cfg.Planner,
		selector:      cfg.Selector,
		emergency:     cfg.Emergency,
		verifier:      verify.New(cfg.Graph),
		resetLog:      resetlog.New(),
		bus:           NewDataBus(),
		hooks:         cfg.Hooks,
		collectors:    cfg.Collectors,
		hazardAgent:   cfg.HazardAgent,
		routingAgents: cfg.RoutingAgents,
		phase:         PhaseIdle,
		timeStep:      1,
		criticalSeen:  make(map[string]bool),
	}, nil
}

// Bus returns the shared data bus for agents and transport.
func (o *Orchestrator) Bus() *DataBus {
	return o.bus
}

// SetHazardAgent wires the fusion-phase agent. The hazard agent stages
// into the orchestrator's bus, so it is constructed after the orchestrator.
func (o *Orchestrator) SetHazardAgent(a Agent) {
	o.hazardAgent = a
}

// ResetLog returns the reset audit coordinator.
func (o *Orchestrator) ResetLog() *resetlog.Coordinator {
	return o.resetLog
}

// Start binds a mode's return period and arms the tick loop.
func (o *Orchestrator) Start(mode string) error {
	rp, ok := modeReturnPeriods[mode]
	if !ok {
		return fmt.Errorf("orchestrator: unknown mode %q", mode)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.mode = mode
	o.returnPeriod = rp
	o.timeStep = 1
	o.running = true

	if o.logger != nil {
		o.logger.Info("Simulation started", "mode", mode, "return_period", string(rp))
	}
	return nil
}

// Stop pauses tick scheduling. Pending state is kept.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.running = false

	if o.logger != nil {
		o.logger.Info("Simulation stopped", "tick_count", o.tickCount)
	}
}

// Running reports whether the tick loop is armed.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// SetScenario sets the raster return period and the current time step
// directly, used by the admin raster controls. Advancement moves on from the
// set time step; the next Start rebinds both.
func (o *Orchestrator) SetScenario(rp raster.ReturnPeriod, timeStep int) error {
	if timeStep < 1 || timeStep > maxTimeStep {
		return fmt.Errorf("orchestrator: time_step must be in 1..%d", maxTimeStep)
	}
	switch rp {
	case raster.RR01, raster.RR02, raster.RR03, raster.RR04:
	default:
		return fmt.Errorf("orchestrator: unknown return_period %q", rp)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.returnPeriod = rp
	o.timeStep = timeStep
	return nil
}

// Status is a point-in-time snapshot for the control surface.
type Status struct {
	Running       bool                `json:"running"`
	Phase         string              `json:"phase"`
	Mode          string              `json:"mode,omitempty"`
	ReturnPeriod  raster.ReturnPeriod `json:"return_period,omitempty"`
	TimeStep      int                 `json:"time_step"`
	TickCount     int64               `json:"tick_count"`
	PendingRoutes int                 `json:"pending_routes"`
}

// GetStatus returns the current orchestrator status.
func (o *Orchestrator) GetStatus() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Status{
		Running:       o.running,
		Phase:         o.phase.String(),
		Mode:          o.mode,
		ReturnPeriod:  o.returnPeriod,
		TimeStep:      o.timeStep,
		TickCount:     o.tickCount,
		PendingRoutes: o.bus.PendingRoutes(),
	}
}

// Reset clears all caches and restores risk_score=0 across the graph,
// auditing each step on behalf of actor.
func (o *Orchestrator) Reset(actor string) error {
	err := o.resetLog.Run(actor, []resetlog.Step{
		{Name: "clear_fusion_caches", Run: func() error {
			o.engine.Reset()
			return nil
		}},
		{Name: "zero_graph_risk", Run: func() error {
			o.g.Reset()
			return nil
		}},
		{Name: "clear_bus", Run: func() error {
			o.bus.clearInputs()
			return nil
		}},
	})

	o.mu.Lock()
	o.criticalSeen = make(map[string]bool)
	o.mu.Unlock()

	if o.logger != nil {
		o.logger.Info("Reset complete", "actor", actor)
	}
	return err
}

// transitionPhase records the phase change for status readers.
func (o *Orchestrator) transitionPhase(p Phase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()

	if o.logger != nil {
		o.logger.Debug("Phase transition", "phase", p.String())
	}
}

// RunTick executes the four phases in order. overrideTimeStep, when
// non-nil, pins this tick's raster time step without touching the
// advancement sequence.
func (o *Orchestrator) RunTick(ctx context.Context, overrideTimeStep *int) (*TickResult, error) {
	o.mu.Lock()
	tickID := uuid.NewString()
	rp := o.returnPeriod
	timeStep := o.timeStep
	tickCount := o.tickCount
	o.mu.Unlock()

	if overrideTimeStep != nil {
		if *overrideTimeStep < 1 || *overrideTimeStep > maxTimeStep {
			return nil, fmt.Errorf("orchestrator: override time_step out of range")
		}
		timeStep = *overrideTimeStep
	}

	result := &TickResult{
		TickID:       tickID,
		TickCount:    tickCount,
		StartTime:    time.Now(),
		ReturnPeriod: rp,
		TimeStep:     timeStep,
	}

	// The scenario descriptor is fixed for the whole tick: raster service
	// and fusion engine see the same value.
	scenario := raster.Scenario{ReturnPeriod: rp, TimeStep: timeStep}

	// Phase 1: collection.
	o.transitionPhase(PhaseCollection)
	o.bus.clearInputs()
	o.stepAgents(ctx, o.collectors, result)

	// Phase 2: fusion.
	o.transitionPhase(PhaseFusion)
	summary, err := o.executeFusion(ctx, scenario, timeStep, result)
	if err != nil {
		return o.failTick(result, err)
	}
	result.Summary = summary

	// Phase 3: routing.
	o.transitionPhase(PhaseRouting)
	o.stepAgents(ctx, o.routingAgents, result)
	result.RoutesServed = o.executeRouting()

	// Phase 4: advancement.
	o.transitionPhase(PhaseAdvancement)
	o.mu.Lock()
	o.timeStep = (o.timeStep % maxTimeStep) + 1
	o.tickCount++
	o.phase = PhaseIdle
	o.mu.Unlock()

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	result.Success = true
	result.Message = "tick completed"

	if o.hooks.OnTickCompleted != nil {
		o.hooks.OnTickCompleted(result)
	}

	return result, nil
}

// stepAgents runs a phase's agents concurrently and joins before the next
// phase begins. Agent errors are collected, never fatal: a failed collector
// just means fewer inputs this tick.
func (o *Orchestrator) stepAgents(ctx context.Context, agents []Agent, result *TickResult) {
	if len(agents) == 0 {
		return
	}

	errs := make([]error, len(agents))
	var wg sync.WaitGroup
	for i, a := range agents {
		i, a := i, a
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = a.Step(ctx)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("agent %s: %w", agents[i].Name(), err))
			if o.logger != nil {
				o.logger.Warn("Agent step failed", "agent", agents[i].Name(), "error", err)
			}
		}
	}
}

// executeFusion drains the bus into the engine and commits the tick's risk
// state, then verifies quiescence invariants.
func (o *Orchestrator) executeFusion(ctx context.Context, scenario raster.Scenario, timeStep int, result *TickResult) (hazard.Summary, error) {
	// Let the hazard agent drain its mailbox into the caches first.
	if o.hazardAgent != nil {
		if err := o.hazardAgent.Step(ctx); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("agent %s: %w", o.hazardAgent.Name(), err))
		}
	}

	flood, scout := o.bus.takeInputs()

	dropped := 0
	if len(flood) > 0 {
		accepted, d := o.engine.IngestReadings(flood)
		dropped += d
		if accepted > 0 {
			o.emitFloodUpdates(flood)
		}
	}
	if len(scout) > 0 {
		_, d := o.engine.IngestScoutReports(scout)
		dropped += d
	}
	if dropped > 0 && o.logger != nil {
		o.logger.Warn("Dropped invalid inputs", "count", dropped)
	}

	now := time.Now()
	summary, err := o.engine.Fuse(ctx, now, scenario, timeStep)
	if err != nil {
		return hazard.Summary{}, fmt.Errorf("fusion failed: %w", err)
	}

	if verifyResult := o.verifier.VerifyAll(); !verifyResult.Clean {
		return hazard.Summary{}, verifyResult.Error()
	}

	o.bus.setGraphUpdated(summary.EdgesUpdated > 0)

	if summary.EdgesUpdated > 0 && o.hooks.OnRiskUpdate != nil {
		o.hooks.OnRiskUpdate(reporting.RiskUpdateData{
			EdgesUpdated:   summary.EdgesUpdated,
			AverageRisk:    summary.AverageRisk,
			RiskTrend:      string(summary.Trend),
			RiskChangeRate: summary.RiskChangeRate,
			TimeStep:       summary.TimeStep,
		})
	}

	return summary, nil
}

// emitFloodUpdates raises flood_update and critical_alert hooks for the
// readings staged this tick, including any the engine dropped.
func (o *Orchestrator) emitFloodUpdates(readings []hazard.HazardReading) {
	if o.hooks.OnFloodUpdate != nil {
		o.hooks.OnFloodUpdate(readings)
	}

	if o.hooks.OnCriticalAlert == nil {
		return
	}
	for _, r := range readings {
		critical := hazard.ClassifySeverity(r) >= 1.0
		o.mu.Lock()
		wasCritical := o.criticalSeen[r.LocationID]
		o.criticalSeen[r.LocationID] = critical
		o.mu.Unlock()

		if critical && !wasCritical {
			o.hooks.OnCriticalAlert(r)
		}
	}
}

// executeRouting drains the pending route requests and answers each from
// the post-fusion graph.
func (o *Orchestrator) executeRouting() int {
	due := o.bus.takeRoutes()
	served := 0

	for _, req := range due {
		var res RouteResult
		if req.Evacuate && o.selector != nil {
			selection, err := o.selector.Select(req.Start, req.Prefs)
			if err != nil {
				res.Err = err
			} else {
				res.Route = selection.Route
				shelter := selection.Shelter
				res.Shelter = &shelter
			}
		} else {
			res.Route, res.Err = o.plan.Route(req.Start, req.End, req.Prefs)
		}

		req.Result <- res
		served++
	}

	return served
}

// failTick finalizes a failed tick. The graph keeps its pre-tick snapshot
// when fusion never committed; time still advances so a poisoned input
// cannot wedge the scenario clock.
func (o *Orchestrator) failTick(result *TickResult, err error) (*TickResult, error) {
	o.mu.Lock()
	o.timeStep = (o.timeStep % maxTimeStep) + 1
	o.tickCount++
	o.phase = PhaseIdle
	o.mu.Unlock()

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	result.Success = false
	result.Message = err.Error()
	result.Errors = append(result.Errors, err)

	if o.logger != nil {
		o.logger.Error("Tick failed", "tick", result.TickCount, "error", err)
	}
	if o.hooks.OnTickCompleted != nil {
		o.hooks.OnTickCompleted(result)
	}
	return result, err
}

// RunLoop executes ticks at the configured interval until the context is
// cancelled, Stop is called, or the emergency controller fires.
func (o *Orchestrator) RunLoop(ctx context.Context) error {
	interval := o.cfg.Tick.Interval
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var stopCh <-chan struct{}
	if o.emergency != nil {
		stopCh = o.emergency.StopChannel()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			o.Stop()
			return fmt.Errorf("orchestrator: emergency stop")
		case <-ticker.C:
			if !o.Running() {
				continue
			}
			if _, err := o.RunTick(ctx, nil); err != nil {
				// A failed tick is logged and the loop continues; only
				// cancellation or emergency stop ends the loop.
				continue
			}
		}
	}
}
