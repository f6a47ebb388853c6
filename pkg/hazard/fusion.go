package hazard

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/riverwatch/evacroute/pkg/graph"
	"github.com/riverwatch/evacroute/pkg/raster"
)

// Trend classifies the direction of the system-wide average risk across
// the last two fusion commits.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// trendEpsilon is the epsilon used to classify Trend. It is compared with
// the change of the average between the last two fusion commits as is; the
// change is not divided by the time between the commits.
const trendEpsilon = 0.001

// FusionWeights are the per-source contribution weights.
type FusionWeights struct {
	Raster   float64
	Scout    float64
	Official float64
}

// DefaultFusionWeights returns the standard source weighting: raster
// depth dominates, crowdsourced reports second, official telemetry third.
func DefaultFusionWeights() FusionWeights {
	return FusionWeights{Raster: 0.5, Scout: 0.3, Official: 0.2}
}

// lockAcquireTimeout bounds the fusion commit's wait for the graph's
// write lock; exceeding it is fatal for the tick.
const lockAcquireTimeout = time.Second

// graphStore is the subset of *graph.Graph the fusion engine depends on.
type graphStore interface {
	AllEdges() []graph.Edge
	Node(id int64) (graph.Node, bool)
	Edge(k graph.EdgeKey) (graph.Edge, bool)
	FindEdgesWithinRadius(lat, lon, radiusM float64) ([]graph.EdgeKey, error)
	BatchUpdateEdgeRisksWithin(updates []graph.RiskUpdate, ts time.Time, timeout time.Duration) error
}

// rasterSource is the subset of *raster.Service the fusion engine depends
// on, letting tests substitute a fake depth provider.
type rasterSource interface {
	DepthsForEdges(ctx context.Context, points map[string][2]float64, scenario raster.Scenario) map[string]float64
}

// Summary is the result of one Fuse call, used by reporting and the
// risk_update WebSocket broadcast.
type Summary struct {
	EdgesUpdated    int
	AverageRisk     float64
	Trend           Trend
	RiskChangeRate  float64
	TimeStep        int
	DroppedScout    int
	DroppedReadings int
}

// Engine is the hazard fusion engine: it owns the reading/report caches and
// the risk-history ring buffer, and commits an integrated risk score to the
// graph store once per tick.
type Engine struct {
	g         graphStore
	rasterSvc rasterSource
	cache     *Cache

	weights            FusionWeights
	rates              DecayRates
	propagationRadiusM float64

	historyMu sync.Mutex
	history   map[graph.EdgeKey][]float64
	lastAvg   []float64 // up to last two tick averages, for trend classification
}

// EngineConfig configures a new Engine.
type EngineConfig struct {
	Graph              graphStore
	RasterService      rasterSource
	Cache              *Cache
	Weights            FusionWeights
	Rates              DecayRates
	PropagationRadiusM float64
}

// NewEngine constructs a fusion Engine.
func NewEngine(cfg EngineConfig) *Engine {
	radius := cfg.PropagationRadiusM
	if radius <= 0 {
		radius = DefaultPropagationRadiusM
	}
	return &Engine{
		g:                  cfg.Graph,
		rasterSvc:          cfg.RasterService,
		cache:              cfg.Cache,
		weights:            cfg.Weights,
		rates:              cfg.Rates,
		propagationRadiusM: radius,
		history:            make(map[graph.EdgeKey][]float64),
	}
}

// IngestReadings adds a HazardReading batch to the cache, dropping and
// logging any entry that fails basic validation; a bad entry never
// aborts the batch.
func (e *Engine) IngestReadings(readings []HazardReading) (accepted int, dropped int) {
	valid := make([]HazardReading, 0, len(readings))
	for _, r := range readings {
		if r.LocationID == "" || r.Timestamp.IsZero() {
			dropped++
			continue
		}
		valid = append(valid, r)
	}
	e.cache.UpsertReadings(valid)
	return len(valid), dropped
}

// IngestScoutReports adds a ScoutReport batch to the cache, dropping
// entries with an invalid severity/confidence range.
func (e *Engine) IngestScoutReports(reports []ScoutReport) (accepted int, dropped int) {
	valid := make([]ScoutReport, 0, len(reports))
	for _, r := range reports {
		if r.Severity < 0 || r.Severity > 1 || r.Confidence < 0 || r.Confidence > 1 || r.Timestamp.IsZero() {
			dropped++
			continue
		}
		valid = append(valid, r)
	}
	e.cache.AppendScoutReports(valid)
	return len(valid), dropped
}

// Fuse runs the per-tick fusion procedure and commits the result via a
// single BatchUpdateEdgeRisks call, so readers never observe a torn tick.
func (e *Engine) Fuse(ctx context.Context, now time.Time, scenario raster.Scenario, timeStep int) (Summary, error) {
	// Step 1: evict expired cache entries.
	e.cache.EvictExpired(now)

	edges := e.g.AllEdges()

	// Step 2: spatial decay of each edge's existing residual risk. Kept as
	// the fallback committed value for edges that receive no contribution
	// this tick, so risk continues decaying toward the floor even after
	// its originating report or reading has left the cache.
	residual := make(map[graph.EdgeKey]float64, len(edges))
	for _, ed := range edges {
		if ed.RiskScore <= 0 {
			residual[ed.ID()] = 0
			continue
		}
		ageMinutes := 0.0
		if ed.HasRiskUpdate {
			ageMinutes = now.Sub(ed.LastRiskUpdate).Minutes()
		}
		decayed := exponentialDecay(ed.RiskScore, e.rates.Spatial, ageMinutes)
		residual[ed.ID()] = applyFloor(decayed, e.rates.MinFloor)
	}

	pending := make(map[graph.EdgeKey]float64, len(edges))
	hasContribution := make(map[graph.EdgeKey]bool, len(edges))

	readings := e.cache.Readings()

	// Step 3: raster depth term. Officially-reported flood depth stands in
	// uniformly at the same weight when present, so a depth measurement
	// still moves risk while rasters are disabled or missing.
	points := make(map[string][2]float64, len(edges))
	keyByPoint := make(map[string]graph.EdgeKey, len(edges))
	for _, ed := range edges {
		u, uok := e.g.Node(ed.U)
		v, vok := e.g.Node(ed.V)
		if !uok || !vok {
			continue
		}
		id := edgeKeyString(ed.ID())
		points[id] = [2]float64{(u.Lat + v.Lat) / 2, (u.Lon + v.Lon) / 2}
		keyByPoint[id] = ed.ID()
	}
	depths := e.rasterSvc.DepthsForEdges(ctx, points, scenario)
	for id, depth := range depths {
		k := keyByPoint[id]
		risk := depthToRisk(depth) * e.weights.Raster
		if risk > 0 {
			pending[k] += risk
			hasContribution[k] = true
		}
	}

	uniformDepthTerm := 0.0
	for _, r := range readings {
		if !r.HasFloodDepth {
			continue
		}
		if risk := depthToRisk(r.FloodDepthM) * e.weights.Raster; risk > uniformDepthTerm {
			uniformDepthTerm = risk
		}
	}

	// Step 4: scout report propagation.
	reports := e.cache.ScoutReports()
	anyElevated := anyReadingElevated(readings)
	uniformScoutFactor := 0.0
	for _, r := range reports {
		ageMinutes := now.Sub(r.Timestamp).Minutes()
		rate := scoutDecayRate(r, anyElevated, e.rates)
		decayedSeverity := exponentialDecay(r.Severity, rate, ageMinutes)

		if r.HasCoordinates {
			scoutPending := make(map[graph.EdgeKey]float64)
			propagateReport(e.g, r, decayedSeverity, e.propagationRadiusM, scoutPending)
			for k, v := range scoutPending {
				contribution := v * e.weights.Scout
				pending[k] += contribution
				hasContribution[k] = true
			}
		} else {
			// Non-geocoded reports contribute to a system-wide uniform
			// environmental factor at half the crowdsourced weight.
			uniformScoutFactor += decayedSeverity * r.Confidence * (e.weights.Scout / 2)
		}
	}

	// Step 5: system-wide official factor, from the max-weighted decayed
	// risk across cached HazardReadings.
	maxOfficial := 0.0
	for _, r := range readings {
		c := decayedOfficialContribution(r, now, e.rates)
		if c > maxOfficial {
			maxOfficial = c
		}
	}
	uniformOfficialTerm := maxOfficial * e.weights.Official

	if uniformOfficialTerm > 0 || uniformScoutFactor > 0 || uniformDepthTerm > 0 {
		for _, ed := range edges {
			pending[ed.ID()] += uniformOfficialTerm + uniformScoutFactor + uniformDepthTerm
			hasContribution[ed.ID()] = true
		}
	}

	// Step 6: combine and commit.
	updates := make([]graph.RiskUpdate, 0, len(edges))
	edgesUpdated := 0
	totalWeightedRisk := 0.0
	totalLength := 0.0
	for _, ed := range edges {
		k := ed.ID()
		var newRisk float64
		if hasContribution[k] {
			newRisk = clamp01(pending[k])
		} else {
			newRisk = residual[k]
		}
		if newRisk != ed.RiskScore {
			edgesUpdated++
		}
		updates = append(updates, graph.RiskUpdate{Key: k, Risk: newRisk})
		totalWeightedRisk += newRisk * ed.LengthM
		totalLength += ed.LengthM
	}

	if err := e.g.BatchUpdateEdgeRisksWithin(updates, now, lockAcquireTimeout); err != nil {
		if errors.Is(err, graph.ErrLockTimeout) {
			return Summary{}, ErrLockTimeout
		}
		return Summary{}, err
	}

	avgRisk := 0.0
	if totalLength > 0 {
		avgRisk = totalWeightedRisk / totalLength
	}

	// Step 7: risk-history ring buffer + trend classification.
	e.recordHistory(updates)
	trend, rate := e.classifyTrend(avgRisk, now)

	return Summary{
		EdgesUpdated:   edgesUpdated,
		AverageRisk:    avgRisk,
		Trend:          trend,
		RiskChangeRate: rate,
		TimeStep:       timeStep,
	}, nil
}

const historyDepth = 8

func (e *Engine) recordHistory(updates []graph.RiskUpdate) {
	e.historyMu.Lock()
	defer e.historyMu.Unlock()

	for _, u := range updates {
		buf := e.history[u.Key]
		buf = append(buf, u.Risk)
		if len(buf) > historyDepth {
			buf = buf[len(buf)-historyDepth:]
		}
		e.history[u.Key] = buf
	}
}

func (e *Engine) classifyTrend(avgRisk float64, now time.Time) (Trend, float64) {
	e.historyMu.Lock()
	defer e.historyMu.Unlock()

	e.lastAvg = append(e.lastAvg, avgRisk)
	if len(e.lastAvg) > 2 {
		e.lastAvg = e.lastAvg[len(e.lastAvg)-2:]
	}
	if len(e.lastAvg) < 2 {
		return TrendStable, 0
	}

	prev, curr := e.lastAvg[0], e.lastAvg[1]
	rate := curr - prev // per commit; not normalized by the tick interval

	switch {
	case rate > trendEpsilon:
		return TrendIncreasing, rate
	case rate < -trendEpsilon:
		return TrendDecreasing, rate
	default:
		return TrendStable, rate
	}
}

// Reset clears the caches and the risk-history buffer, used by the
// orchestrator's reset() command.
func (e *Engine) Reset() {
	e.cache.Reset()
	e.historyMu.Lock()
	defer e.historyMu.Unlock()
	e.history = make(map[graph.EdgeKey][]float64)
	e.lastAvg = nil
}

func anyReadingElevated(readings []HazardReading) bool {
	for _, r := range readings {
		if readingIsElevated(r) {
			return true
		}
	}
	return false
}

func edgeKeyString(k graph.EdgeKey) string {
	return strconv.FormatInt(k.U, 10) + "_" + strconv.FormatInt(k.V, 10) + "_" + strconv.Itoa(k.Key)
}
