package simulate

import (
	"math/rand"
	"time"

	"github.com/riverwatch/evacroute/pkg/hazard"
)

// Sampler holds a seeded RNG and produces randomized scenario events with
// near-threshold parameters: severities and river stages that sit just
// around the classification band edges, where fusion behavior is most
// interesting to exercise.
type Sampler struct {
	rng *rand.Rand
}

// NewSampler creates a sampler with the given seed so a scenario can be
// reproduced exactly.
func NewSampler(seed int64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewSource(seed))}
}

// reportKinds is the ordered list of scout report kinds, weighted toward
// rain reports which dominate real crowdsourced streams.
var reportKinds = []struct {
	kind   hazard.ReportKind
	weight float64
}{
	{hazard.ReportRain, 0.45},
	{hazard.ReportFlood, 0.30},
	{hazard.ReportBlockage, 0.15},
	{hazard.ReportClear, 0.10},
}

// sampleKind picks a report kind by weight.
func (s *Sampler) sampleKind() hazard.ReportKind {
	r := s.rng.Float64()
	acc := 0.0
	for _, rk := range reportKinds {
		acc += rk.weight
		if r < acc {
			return rk.kind
		}
	}
	return reportKinds[len(reportKinds)-1].kind
}

// nearThreshold returns a value in [edge-spread, edge+spread] clamped to
// [0,1], biasing samples around a classification boundary.
func (s *Sampler) nearThreshold(edge, spread float64) float64 {
	v := edge + (s.rng.Float64()*2-1)*spread
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// severityEdges are the values where high-risk counting and impassability
// decisions flip.
var severityEdges = []float64{0.5, 0.7, 0.9}

// SampleScoutReport produces one randomized scout report near center.
// Roughly a fifth of reports come without coordinates, exercising the
// uniform environmental-factor path.
func (s *Sampler) SampleScoutReport(ts time.Time, centerLat, centerLon, jitterDeg float64) wireScoutReport {
	kind := s.sampleKind()

	edge := severityEdges[s.rng.Intn(len(severityEdges))]
	severity := s.nearThreshold(edge, 0.08)
	if kind == hazard.ReportClear {
		severity = s.nearThreshold(0.05, 0.05)
	}

	w := wireScoutReport{
		Severity:   severity,
		Confidence: 0.5 + s.rng.Float64()*0.5,
		ReportKind: string(kind),
		Timestamp:  ts.UTC().Format(time.RFC3339),
	}

	if s.rng.Float64() < 0.8 {
		w.Coordinates = &struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		}{
			Lat: centerLat + (s.rng.Float64()*2-1)*jitterDeg,
			Lon: centerLon + (s.rng.Float64()*2-1)*jitterDeg,
		}
	} else {
		w.LocationName = "district-" + string(rune('a'+s.rng.Intn(6)))
	}

	return w
}

// riverStages parameterize a synthetic gauge: thresholds plus a stage
// sampled near one of them.
type riverStages struct {
	level    float64
	alert    float64
	alarm    float64
	critical float64
}

// sampleRiverStages produces a gauge reading near a random threshold.
func (s *Sampler) sampleRiverStages() riverStages {
	st := riverStages{alert: 3.0, alarm: 4.0, critical: 5.0}
	thresholds := []float64{st.alert, st.alarm, st.critical}
	edge := thresholds[s.rng.Intn(len(thresholds))]
	st.level = edge + (s.rng.Float64()*2-1)*0.4
	if st.level < 0 {
		st.level = 0
	}
	return st
}

// SampleFloodReading produces one randomized official reading stamped ts;
// the caller keys it by location. About half the readings carry a river gauge; a quarter
// carry dam telemetry.
func (s *Sampler) SampleFloodReading(ts time.Time) wireReadingOut {
	w := wireReadingOut{
		Rainfall1h:  s.rng.Float64() * 35,
		Rainfall24h: s.rng.Float64() * 120,
		Timestamp:   ts.UTC().Format(time.RFC3339),
	}

	if s.rng.Float64() < 0.5 {
		st := s.sampleRiverStages()
		w.RiverLevelM = &st.level
		w.AlertLevelM = st.alert
		w.AlarmLevelM = st.alarm
		w.CriticalLevelM = st.critical
	}

	if s.rng.Float64() < 0.25 {
		nhwl := 100.0
		reservoir := nhwl + (s.rng.Float64()*3 - 0.5)
		w.ReservoirWaterLevelM = &reservoir
		w.NormalHighWaterM = nhwl
	}

	if s.rng.Float64() < 0.3 {
		depth := s.rng.Float64() * 1.5
		w.FloodDepth = &depth
	}

	return w
}

// wireReadingOut mirrors the upstream JSON reading shape for generation.
type wireReadingOut struct {
	FloodDepth           *float64 `json:"flood_depth,omitempty"`
	Rainfall1h           float64  `json:"rainfall_1h"`
	Rainfall24h          float64  `json:"rainfall_24h"`
	RiverLevelM          *float64 `json:"river_level_m,omitempty"`
	AlertLevelM          float64  `json:"alert_level_m,omitempty"`
	AlarmLevelM          float64  `json:"alarm_level_m,omitempty"`
	CriticalLevelM       float64  `json:"critical_level_m,omitempty"`
	ReservoirWaterLevelM *float64 `json:"reservoir_water_level_m,omitempty"`
	NormalHighWaterM     float64  `json:"normal_high_water_level_m,omitempty"`
	Timestamp            string   `json:"timestamp"`
}
