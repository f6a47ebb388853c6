// Package hazard implements the fusion engine: it maintains caches of
// official HazardReadings and crowdsourced ScoutReports, combines them with
// sampled raster depth, applies time decay and spatial propagation, and
// commits an integrated per-edge risk score to the graph store each tick.
package hazard

import "time"

// ReportKind enumerates the crowdsourced scout report categories.
type ReportKind string

const (
	ReportRain     ReportKind = "rain_report"
	ReportFlood    ReportKind = "flood"
	ReportBlockage ReportKind = "blockage"
	ReportClear    ReportKind = "clear"
)

// RiverLevelThresholds carries the per-location alert/alarm/critical river
// stage thresholds a HazardReading is classified against.
type RiverLevelThresholds struct {
	AlertM    float64
	AlarmM    float64
	CriticalM float64
}

// HazardReading is one official per-location measurement. RiverLevelM and
// DamDeviationM are optional; HasRiverLevel and HasDamDeviation mark whether
// each is present, so a location without a river gauge has HasRiverLevel
// false.
type HazardReading struct {
	LocationID    string
	Timestamp     time.Time
	Rainfall1hMM  float64
	Rainfall24hMM float64

	HasFloodDepth bool
	FloodDepthM   float64

	HasRiverLevel bool
	RiverLevelM   float64
	Thresholds    RiverLevelThresholds

	HasDamDeviation  bool
	DamDeviationM    float64
	NormalHighWaterM float64

	SourceTag string
}

// Coordinates is an optional lat/lon pair.
type Coordinates struct {
	Lat float64
	Lon float64
}

// ScoutReport is one crowdsourced, possibly-geocoded report. A report is
// geocoded iff HasCoordinates is true; only geocoded reports propagate
// spatially.
type ScoutReport struct {
	ReportID       string
	Timestamp      time.Time
	Body           string
	LocationName   string
	HasCoordinates bool
	Coordinates    Coordinates
	Severity       float64
	Confidence     float64
	ReportKind     ReportKind
}
