package raster

// ReturnPeriod is the recurrence-interval category of a flood raster bundle.
type ReturnPeriod string

const (
	RR01 ReturnPeriod = "rr01"
	RR02 ReturnPeriod = "rr02"
	RR03 ReturnPeriod = "rr03"
	RR04 ReturnPeriod = "rr04"
)

// Scenario identifies one raster in the bundle: a return period and an
// hourly time step in 1..18. The orchestrator and the fusion engine use
// the same Scenario value within a single tick.
type Scenario struct {
	ReturnPeriod ReturnPeriod
	TimeStep     int
}

// AlignConfig is the manual geo-alignment configuration. CRS metadata
// embedded in raster files is always ignored in favor of this.
type AlignConfig struct {
	CenterLat       float64
	CenterLon       float64
	BaseCoverageDeg float64
}

// bounds is the computed lon/lat extent of one raster, derived from
// AlignConfig and the raster's pixel dimensions.
type bounds struct {
	minLon, maxLon float64
	minLat, maxLat float64
}
