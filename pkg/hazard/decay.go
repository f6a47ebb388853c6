package hazard

import "math"

// Default decay rates. Config overrides these.
const (
	DefaultKScoutFast   = 0.10
	DefaultKScoutSlow   = 0.03
	DefaultKSpatial     = 0.08
	DefaultKOfficial    = 0.05
	DefaultMinRiskFloor = 0.01
)

// exponentialDecay applies v' = v * exp(-k * ageMinutes).
func exponentialDecay(v, k, ageMinutes float64) float64 {
	if ageMinutes <= 0 {
		return v
	}
	return v * math.Exp(-k*ageMinutes)
}

// applyFloor zeroes a decayed value once it drops at or below the minimum
// risk floor.
func applyFloor(v, floor float64) float64 {
	if v <= floor {
		return 0
	}
	return v
}

// scoutDecayRate selects the adaptive decay rate for a scout report:
// rain-based reports (or when no river station is elevated) decay
// fast; reports tied to an elevated river/dam situation decay slow;
// otherwise the mean of the two.
func scoutDecayRate(report ScoutReport, anyRiverElevated bool, rates DecayRates) float64 {
	isRiverTied := report.ReportKind == ReportFlood || report.ReportKind == ReportBlockage

	switch {
	case report.ReportKind == ReportRain:
		return rates.ScoutFast
	case anyRiverElevated && isRiverTied:
		return rates.ScoutSlow
	case !anyRiverElevated:
		return rates.ScoutFast
	default:
		return (rates.ScoutFast + rates.ScoutSlow) / 2
	}
}

// DecayRates bundles the configurable decay coefficients used throughout
// this package, threaded from pkg/config rather than hardcoded so operators
// can tune them per deployment.
type DecayRates struct {
	ScoutFast float64
	ScoutSlow float64
	Spatial   float64
	Official  float64
	MinFloor  float64
}

// DefaultDecayRates returns the default coefficients.
func DefaultDecayRates() DecayRates {
	return DecayRates{
		ScoutFast: DefaultKScoutFast,
		ScoutSlow: DefaultKScoutSlow,
		Spatial:   DefaultKSpatial,
		Official:  DefaultKOfficial,
		MinFloor:  DefaultMinRiskFloor,
	}
}
