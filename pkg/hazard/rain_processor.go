package hazard

// rainRiskForReading derives a rain-severity contribution from an official
// reading's rainfall rate. The 1-hour rate drives the
// classification; the 24-hour rate is folded in at a third weight since a
// wet preceding day raises the effective hazard of the same hourly rate
// without dominating it.
func rainRiskForReading(r HazardReading) float64 {
	hourly := rainSeverityFactor(r.Rainfall1hMM)
	daily := rainSeverityFactor(r.Rainfall24hMM / 24)
	return hourly + daily/3
}

// classifyRainfallIntensity returns the intensity bucket for a reading's
// hourly rate.
func classifyRainfallIntensity(r HazardReading) RainIntensity {
	return classifyRainIntensity(r.Rainfall1hMM)
}
