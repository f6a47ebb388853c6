package hazard

// damRiskForReading classifies a reading's dam deviation from normal
// high-water level. ok is false when the reading carries no
// dam telemetry.
func damRiskForReading(r HazardReading) (risk float64, ok bool) {
	if !r.HasDamDeviation {
		return 0, false
	}
	return damDeviationToRisk(r.DamDeviationM), true
}
