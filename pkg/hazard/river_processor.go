package hazard

// riverRiskForReading classifies a reading's river-gauge stage against its
// station thresholds. ok is false when the reading carries no
// river gauge.
func riverRiskForReading(r HazardReading) (risk float64, elevated, ok bool) {
	if !r.HasRiverLevel {
		return 0, false, false
	}
	risk = riverLevelToRisk(r.RiverLevelM, r.Thresholds)
	elevated = riverIsElevated(r.RiverLevelM, r.Thresholds)
	return risk, elevated, true
}
